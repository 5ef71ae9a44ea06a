package progress

import "context"

// Sink consumes batches of events. Implementations must tolerate duplicate
// delivery and must not retain the batch slice after Consume returns.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}
