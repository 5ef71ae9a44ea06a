package progress

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEventValidate(t *testing.T) {
	t.Parallel()

	base := func() Event {
		return Event{
			RunID: UUIDToBytes(uuid.New()),
			TS:    time.Now().UTC(),
			Stage: StageRunStart,
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Event)
		wantErr string
	}{
		{"valid run start", func(*Event) {}, ""},
		{"missing run id", func(e *Event) { e.RunID = [16]byte{} }, "run id"},
		{"missing timestamp", func(e *Event) { e.TS = time.Time{} }, "timestamp"},
		{"unknown stage", func(e *Event) { e.Stage = "BOGUS" }, "unknown stage"},
		{"fetch start without site", func(e *Event) { e.Stage = StageFetchStart }, "requires site"},
		{"fetch done without outcome", func(e *Event) {
			e.Stage = StageFetchDone
			e.Site = "example.com"
		}, "requires outcome"},
		{"negative duration", func(e *Event) { e.Dur = -time.Second }, "duration"},
		{"valid fetch done", func(e *Event) {
			e.Stage = StageFetchDone
			e.Site = "example.com"
			e.Outcome = "success"
		}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			evt := base()
			tc.mutate(&evt)
			err := evt.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestRunUUIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	evt := Event{RunID: UUIDToBytes(id)}
	require.Equal(t, id, evt.RunUUID())
}
