package browser

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/websift/websift/internal/fetch"
)

// newIdleSession builds a Session around stub contexts without launching
// Chrome. Only the actor lifecycle is exercised.
func newIdleSession() *Session {
	s := &Session{
		allocCancel:   func() {},
		browserCtx:    context.Background(),
		browserCancel: func() {},
		logger:        zap.NewNop(),
		requests:      make(chan pageRequest),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go s.run()
	return s
}

func TestSessionNewPageAfterClose(t *testing.T) {
	t.Parallel()

	s := newIdleSession()
	require.NoError(t, s.Close(context.Background()))

	_, err := s.NewPage(context.Background())
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionCloseIdempotent(t *testing.T) {
	t.Parallel()

	s := newIdleSession()
	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))
}

func TestOpenPageRejectsCanceledContext(t *testing.T) {
	t.Parallel()

	s := newIdleSession()
	defer func() { _ = s.Close(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := s.openPage(ctx)
	require.Error(t, rep.err)
	require.Nil(t, rep.page)
}

func TestPageCloseIdempotent(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := newPage(ctx, cancel, "", zap.NewNop())

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	select {
	case <-ctx.Done():
	default:
		t.Fatal("close did not cancel the tab context")
	}
}

func TestPageSettleZeroIsNoop(t *testing.T) {
	t.Parallel()

	// A non-positive settle returns without touching the tab, so even a
	// closed page succeeds.
	ctx, cancel := context.WithCancel(context.Background())
	p := newPage(ctx, cancel, "", zap.NewNop())
	require.NoError(t, p.Close())

	require.NoError(t, p.Settle(context.Background(), 0))
	require.NoError(t, p.Settle(context.Background(), -time.Second))
}

func TestWaitTasksTiers(t *testing.T) {
	t.Parallel()

	// DOM-ready waits for body attachment only; full-load adds the
	// readyState poll.
	require.Len(t, waitTasks(fetch.WaitDOMReady), 1)
	require.Len(t, waitTasks(fetch.WaitFullLoad), 2)
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	var fired atomic.Bool
	parent, cancelParent := context.WithCancel(context.Background())
	stop := forwardCancel(parent, func() { fired.Store(true) })
	defer stop()

	cancelParent()
	require.Eventually(t, func() bool { return fired.Load() }, time.Second, time.Millisecond)
}

func TestForwardCancelStopPreventsPropagation(t *testing.T) {
	t.Parallel()

	var fired atomic.Bool
	parent, cancelParent := context.WithCancel(context.Background())
	stop := forwardCancel(parent, func() { fired.Store(true) })
	stop()
	cancelParent()

	time.Sleep(20 * time.Millisecond)
	require.False(t, fired.Load())
}
