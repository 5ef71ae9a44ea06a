package fetch

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// behaviorPage derives its behavior from the target URL: "slow" paths block
// until the context is canceled, "bad" paths fail navigation.
type behaviorPage struct {
	session    *behaviorSession
	closeCount atomic.Int32
	settle     atomic.Int64
}

func (p *behaviorPage) Navigate(ctx context.Context, rawURL string, _ WaitMode) error {
	active := p.session.active.Add(1)
	for {
		max := p.session.maxActive.Load()
		if active <= max || p.session.maxActive.CompareAndSwap(max, active) {
			break
		}
	}
	defer p.session.active.Add(-1)

	switch {
	case strings.Contains(rawURL, "slow"):
		<-ctx.Done()
		return ctx.Err()
	case strings.Contains(rawURL, "bad"):
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	default:
		time.Sleep(5 * time.Millisecond)
		return nil
	}
}

func (p *behaviorPage) Settle(_ context.Context, d time.Duration) error {
	p.settle.Store(int64(d))
	return nil
}

func (p *behaviorPage) Content(context.Context) (string, error) {
	return "<html><body>rendered</body></html>", nil
}

func (p *behaviorPage) Close() error {
	p.closeCount.Add(1)
	return nil
}

type behaviorSession struct {
	mu        sync.Mutex
	pages     []*behaviorPage
	active    atomic.Int32
	maxActive atomic.Int32
	closed    atomic.Int32
}

func (s *behaviorSession) NewPage(context.Context) (Page, error) {
	p := &behaviorPage{session: s}
	s.mu.Lock()
	s.pages = append(s.pages, p)
	s.mu.Unlock()
	return p, nil
}

func (s *behaviorSession) Close(context.Context) error {
	s.closed.Add(1)
	return nil
}

func (s *behaviorSession) allPages() []*behaviorPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*behaviorPage(nil), s.pages...)
}

func factoryFor(session Session) SessionFactory {
	return func(context.Context) (Session, error) { return session, nil }
}

func parseAll(t *testing.T, raws ...string) []*url.URL {
	t.Helper()
	urls := make([]*url.URL, 0, len(raws))
	for _, raw := range raws {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		urls = append(urls, u)
	}
	return urls
}

func TestFetchAllPartialFailure(t *testing.T) {
	t.Parallel()

	session := &behaviorSession{}
	orch := NewOrchestrator(factoryFor(session), nil, Config{Concurrency: 3, Timeout: time.Second}, nil, nil)

	urls := parseAll(t,
		"https://ok-one.example/",
		"https://bad.example/",
		"https://ok-two.example/",
	)
	outcomes, err := orch.FetchAll(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	byHost := map[string]Outcome{}
	for _, out := range outcomes {
		byHost[out.URL.Host] = out
	}
	require.True(t, byHost["ok-one.example"].OK())
	require.True(t, byHost["ok-two.example"].OK())
	require.Equal(t, KindContentUnavailable, byHost["bad.example"].Kind)
	require.NotEmpty(t, byHost["bad.example"].Message)
	require.Equal(t, int32(1), session.closed.Load())
}

func TestFetchAllBoundedConcurrency(t *testing.T) {
	t.Parallel()

	session := &behaviorSession{}
	orch := NewOrchestrator(factoryFor(session), nil, Config{Concurrency: 2, Timeout: time.Second}, nil, nil)

	urls := parseAll(t,
		"https://a.example/", "https://b.example/", "https://c.example/",
		"https://d.example/", "https://e.example/", "https://f.example/",
	)
	outcomes, err := orch.FetchAll(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, outcomes, 6)
	require.LessOrEqual(t, session.maxActive.Load(), int32(2))
}

func TestFetchAllTimeoutIsolation(t *testing.T) {
	t.Parallel()

	session := &behaviorSession{}
	orch := NewOrchestrator(factoryFor(session), nil, Config{Concurrency: 2, Timeout: 50 * time.Millisecond}, nil, nil)

	urls := parseAll(t, "https://slow.example/", "https://fast.example/")
	outcomes, err := orch.FetchAll(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	byHost := map[string]Outcome{}
	for _, out := range outcomes {
		byHost[out.URL.Host] = out
	}
	require.Equal(t, KindOperationTimeout, byHost["slow.example"].Kind)
	require.True(t, byHost["fast.example"].OK())

	// The timed-out operation still released its handles before the session
	// was torn down.
	for _, p := range session.allPages() {
		require.Equal(t, int32(1), p.closeCount.Load())
	}
	require.Equal(t, int32(1), session.closed.Load())
}

func TestFetchAllZeroSettleDisablesWait(t *testing.T) {
	t.Parallel()

	session := &behaviorSession{}
	orch := NewOrchestrator(factoryFor(session), nil, Config{Concurrency: 1, Timeout: time.Second, Settle: 0}, nil, nil)

	outcomes, err := orch.FetchAll(context.Background(), parseAll(t, "https://a.example/"))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].OK())

	pages := session.allPages()
	require.Len(t, pages, 1)
	require.Equal(t, int64(0), pages[0].settle.Load())
}

func TestFetchAllNegativeSettleUsesDefault(t *testing.T) {
	t.Parallel()

	session := &behaviorSession{}
	orch := NewOrchestrator(factoryFor(session), nil, Config{Concurrency: 1, Timeout: time.Second, Settle: -time.Second}, nil, nil)

	_, err := orch.FetchAll(context.Background(), parseAll(t, "https://a.example/"))
	require.NoError(t, err)

	pages := session.allPages()
	require.Len(t, pages, 1)
	require.Equal(t, int64(defaultSettle), pages[0].settle.Load())
}

func TestFetchAllParentCancelReportsCanceled(t *testing.T) {
	t.Parallel()

	session := &behaviorSession{}
	orch := NewOrchestrator(factoryFor(session), nil, Config{Concurrency: 1, Timeout: 10 * time.Second}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(25 * time.Millisecond)
		cancel()
	}()

	outcomes, err := orch.FetchAll(ctx, parseAll(t, "https://slow.example/"))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	// A canceled run is not a timeout; downstream counters must keep the two
	// apart.
	require.Equal(t, KindCanceled, outcomes[0].Kind)
	require.Contains(t, outcomes[0].Message, "canceled")
}

func TestFetchAllSessionFactoryFailureAborts(t *testing.T) {
	t.Parallel()

	factory := func(context.Context) (Session, error) {
		return nil, errors.New("chromedp warmup: exec: chrome not found")
	}
	orch := NewOrchestrator(factory, nil, Config{}, nil, nil)

	_, err := orch.FetchAll(context.Background(), parseAll(t, "https://a.example/"))
	require.ErrorContains(t, err, "browser session")
}

func TestFetchAllEmptyInput(t *testing.T) {
	t.Parallel()

	session := &behaviorSession{}
	orch := NewOrchestrator(factoryFor(session), nil, Config{}, nil, nil)

	outcomes, err := orch.FetchAll(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, outcomes)
	require.Equal(t, int32(1), session.closed.Load())
}

func TestFetchAllRecordsElapsed(t *testing.T) {
	t.Parallel()

	session := &behaviorSession{}
	orch := NewOrchestrator(factoryFor(session), nil, Config{Concurrency: 1, Timeout: time.Second}, nil, nil)

	outcomes, err := orch.FetchAll(context.Background(), parseAll(t, "https://a.example/"))
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Greater(t, outcomes[0].Elapsed, time.Duration(0))
}
