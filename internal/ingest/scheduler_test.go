package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockwire/news-curator/internal/datasources/memory"
	"github.com/blockwire/news-curator/internal/domain"
)

func testCtx() context.Context {
	return domain.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// scriptedFetcher returns its configured articles or error, counting calls.
// A non-nil started/release pair lets a test hold a cycle in flight.
type scriptedFetcher struct {
	mu       sync.Mutex
	articles []domain.Article
	err      error
	calls    int

	started chan struct{}
	release chan struct{}
}

func (f *scriptedFetcher) FetchLatest(ctx context.Context) ([]domain.Article, error) {
	f.mu.Lock()
	f.calls++
	articles, err := f.articles, f.err
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		close(started)
		f.mu.Lock()
		f.started = nil
		f.mu.Unlock()
	}
	if release != nil {
		<-release
	}

	return articles, err
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *scriptedFetcher) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) recorded() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func testSchedulerConfig() Config {
	return Config{
		NormalInterval:     time.Hour,
		IntensiveInterval:  time.Minute,
		IntensiveStartHour: 5,
		IntensiveEndHour:   5, // window disabled
		BackoffMultiplier:  2,
		MaxBackoff:         100 * time.Hour,
		RetryAttempts:      3,
		RetryBaseDelay:     time.Millisecond,
	}
}

func newTestScheduler(t *testing.T, fetcher *scriptedFetcher, cfg Config) (*Scheduler, *memory.Repository) {
	t.Helper()

	repo := memory.New()
	store, err := NewStore(repo, &recordingInvalidator{}, testQuotas())
	require.NoError(t, err)

	return NewScheduler(fetcher, store, cfg), repo
}

func TestScheduler_StartStopIdempotent(t *testing.T) {
	ctx := testCtx()
	s, _ := newTestScheduler(t, &scriptedFetcher{}, testSchedulerConfig())

	s.Start(ctx)
	require.True(t, s.Status().Running)
	firstNextRun := s.Status().NextRunAt

	// Second start is a logged no-op that leaves the schedule untouched.
	s.Start(ctx)
	assert.Equal(t, firstNextRun, s.Status().NextRunAt)

	s.Stop(ctx)
	assert.False(t, s.Status().Running)
	assert.True(t, s.Status().NextRunAt.IsZero())

	// Second stop is also a no-op.
	s.Stop(ctx)
	assert.False(t, s.Status().Running)
}

func TestScheduler_TriggerUpdateWhenStopped(t *testing.T) {
	s, _ := newTestScheduler(t, &scriptedFetcher{}, testSchedulerConfig())

	err := s.TriggerUpdate(testCtx())
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestScheduler_SuccessfulCycle(t *testing.T) {
	ctx := testCtx()
	published := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	fetcher := &scriptedFetcher{
		articles: []domain.Article{
			testArticle(1, "solana", false, published),
			testArticle(2, domain.NetworkGeneric, true, published),
		},
	}
	s, repo := newTestScheduler(t, fetcher, testSchedulerConfig())

	recorder := &eventRecorder{}
	s.Subscribe(recorder.record)

	s.Start(ctx)
	defer s.Stop(ctx)

	require.NoError(t, s.TriggerUpdate(ctx))

	status := s.Status()
	assert.Equal(t, int64(1), status.Metrics.CyclesRun)
	assert.Equal(t, int64(1), status.Metrics.CyclesSucceeded)
	assert.Equal(t, int64(2), status.Metrics.ItemsProcessed)
	assert.Zero(t, status.ConsecutiveFailures)
	assert.False(t, status.LastSuccessAt.IsZero())

	count, err := repo.CountArticles(context.Background(), domain.FilterAll())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	events := recorder.recorded()
	require.Len(t, events, 1)
	succeeded, ok := events[0].(EventCycleSucceeded)
	require.True(t, ok)
	assert.Equal(t, 2, succeeded.Items)
}

func TestScheduler_RetryExhaustionIsOneCycleFailure(t *testing.T) {
	ctx := testCtx()
	fetcher := &scriptedFetcher{err: errors.New("upstream down")}
	s, _ := newTestScheduler(t, fetcher, testSchedulerConfig())

	s.Start(ctx)
	defer s.Stop(ctx)

	require.NoError(t, s.TriggerUpdate(ctx))

	assert.Equal(t, 3, fetcher.callCount(), "bounded retry inside one cycle")

	status := s.Status()
	assert.Equal(t, int64(1), status.Metrics.CyclesRun)
	assert.Equal(t, int64(1), status.Metrics.CyclesFailed)
	assert.Equal(t, 1, status.ConsecutiveFailures)
}

func TestScheduler_ConsecutiveFailuresBackoffAndAlert(t *testing.T) {
	ctx := testCtx()
	fetcher := &scriptedFetcher{err: errors.New("upstream down")}
	cfg := testSchedulerConfig()
	s, _ := newTestScheduler(t, fetcher, cfg)

	recorder := &eventRecorder{}
	s.Subscribe(recorder.record)

	s.Start(ctx)
	defer s.Stop(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.TriggerUpdate(ctx))
	}

	status := s.Status()
	assert.Equal(t, 5, status.ConsecutiveFailures)
	assert.Equal(t, int64(5), status.Metrics.CyclesFailed)

	// min(1h * 2^5, 100h) = 32h.
	assert.Equal(t, 32*time.Hour, s.CalculateInterval())

	var alerts []EventFailureAlert
	for _, e := range recorder.recorded() {
		if alert, ok := e.(EventFailureAlert); ok {
			alerts = append(alerts, alert)
		}
	}
	require.Len(t, alerts, 1, "alert fires once the streak reaches the threshold")
	assert.Equal(t, 5, alerts[0].ConsecutiveFailures)
}

func TestScheduler_BackoffCappedAtMax(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.MaxBackoff = 4 * time.Hour
	s, _ := newTestScheduler(t, &scriptedFetcher{}, cfg)

	s.mu.Lock()
	s.consecutiveFailures = 9
	s.mu.Unlock()

	assert.Equal(t, 4*time.Hour, s.CalculateInterval())
}

func TestScheduler_BackoffMonotonic(t *testing.T) {
	s, _ := newTestScheduler(t, &scriptedFetcher{}, testSchedulerConfig())

	prev := time.Duration(0)
	for k := 1; k <= 12; k++ {
		s.mu.Lock()
		s.consecutiveFailures = k
		s.mu.Unlock()

		interval := s.CalculateInterval()
		assert.GreaterOrEqual(t, interval, prev, "interval must be non-decreasing in the failure count")
		assert.LessOrEqual(t, interval, 100*time.Hour)
		prev = interval
	}
}

func TestScheduler_SuccessResetsBackoff(t *testing.T) {
	ctx := testCtx()
	fetcher := &scriptedFetcher{err: errors.New("upstream down")}
	s, _ := newTestScheduler(t, fetcher, testSchedulerConfig())

	s.Start(ctx)
	defer s.Stop(ctx)

	require.NoError(t, s.TriggerUpdate(ctx))
	require.NoError(t, s.TriggerUpdate(ctx))
	require.Equal(t, 2, s.Status().ConsecutiveFailures)

	fetcher.setError(nil)
	require.NoError(t, s.TriggerUpdate(ctx))

	assert.Zero(t, s.Status().ConsecutiveFailures)
	assert.Equal(t, time.Hour, s.CalculateInterval())
}

func TestScheduler_StopDoesNotPreemptInFlightCycle(t *testing.T) {
	ctx := testCtx()
	fetcher := &scriptedFetcher{
		articles: []domain.Article{
			testArticle(1, domain.NetworkGeneric, false, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s, _ := newTestScheduler(t, fetcher, testSchedulerConfig())

	s.Start(ctx)

	done := make(chan error, 1)
	go func() {
		done <- s.TriggerUpdate(ctx)
	}()

	<-fetcher.started
	s.Stop(ctx)
	close(fetcher.release)

	require.NoError(t, <-done)

	status := s.Status()
	assert.Equal(t, int64(1), status.Metrics.CyclesRun, "in-flight cycle ran to completion")
	assert.Equal(t, int64(1), status.Metrics.CyclesSucceeded)
	assert.False(t, status.Running)
	assert.True(t, status.NextRunAt.IsZero(), "no further cycle scheduled after stop")
}

func TestScheduler_NaturalTickRunsCycle(t *testing.T) {
	ctx := testCtx()
	fetcher := &scriptedFetcher{}
	cfg := testSchedulerConfig()
	cfg.NormalInterval = 20 * time.Millisecond
	s, _ := newTestScheduler(t, fetcher, cfg)

	cycleRan := make(chan struct{}, 1)
	s.Subscribe(func(e Event) {
		if _, ok := e.(EventCycleSucceeded); ok {
			select {
			case cycleRan <- struct{}{}:
			default:
			}
		}
	})

	s.Start(ctx)
	defer s.Stop(ctx)

	select {
	case <-cycleRan:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired an ingestion cycle")
	}
}

func TestScheduler_CalculateInterval_IntensiveWindow(t *testing.T) {
	cases := []struct {
		name     string
		hour     int
		failures int
		want     time.Duration
	}{
		{name: "inside_window", hour: 14, failures: 0, want: time.Minute},
		{name: "before_window", hour: 8, failures: 0, want: time.Hour},
		{name: "after_window", hour: 22, failures: 0, want: time.Hour},
		{name: "backoff_ignores_window", hour: 14, failures: 1, want: 2 * time.Hour},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testSchedulerConfig()
			cfg.IntensiveStartHour = 13
			cfg.IntensiveEndHour = 21
			s, _ := newTestScheduler(t, &scriptedFetcher{}, cfg)

			s.now = func() time.Time {
				return time.Date(2025, 3, 1, tc.hour, 30, 0, 0, time.UTC)
			}
			s.mu.Lock()
			s.consecutiveFailures = tc.failures
			s.mu.Unlock()

			assert.Equal(t, tc.want, s.CalculateInterval())
		})
	}
}

func TestScheduler_IntensiveWindowWrapsMidnight(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.IntensiveStartHour = 22
	cfg.IntensiveEndHour = 2
	s, _ := newTestScheduler(t, &scriptedFetcher{}, cfg)

	s.now = func() time.Time {
		return time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)
	}
	assert.Equal(t, time.Minute, s.CalculateInterval())

	s.now = func() time.Time {
		return time.Date(2025, 3, 1, 1, 0, 0, 0, time.UTC)
	}
	assert.Equal(t, time.Minute, s.CalculateInterval())

	s.now = func() time.Time {
		return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	assert.Equal(t, time.Hour, s.CalculateInterval())
}

func TestScheduler_ApplyConfig(t *testing.T) {
	ctx := testCtx()
	s, _ := newTestScheduler(t, &scriptedFetcher{}, testSchedulerConfig())

	recorder := &eventRecorder{}
	s.Subscribe(recorder.record)

	newCfg := testSchedulerConfig()
	newCfg.NormalInterval = 30 * time.Minute
	newCfg.RetryAttempts = 5
	s.ApplyConfig(ctx, newCfg)

	status := s.Status()
	assert.Equal(t, (30 * time.Minute).String(), status.NormalInterval)
	assert.Equal(t, 5, status.RetryAttempts)

	events := recorder.recorded()
	require.Len(t, events, 1)
	applied, ok := events[0].(EventConfigApplied)
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, applied.Config.NormalInterval)
}

func TestScheduler_Healthy(t *testing.T) {
	ctx := testCtx()
	s, _ := newTestScheduler(t, &scriptedFetcher{}, testSchedulerConfig())

	assert.False(t, s.Healthy(), "stopped scheduler is unhealthy")

	s.Start(ctx)
	defer s.Stop(ctx)
	assert.True(t, s.Healthy())

	s.mu.Lock()
	s.consecutiveFailures = unhealthyFailureThreshold
	s.mu.Unlock()
	assert.False(t, s.Healthy(), "failure streak at threshold is unhealthy")

	s.mu.Lock()
	s.consecutiveFailures = 0
	s.lastSuccessAt = time.Now().Add(-201 * time.Hour)
	s.mu.Unlock()
	assert.False(t, s.Healthy(), "stale last success is unhealthy")
}
