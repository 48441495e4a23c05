package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/blockwire/news-curator/internal/datasources"
	"github.com/blockwire/news-curator/internal/domain"
)

const (
	// consecutiveFailureAlertThreshold is the failure streak at which a
	// distinct alert event is emitted for external monitoring.
	consecutiveFailureAlertThreshold = 5

	// unhealthyFailureThreshold is the failure streak at which Healthy
	// reports false.
	unhealthyFailureThreshold = 10
)

// ErrNotRunning is returned by TriggerUpdate when the scheduler is stopped.
var ErrNotRunning = errors.New("scheduler is not running")

// Config is the immutable scheduler configuration. ApplyConfig swaps the
// whole value; individual fields are never mutated in place.
type Config struct {
	// NormalInterval is the cadence outside the intensive window.
	NormalInterval time.Duration
	// IntensiveInterval is the cadence inside the intensive window, when
	// upstream sources publish most heavily.
	IntensiveInterval time.Duration
	// IntensiveStartHour and IntensiveEndHour bound the intensive window,
	// [start, end) in Location hours. A start after the end wraps midnight.
	IntensiveStartHour int
	IntensiveEndHour   int
	Location           *time.Location

	BackoffMultiplier float64
	MaxBackoff        time.Duration

	// RetryAttempts bounds fetch retries within one cycle.
	RetryAttempts int
	// RetryBaseDelay scales the exponential delay between fetch attempts.
	RetryBaseDelay time.Duration
}

// Normalize fills zero fields with defaults.
func (c Config) Normalize() Config {
	if c.NormalInterval <= 0 {
		c.NormalInterval = 10 * time.Minute
	}
	if c.IntensiveInterval <= 0 {
		c.IntensiveInterval = 2 * time.Minute
	}
	if c.IntensiveEndHour == 0 && c.IntensiveStartHour == 0 {
		c.IntensiveStartHour = 13
		c.IntensiveEndHour = 21
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = 2
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 2 * time.Hour
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	return c
}

// Metrics accumulates per-process cycle counters. Reset on restart.
type Metrics struct {
	CyclesRun         int64         `json:"cycles_run"`
	CyclesSucceeded   int64         `json:"cycles_succeeded"`
	CyclesFailed      int64         `json:"cycles_failed"`
	ItemsProcessed    int64         `json:"items_processed"`
	LastCycleDuration time.Duration `json:"last_cycle_duration"`
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Running             bool      `json:"running"`
	CurrentInterval     string    `json:"current_interval"`
	NextRunAt           time.Time `json:"next_run_at"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccessAt       time.Time `json:"last_success_at"`
	Metrics             Metrics   `json:"metrics"`
	NormalInterval      string    `json:"normal_interval"`
	IntensiveInterval   string    `json:"intensive_interval"`
	MaxBackoff          string    `json:"max_backoff"`
	RetryAttempts       int       `json:"retry_attempts"`
}

// Scheduler drives ingestion cycles on an adaptive cadence: fetch, admit
// through the quota store, then reschedule. Failures shape the next
// interval through exponential backoff but never escape the scheduler.
type Scheduler struct {
	fetcher datasources.Fetcher
	store   *Store

	// busy makes cycles non-reentrant: a manual trigger racing a natural
	// tick waits rather than running a second admission pass.
	busy sync.Mutex

	mu                  sync.Mutex
	cfg                 Config
	running             bool
	timer               *time.Timer
	currentInterval     time.Duration
	nextRunAt           time.Time
	consecutiveFailures int
	lastSuccessAt       time.Time
	metrics             Metrics
	observers           []func(Event)

	now func() time.Time
}

func NewScheduler(fetcher datasources.Fetcher, store *Store, cfg Config) *Scheduler {
	return &Scheduler{
		fetcher: fetcher,
		store:   store,
		cfg:     cfg.Normalize(),
		now:     time.Now,
	}
}

// Subscribe registers an observer for scheduler events.
func (s *Scheduler) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start schedules the first cycle. Starting an already-running scheduler is
// a logged no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		domain.LoggerFromContext(ctx).WarnContext(ctx, "scheduler already running, ignoring start")
		return
	}

	s.running = true
	s.lastSuccessAt = s.now()
	s.scheduleLocked(ctx)

	domain.LoggerFromContext(ctx).InfoContext(ctx, "scheduler started",
		"interval", s.currentInterval.String())
}

// Stop cancels the pending timer. An in-flight cycle is not preempted; it
// runs to completion and then does not reschedule. Stopping an already
// stopped scheduler is a logged no-op.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		domain.LoggerFromContext(ctx).WarnContext(ctx, "scheduler not running, ignoring stop")
		return
	}

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.running = false
	s.nextRunAt = time.Time{}

	domain.LoggerFromContext(ctx).InfoContext(ctx, "scheduler stopped")
}

// TriggerUpdate cancels the pending timer and runs a cycle immediately,
// exactly as a natural tick would.
func (s *Scheduler) TriggerUpdate(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.performUpdate(ctx)
	return nil
}

// CalculateInterval returns the interval the next cycle would be scheduled
// at, given the current failure streak and time of day.
func (s *Scheduler) CalculateInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intervalLocked(s.now())
}

func (s *Scheduler) intervalLocked(now time.Time) time.Duration {
	if s.consecutiveFailures > 0 {
		factor := math.Pow(s.cfg.BackoffMultiplier, float64(s.consecutiveFailures))
		if factor >= float64(s.cfg.MaxBackoff)/float64(s.cfg.NormalInterval) {
			return s.cfg.MaxBackoff
		}
		return time.Duration(float64(s.cfg.NormalInterval) * factor)
	}

	if s.inIntensiveWindow(now) {
		return s.cfg.IntensiveInterval
	}
	return s.cfg.NormalInterval
}

func (s *Scheduler) inIntensiveWindow(now time.Time) bool {
	hour := now.In(s.cfg.Location).Hour()
	start, end := s.cfg.IntensiveStartHour, s.cfg.IntensiveEndHour
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// scheduleLocked arms the timer for the next cycle. Callers hold s.mu.
func (s *Scheduler) scheduleLocked(ctx context.Context) {
	interval := s.intervalLocked(s.now())
	s.currentInterval = interval
	s.nextRunAt = s.now().Add(interval)

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(interval, func() {
		s.onTick(ctx)
	})
}

func (s *Scheduler) onTick(ctx context.Context) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}
	s.performUpdate(ctx)
}

// performUpdate runs one full ingestion cycle: fetch with bounded retry,
// admit the batch, record the outcome, and reschedule. It never returns an
// error; all failures end in handleFailure.
func (s *Scheduler) performUpdate(ctx context.Context) {
	s.busy.Lock()
	defer s.busy.Unlock()

	start := s.now()

	articles, err := s.fetchWithRetry(ctx)
	if err != nil {
		s.handleFailure(ctx, err, start)
	} else {
		committed, err := s.store.InsertWithLimits(ctx, articles)
		if err != nil {
			s.handleFailure(ctx, err, start)
		} else {
			s.handleSuccess(ctx, len(committed), start)
		}
	}

	s.mu.Lock()
	if s.running {
		s.scheduleLocked(ctx)
	}
	s.mu.Unlock()
}

// fetchWithRetry calls the fetcher up to RetryAttempts times with an
// exponentially growing delay between attempts.
func (s *Scheduler) fetchWithRetry(ctx context.Context) ([]domain.Article, error) {
	s.mu.Lock()
	attempts := s.cfg.RetryAttempts
	baseDelay := s.cfg.RetryBaseDelay
	s.mu.Unlock()

	logger := domain.LoggerFromContext(ctx)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		articles, err := s.fetcher.FetchLatest(ctx)
		if err == nil {
			return articles, nil
		}
		lastErr = err

		logger.WarnContext(ctx, "fetch attempt failed",
			"attempt", attempt, "max_attempts", attempts, "error", err)

		if attempt == attempts {
			break
		}

		delay := baseDelay * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", attempts, lastErr)
}

func (s *Scheduler) handleSuccess(ctx context.Context, count int, start time.Time) {
	duration := s.now().Sub(start)

	s.mu.Lock()
	s.consecutiveFailures = 0
	s.lastSuccessAt = s.now()
	s.metrics.CyclesRun++
	s.metrics.CyclesSucceeded++
	s.metrics.ItemsProcessed += int64(count)
	s.metrics.LastCycleDuration = duration
	observers := s.observersLocked()
	s.mu.Unlock()

	domain.LoggerFromContext(ctx).InfoContext(ctx, "ingestion cycle succeeded",
		"items", count, "duration", duration.String())

	emit(observers, EventCycleSucceeded{Items: count, Duration: duration})
}

func (s *Scheduler) handleFailure(ctx context.Context, err error, start time.Time) {
	duration := s.now().Sub(start)

	s.mu.Lock()
	s.consecutiveFailures++
	failures := s.consecutiveFailures
	s.metrics.CyclesRun++
	s.metrics.CyclesFailed++
	s.metrics.LastCycleDuration = duration
	observers := s.observersLocked()
	s.mu.Unlock()

	domain.LoggerFromContext(ctx).ErrorContext(ctx, "ingestion cycle failed",
		"consecutive_failures", failures, "duration", duration.String(), "error", err)

	emit(observers, EventCycleFailed{
		Err:                 err.Error(),
		ConsecutiveFailures: failures,
		Duration:            duration,
	})

	if failures >= consecutiveFailureAlertThreshold {
		domain.LoggerFromContext(ctx).ErrorContext(ctx, "consecutive failure threshold reached",
			"consecutive_failures", failures)
		emit(observers, EventFailureAlert{ConsecutiveFailures: failures})
	}
}

// ApplyConfig swaps in a new configuration. The pending timer keeps its
// current deadline; the new intervals take effect from the next reschedule.
func (s *Scheduler) ApplyConfig(ctx context.Context, cfg Config) {
	cfg = cfg.Normalize()

	s.mu.Lock()
	s.cfg = cfg
	observers := s.observersLocked()
	s.mu.Unlock()

	domain.LoggerFromContext(ctx).InfoContext(ctx, "scheduler configuration applied",
		"normal_interval", cfg.NormalInterval.String(),
		"intensive_interval", cfg.IntensiveInterval.String(),
		"max_backoff", cfg.MaxBackoff.String(),
		"retry_attempts", cfg.RetryAttempts)

	emit(observers, EventConfigApplied{Config: cfg})
}

// Status returns a snapshot of the scheduler. Pure read.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Running:             s.running,
		CurrentInterval:     s.currentInterval.String(),
		NextRunAt:           s.nextRunAt,
		ConsecutiveFailures: s.consecutiveFailures,
		LastSuccessAt:       s.lastSuccessAt,
		Metrics:             s.metrics,
		NormalInterval:      s.cfg.NormalInterval.String(),
		IntensiveInterval:   s.cfg.IntensiveInterval.String(),
		MaxBackoff:          s.cfg.MaxBackoff.String(),
		RetryAttempts:       s.cfg.RetryAttempts,
	}
}

// Healthy reports whether the scheduler is running, below the failure
// threshold, and has succeeded recently enough.
func (s *Scheduler) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	if s.consecutiveFailures >= unhealthyFailureThreshold {
		return false
	}
	return s.now().Sub(s.lastSuccessAt) < 2*s.cfg.MaxBackoff
}

func (s *Scheduler) observersLocked() []func(Event) {
	observers := make([]func(Event), len(s.observers))
	copy(observers, s.observers)
	return observers
}

func emit(observers []func(Event), e Event) {
	for _, fn := range observers {
		fn(e)
	}
}
