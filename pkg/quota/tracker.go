package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Tracker tracks token spending against the request, daily, and monthly
// limits.
//
// All three limits are checked together in a fixed order (request, daily,
// monthly) and the first violated scope is reported. CanSpend performs no
// mutation; Record re-validates and updates the daily and monthly counters
// atomically, so a rejected recording leaves all counters unchanged.
//
// Window resets happen lazily: before every check or record the tracker
// compares the clock against each window's start and zeroes counters whose
// calendar day or month has advanced. The daily and monthly windows reset
// independently.
//
// Tracker is safe for concurrent use. The reset, check, and record steps
// execute as a single atomic sequence under the tracker mutex.
type Tracker struct {
	limits Limits

	// state holds the daily/monthly counters and window starts.
	state State

	// store persists state across restarts.
	store Store

	// now is the clock, injectable for deterministic window tests.
	now func() time.Time

	logger  *slog.Logger
	metrics *Metrics

	mu sync.Mutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStore sets the persistence backend. State is loaded from the store
// during NewTracker and saved after every successful recording.
func WithStore(store Store) Option {
	return func(t *Tracker) { t.store = store }
}

// WithClock overrides the tracker's clock. Intended for tests that need
// deterministic window resets without waiting for real time to pass.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger used for threshold alerts and persistence
// failures.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithMetrics enables Prometheus metrics for checks, denials, and usage.
func WithMetrics(metrics *Metrics) Option {
	return func(t *Tracker) { t.metrics = metrics }
}

// NewTracker creates a tracker with the given limits.
//
// Zero limits disable enforcement for their scope. Without WithStore the
// tracker keeps counters in memory only. Persisted state from a previous
// run is loaded and immediately rolled forward if its window has elapsed.
func NewTracker(limits Limits, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		limits: limits,
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.store == nil {
		t.store = NewMemoryStore()
	}

	// Restore persisted counters, if any.
	saved, err := t.store.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load quota state: %w", err)
	}

	now := t.now()
	if saved != nil {
		t.state = *saved
	} else {
		t.state = State{
			DailyWindowStart:   startOfDay(now),
			MonthlyWindowStart: startOfMonth(now),
		}
	}

	t.maybeResetLocked(now)
	t.updateUsageMetricsLocked()

	return t, nil
}

// CanSpend reports whether a proposed token spend is within all limits.
// It performs no mutation. The returned Decision names the first violated
// scope (in order: request, daily, monthly) when denied.
//
// Returns ErrInvalidTokenCount for a negative token count.
func (t *Tracker) CanSpend(tokens int) (*Decision, error) {
	if tokens < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTokenCount, tokens)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetLocked(t.now())

	decision := t.checkLocked(tokens)

	if t.metrics != nil {
		t.metrics.RecordCheck(decision.Allowed)
		if !decision.Allowed {
			t.metrics.RecordDenial(decision.Scope)
		}
	}

	return decision, nil
}

// Record registers an actual token spend against the daily and monthly
// counters.
//
// The spend is re-validated first: if any limit would be violated, no
// counter changes and an *ExceededError naming the violated scope is
// returned. On success both counters increase by exactly tokens and the
// state is persisted to the store (persistence failures are logged, not
// returned, so a flaky disk does not reject usage that already happened).
func (t *Tracker) Record(ctx context.Context, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTokenCount, tokens)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetLocked(t.now())

	decision := t.checkLocked(tokens)
	if !decision.Allowed {
		if t.metrics != nil {
			t.metrics.RecordCheck(false)
			t.metrics.RecordDenial(decision.Scope)
		}
		return &ExceededError{
			Scope:     decision.Scope,
			Requested: tokens,
			Used:      decision.Used,
			Limit:     decision.Limit,
			Reset:     decision.Reset,
		}
	}

	t.state.DailyUsed += tokens
	t.state.MonthlyUsed += tokens

	if t.metrics != nil {
		t.metrics.RecordCheck(true)
		t.metrics.RecordSpend(tokens)
	}
	t.updateUsageMetricsLocked()
	t.logThresholdsLocked()

	if err := t.store.Save(ctx, &t.state); err != nil {
		t.logger.Warn("failed to persist quota state",
			"error", err,
			"daily_used", t.state.DailyUsed,
			"monthly_used", t.state.MonthlyUsed,
		)
	}

	return nil
}

// Rollover applies any pending window resets and persists the state.
// The Scheduler calls this just after midnight so an idle process still
// rolls its windows over and the store reflects the fresh counters.
func (t *Tracker) Rollover(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetLocked(t.now())
	t.updateUsageMetricsLocked()

	if err := t.store.Save(ctx, &t.state); err != nil {
		return fmt.Errorf("failed to persist quota state: %w", err)
	}
	return nil
}

// Status returns the current usage for all scopes, ordered request, daily,
// monthly. Window resets are applied first so the numbers reflect the
// current window.
func (t *Tracker) Status() []ScopeStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.maybeResetLocked(now)

	return []ScopeStatus{
		{
			Scope:     ScopeRequest,
			Limit:     t.limits.Request,
			Remaining: t.limits.Request,
		},
		t.scopeStatusLocked(ScopeDaily),
		t.scopeStatusLocked(ScopeMonthly),
	}
}

// Limits returns the configured limits.
func (t *Tracker) Limits() Limits {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limits
}

// SetLimits replaces the configured limits. Counters are untouched, so a
// lowered budget takes effect against usage already accumulated in the
// current windows.
func (t *Tracker) SetLimits(limits Limits) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.limits = limits
	t.updateUsageMetricsLocked()
	t.logger.Info("quota limits updated",
		"request", limits.Request,
		"daily", limits.Daily,
		"monthly", limits.Monthly,
	)
}

// scopeCheck pairs a scope with its current usage and limit for the
// ordered limit evaluation.
type scopeCheck struct {
	scope Scope
	used  int
	limit int
	reset time.Time
}

// checkLocked evaluates the proposed spend against all scopes in order.
// Caller must hold the mutex and have applied maybeResetLocked.
func (t *Tracker) checkLocked(tokens int) *Decision {
	checks := []scopeCheck{
		{ScopeRequest, 0, t.limits.Request, time.Time{}},
		{ScopeDaily, t.state.DailyUsed, t.limits.Daily, nextDay(t.state.DailyWindowStart)},
		{ScopeMonthly, t.state.MonthlyUsed, t.limits.Monthly, nextMonth(t.state.MonthlyWindowStart)},
	}

	for _, c := range checks {
		if c.limit <= 0 {
			continue
		}
		if c.used+tokens > c.limit {
			return &Decision{
				Allowed:   false,
				Scope:     c.scope,
				Requested: tokens,
				Used:      c.used,
				Limit:     c.limit,
				Remaining: c.limit - c.used,
				Reset:     c.reset,
				Alert:     t.alertLevelLocked(),
			}
		}
	}

	return &Decision{
		Allowed:   true,
		Requested: tokens,
		Alert:     t.alertLevelLocked(),
	}
}

// maybeResetLocked zeroes counters whose calendar window has advanced.
// The daily and monthly windows are independent: a month rollover does not
// touch the daily counter and vice versa. Caller must hold the mutex.
func (t *Tracker) maybeResetLocked(now time.Time) {
	if !sameDay(now, t.state.DailyWindowStart) {
		t.state.DailyUsed = 0
		t.state.DailyWindowStart = startOfDay(now)
		t.logger.Debug("daily quota window reset",
			"window_start", t.state.DailyWindowStart,
		)
	}

	if !sameMonth(now, t.state.MonthlyWindowStart) {
		t.state.MonthlyUsed = 0
		t.state.MonthlyWindowStart = startOfMonth(now)
		t.logger.Debug("monthly quota window reset",
			"window_start", t.state.MonthlyWindowStart,
		)
	}
}

// scopeStatusLocked builds the status for the daily or monthly scope.
// Caller must hold the mutex.
func (t *Tracker) scopeStatusLocked(scope Scope) ScopeStatus {
	var used, limit int
	var windowStart, reset time.Time

	switch scope {
	case ScopeDaily:
		used = t.state.DailyUsed
		limit = t.limits.Daily
		windowStart = t.state.DailyWindowStart
		reset = nextDay(windowStart)
	case ScopeMonthly:
		used = t.state.MonthlyUsed
		limit = t.limits.Monthly
		windowStart = t.state.MonthlyWindowStart
		reset = nextMonth(windowStart)
	}

	status := ScopeStatus{
		Scope:       scope,
		Used:        used,
		Limit:       limit,
		WindowStart: windowStart,
		Reset:       reset,
	}

	if limit > 0 {
		status.Remaining = limit - used
		if status.Remaining < 0 {
			status.Remaining = 0
		}
		status.Percentage = float64(used) / float64(limit)
	}

	return status
}

// alertLevelLocked returns the highest alert level across the daily and
// monthly budgets. Caller must hold the mutex.
func (t *Tracker) alertLevelLocked() AlertLevel {
	level := AlertNone

	for _, s := range []struct {
		used  int
		limit int
	}{
		{t.state.DailyUsed, t.limits.Daily},
		{t.state.MonthlyUsed, t.limits.Monthly},
	} {
		if s.limit <= 0 {
			continue
		}
		pct := float64(s.used) / float64(s.limit)
		if t.limits.CriticalThreshold > 0 && pct >= t.limits.CriticalThreshold {
			return AlertCritical
		}
		if t.limits.WarnThreshold > 0 && pct >= t.limits.WarnThreshold {
			level = AlertWarning
		}
	}

	return level
}

// logThresholdsLocked logs warnings when daily or monthly usage crosses
// the configured thresholds. Caller must hold the mutex.
func (t *Tracker) logThresholdsLocked() {
	for _, s := range []struct {
		scope Scope
		used  int
		limit int
	}{
		{ScopeDaily, t.state.DailyUsed, t.limits.Daily},
		{ScopeMonthly, t.state.MonthlyUsed, t.limits.Monthly},
	} {
		if s.limit <= 0 {
			continue
		}
		pct := float64(s.used) / float64(s.limit)
		switch {
		case t.limits.CriticalThreshold > 0 && pct >= t.limits.CriticalThreshold:
			t.logger.Warn("token budget critically low",
				"scope", s.scope,
				"used", s.used,
				"limit", s.limit,
				"percentage", fmt.Sprintf("%.1f%%", pct*100),
			)
		case t.limits.WarnThreshold > 0 && pct >= t.limits.WarnThreshold:
			t.logger.Warn("token budget warning threshold reached",
				"scope", s.scope,
				"used", s.used,
				"limit", s.limit,
				"percentage", fmt.Sprintf("%.1f%%", pct*100),
			)
		}
	}
}

// updateUsageMetricsLocked refreshes the usage percentage gauges.
// Caller must hold the mutex.
func (t *Tracker) updateUsageMetricsLocked() {
	if t.metrics == nil {
		return
	}
	if t.limits.Daily > 0 {
		t.metrics.UpdateUsage(ScopeDaily, float64(t.state.DailyUsed)/float64(t.limits.Daily))
	}
	if t.limits.Monthly > 0 {
		t.metrics.UpdateUsage(ScopeMonthly, float64(t.state.MonthlyUsed)/float64(t.limits.Monthly))
	}
}
