package quota

import (
	"errors"
	"fmt"
	"time"
)

// Scope identifies the accounting window a limit applies to.
type Scope string

const (
	// ScopeRequest is the ceiling for a single request. It is stateless:
	// no counter accumulates, only the proposed spend is checked.
	ScopeRequest Scope = "request"

	// ScopeDaily is the calendar-day budget.
	ScopeDaily Scope = "daily"

	// ScopeMonthly is the calendar-month budget.
	ScopeMonthly Scope = "monthly"
)

// AlertLevel indicates how close a counter is to its limit.
type AlertLevel string

const (
	// AlertNone means usage is below the warning threshold.
	AlertNone AlertLevel = "none"

	// AlertWarning means usage reached the warning threshold.
	AlertWarning AlertLevel = "warning"

	// AlertCritical means usage reached the critical threshold.
	AlertCritical AlertLevel = "critical"
)

// Limits contains the token limits for all scopes.
// A zero limit disables enforcement for that scope.
type Limits struct {
	// Request is the maximum tokens a single request may spend.
	// Default: 2000
	Request int `yaml:"request"`

	// Daily is the token budget per calendar day.
	// Default: 10000
	Daily int `yaml:"daily"`

	// Monthly is the token budget per calendar month.
	// Default: 100000
	Monthly int `yaml:"monthly"`

	// WarnThreshold is the usage fraction (0.0-1.0) at which a warning
	// alert is raised for daily/monthly budgets.
	// Default: 0.8
	WarnThreshold float64 `yaml:"warn_threshold"`

	// CriticalThreshold is the usage fraction (0.0-1.0) at which a
	// critical alert is raised for daily/monthly budgets.
	// Default: 0.9
	CriticalThreshold float64 `yaml:"critical_threshold"`
}

// DefaultLimits returns the standard GigaChat account limits.
func DefaultLimits() Limits {
	return Limits{
		Request:           2000,
		Daily:             10000,
		Monthly:           100000,
		WarnThreshold:     0.8,
		CriticalThreshold: 0.9,
	}
}

// State is the persisted counter state for the daily and monthly windows.
// The request scope has no state.
type State struct {
	// DailyUsed is the number of tokens spent in the current day window.
	DailyUsed int `json:"daily_used"`

	// MonthlyUsed is the number of tokens spent in the current month window.
	MonthlyUsed int `json:"monthly_used"`

	// DailyWindowStart is the start of the current day window (midnight).
	DailyWindowStart time.Time `json:"daily_window_start"`

	// MonthlyWindowStart is the start of the current month window
	// (first of the month, midnight).
	MonthlyWindowStart time.Time `json:"monthly_window_start"`
}

// Decision is the result of a quota check.
type Decision struct {
	// Allowed indicates whether the proposed spend may proceed.
	Allowed bool

	// Scope is the first violated scope when Allowed is false,
	// checked in order: request, daily, monthly.
	Scope Scope

	// Requested is the proposed token spend.
	Requested int

	// Used is the tokens already consumed in the violated scope
	// (zero for the request scope).
	Used int

	// Limit is the configured limit for the violated scope.
	Limit int

	// Remaining is the tokens left in the violated scope before the check.
	Remaining int

	// Reset is when the violated scope's window resets.
	// Zero for the request scope, which never resets.
	Reset time.Time

	// Alert is the highest alert level across the daily and monthly
	// budgets at the time of the check.
	Alert AlertLevel
}

// ScopeStatus describes the current usage of a single scope.
type ScopeStatus struct {
	// Scope is the accounting window.
	Scope Scope `json:"scope"`

	// Used is the tokens consumed in the current window.
	Used int `json:"used"`

	// Limit is the configured limit (0 = unlimited).
	Limit int `json:"limit"`

	// Remaining is the tokens left before the limit.
	Remaining int `json:"remaining"`

	// Percentage is Used/Limit (0.0-1.0+), or 0 when unlimited.
	Percentage float64 `json:"percentage"`

	// WindowStart is when the current window began.
	WindowStart time.Time `json:"window_start,omitzero"`

	// Reset is when the window rolls over.
	Reset time.Time `json:"reset,omitzero"`
}

// Sentinel errors for quota violations and caller bugs.
var (
	// ErrQuotaExceeded is the base error for all quota violations.
	// Use errors.Is to match it, and errors.As with *ExceededError to
	// inspect the violated scope.
	ErrQuotaExceeded = errors.New("token quota exceeded")

	// ErrInvalidTokenCount is returned when a negative token count is
	// supplied. This indicates a caller bug and should be logged, not
	// silently ignored.
	ErrInvalidTokenCount = errors.New("invalid token count")
)

// ExceededError reports which scope rejected a proposed spend.
// The violation is recoverable: the caller decides whether to skip the
// request or wait for the window to reset.
type ExceededError struct {
	// Scope is the violated scope.
	Scope Scope

	// Requested is the proposed token spend.
	Requested int

	// Used is the tokens already consumed in the scope.
	Used int

	// Limit is the configured limit.
	Limit int

	// Reset is when the scope's window resets (zero for request scope).
	Reset time.Time
}

// Error implements the error interface.
func (e *ExceededError) Error() string {
	if e.Scope == ScopeRequest {
		return fmt.Sprintf("%s quota exceeded: requested %d tokens, limit %d",
			e.Scope, e.Requested, e.Limit)
	}
	return fmt.Sprintf("%s quota exceeded: requested %d tokens, used %d of %d",
		e.Scope, e.Requested, e.Used, e.Limit)
}

// Unwrap returns ErrQuotaExceeded so callers can match with errors.Is.
func (e *ExceededError) Unwrap() error {
	return ErrQuotaExceeded
}
