// Package quota implements token quota tracking for GigaChat requests.
//
// The tracker enforces three limits: a per-request ceiling, a calendar-day
// budget, and a calendar-month budget. Checks are evaluated in that order
// and the first violated scope is reported. Daily and monthly counters
// reset independently when their calendar window advances; the reset is
// applied lazily before every check and record, and eagerly by the
// Scheduler so that idle processes still roll their windows over.
//
// # Usage
//
//	tracker, err := quota.NewTracker(quota.DefaultLimits(),
//	    quota.WithStore(store),
//	)
//
//	// Before calling the API
//	decision, err := tracker.CanSpend(estimatedTokens)
//	if !decision.Allowed {
//	    // Handle quota exceeded
//	}
//
//	// After the API responds
//	err = tracker.Record(ctx, usage.TotalTokens)
//
// Counter state survives restarts when a persistent Store (SQLiteStore) is
// configured. With the default MemoryStore, counters start from zero each
// process.
package quota
