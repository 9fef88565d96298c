package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryJournal implements Journal with an in-memory ring of entries.
// It is used in tests and when no journal path is configured.
type MemoryJournal struct {
	mu         sync.RWMutex
	entries    []*Entry
	maxEntries int
	closed     bool
}

// NewMemoryJournal creates an in-memory journal retaining up to maxEntries
// events. A non-positive limit defaults to 1000.
func NewMemoryJournal(maxEntries int) *MemoryJournal {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryJournal{maxEntries: maxEntries}
}

// Append stores a usage event, discarding the oldest when full.
func (j *MemoryJournal) Append(_ context.Context, entry *Entry) error {
	if entry == nil {
		return &StorageError{Op: "append", Err: errNilEntry}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}

	stored := *entry
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}

	j.entries = append(j.entries, &stored)
	if len(j.entries) > j.maxEntries {
		j.entries = j.entries[len(j.entries)-j.maxEntries:]
	}

	return nil
}

// Recent returns the newest entries, most recent first.
func (j *MemoryJournal) Recent(_ context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}

	result := []*Entry{}
	for i := len(j.entries) - 1; i >= 0 && len(result) < limit; i-- {
		copied := *j.entries[i]
		result = append(result, &copied)
	}

	return result, nil
}

// DailyTotals returns per-day usage summaries for the last n days,
// oldest day first.
func (j *MemoryJournal) DailyTotals(_ context.Context, days int) ([]DailySummary, error) {
	if days <= 0 {
		days = 7
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		return nil, ErrClosed
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	byDay := map[string]*DailySummary{}
	var order []string

	for _, e := range j.entries {
		if e.Timestamp.Before(since) {
			continue
		}
		day := e.Timestamp.UTC().Format("2006-01-02")
		s, ok := byDay[day]
		if !ok {
			s = &DailySummary{Date: day}
			byDay[day] = s
			order = append(order, day)
		}
		s.Requests++
		s.TotalTokens += e.TotalTokens
	}

	// Entries arrive in append order, so days appear oldest first.
	summaries := make([]DailySummary, 0, len(order))
	for _, day := range order {
		summaries = append(summaries, *byDay[day])
	}

	return summaries, nil
}

// Close marks the journal closed.
func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}
