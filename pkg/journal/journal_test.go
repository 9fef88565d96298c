package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// ============================================================================
// Test Helpers
// ============================================================================

func newTestSQLiteJournal(t *testing.T, maxEntries int) *SQLiteJournal {
	t.Helper()

	j, err := NewSQLiteJournal(&SQLiteConfig{
		Path:       filepath.Join(t.TempDir(), "usage.db"),
		MaxEntries: maxEntries,
	})
	if err != nil {
		t.Fatalf("NewSQLiteJournal failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func testEntry(tokens int) *Entry {
	return &Entry{
		Operation:        "text_formatting",
		Model:            "GigaChat:latest",
		PromptTokens:     tokens / 2,
		CompletionTokens: tokens - tokens/2,
		TotalTokens:      tokens,
	}
}

// journalImpls runs a subtest against both journal implementations.
func journalImpls(t *testing.T, fn func(t *testing.T, j Journal)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		j := NewMemoryJournal(1000)
		defer j.Close()
		fn(t, j)
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newTestSQLiteJournal(t, 1000))
	})
}

// ============================================================================
// Append and Recent Tests
// ============================================================================

func TestJournal_AppendAndRecent(t *testing.T) {
	journalImpls(t, func(t *testing.T, j Journal) {
		ctx := context.Background()

		for i := 1; i <= 3; i++ {
			e := testEntry(100 * i)
			e.Timestamp = time.Now().UTC().Add(time.Duration(i) * time.Second)
			if err := j.Append(ctx, e); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}

		entries, err := j.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("Expected 3 entries, got %d", len(entries))
		}

		// Newest first
		if entries[0].TotalTokens != 300 {
			t.Errorf("Expected newest entry first (300 tokens), got %d", entries[0].TotalTokens)
		}
		if entries[2].TotalTokens != 100 {
			t.Errorf("Expected oldest entry last (100 tokens), got %d", entries[2].TotalTokens)
		}
	})
}

func TestJournal_AppendAssignsID(t *testing.T) {
	journalImpls(t, func(t *testing.T, j Journal) {
		ctx := context.Background()

		if err := j.Append(ctx, testEntry(50)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		entries, err := j.Recent(ctx, 1)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if entries[0].ID == "" {
			t.Error("Expected an assigned entry ID")
		}
		if entries[0].Timestamp.IsZero() {
			t.Error("Expected an assigned timestamp")
		}
	})
}

func TestJournal_AppendNilEntry(t *testing.T) {
	journalImpls(t, func(t *testing.T, j Journal) {
		if err := j.Append(context.Background(), nil); err == nil {
			t.Error("Expected error for nil entry")
		}
	})
}

func TestJournal_RecentLimit(t *testing.T) {
	journalImpls(t, func(t *testing.T, j Journal) {
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			e := testEntry(10)
			e.Timestamp = time.Now().UTC().Add(time.Duration(i) * time.Second)
			if err := j.Append(ctx, e); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}

		entries, err := j.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(entries) != 2 {
			t.Errorf("Expected 2 entries, got %d", len(entries))
		}
	})
}

func TestJournal_EmptyRecent(t *testing.T) {
	journalImpls(t, func(t *testing.T, j Journal) {
		entries, err := j.Recent(context.Background(), 10)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("Expected no entries, got %d", len(entries))
		}
	})
}

// ============================================================================
// Retention Tests
// ============================================================================

func TestSQLiteJournal_RetentionTrimsOldest(t *testing.T) {
	j := newTestSQLiteJournal(t, 5)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 8; i++ {
		e := testEntry(i + 1)
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := j.Append(ctx, e); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	entries, err := j.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("Expected retention to keep 5 entries, got %d", len(entries))
	}

	// The newest 5 survive (tokens 4..8).
	if entries[0].TotalTokens != 8 {
		t.Errorf("Expected newest entry retained, got %d tokens", entries[0].TotalTokens)
	}
	if entries[4].TotalTokens != 4 {
		t.Errorf("Expected oldest retained entry with 4 tokens, got %d", entries[4].TotalTokens)
	}
}

func TestMemoryJournal_RetentionTrimsOldest(t *testing.T) {
	j := NewMemoryJournal(3)
	defer j.Close()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		e := testEntry(i)
		e.Timestamp = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := j.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	entries, err := j.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 retained entries, got %d", len(entries))
	}
	if entries[2].TotalTokens != 3 {
		t.Errorf("Expected oldest retained entry with 3 tokens, got %d", entries[2].TotalTokens)
	}
}

// ============================================================================
// Daily Totals Tests
// ============================================================================

func TestJournal_DailyTotals(t *testing.T) {
	journalImpls(t, func(t *testing.T, j Journal) {
		ctx := context.Background()
		now := time.Now().UTC()

		// Two events yesterday, one today.
		yesterday := now.AddDate(0, 0, -1)
		for _, e := range []*Entry{
			{Operation: "text_formatting", TotalTokens: 100, Timestamp: yesterday},
			{Operation: "text_formatting", TotalTokens: 200, Timestamp: yesterday.Add(time.Minute)},
			{Operation: "text_formatting", TotalTokens: 50, Timestamp: now},
		} {
			if err := j.Append(ctx, e); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}

		summaries, err := j.DailyTotals(ctx, 7)
		if err != nil {
			t.Fatalf("DailyTotals failed: %v", err)
		}
		if len(summaries) != 2 {
			t.Fatalf("Expected 2 day summaries, got %d", len(summaries))
		}

		if summaries[0].Date != yesterday.Format("2006-01-02") {
			t.Errorf("Expected oldest day first, got %s", summaries[0].Date)
		}
		if summaries[0].Requests != 2 || summaries[0].TotalTokens != 300 {
			t.Errorf("Unexpected yesterday summary: %+v", summaries[0])
		}
		if summaries[1].Requests != 1 || summaries[1].TotalTokens != 50 {
			t.Errorf("Unexpected today summary: %+v", summaries[1])
		}
	})
}

func TestJournal_DailyTotalsExcludesOldEvents(t *testing.T) {
	journalImpls(t, func(t *testing.T, j Journal) {
		ctx := context.Background()

		old := testEntry(500)
		old.Timestamp = time.Now().UTC().AddDate(0, 0, -30)
		if err := j.Append(ctx, old); err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		summaries, err := j.DailyTotals(ctx, 7)
		if err != nil {
			t.Fatalf("DailyTotals failed: %v", err)
		}
		if len(summaries) != 0 {
			t.Errorf("Expected events outside the window excluded, got %d summaries", len(summaries))
		}
	})
}

// ============================================================================
// Lifecycle Tests
// ============================================================================

func TestSQLiteJournal_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usage.db")
	ctx := context.Background()

	j1, err := NewSQLiteJournal(&SQLiteConfig{Path: path, MaxEntries: 100})
	if err != nil {
		t.Fatalf("NewSQLiteJournal failed: %v", err)
	}
	if err := j1.Append(ctx, testEntry(42)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := j1.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	j2, err := NewSQLiteJournal(&SQLiteConfig{Path: path, MaxEntries: 100})
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer j2.Close()

	entries, err := j2.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 || entries[0].TotalTokens != 42 {
		t.Errorf("Expected persisted entry to survive reopen, got %+v", entries)
	}
}

func TestSQLiteJournal_EmptyPathRejected(t *testing.T) {
	if _, err := NewSQLiteJournal(&SQLiteConfig{Path: ""}); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestSQLiteJournal_CloseIdempotent(t *testing.T) {
	j := newTestSQLiteJournal(t, 100)
	if err := j.Close(); err != nil {
		t.Fatalf("First Close failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}

func TestMemoryJournal_ClosedRejectsOperations(t *testing.T) {
	j := NewMemoryJournal(10)
	j.Close()

	if err := j.Append(context.Background(), testEntry(1)); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := j.Recent(context.Background(), 1); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
