package capturestore

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "captures.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenAppliesMigrations(t *testing.T) {
	store := openTestStore(t)

	events, err := store.RecentEvents(10)
	if err != nil {
		t.Fatalf("RecentEvents on fresh store: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("fresh store has %d events, want 0", len(events))
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captures.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := store.Insert(&CaptureEvent{SessionID: "s1", Trigger: "manual", ByteSize: 10}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	store.Close()

	// Reopening an already-migrated database must not fail or lose data.
	store, err = Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer store.Close()

	count, err := store.CountBySession("s1")
	if err != nil {
		t.Fatalf("CountBySession: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 after reopen", count)
	}
}

func TestInsertFillsIDAndTimestamp(t *testing.T) {
	store := openTestStore(t)

	event := &CaptureEvent{SessionID: "s1", Trigger: "auto", Stability: 1.0, ByteSize: 2048}
	if err := store.Insert(event); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if event.ID == "" {
		t.Error("Insert should assign an ID")
	}
	if event.CapturedAtNs == 0 {
		t.Error("Insert should assign a timestamp")
	}
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	store := openTestStore(t)

	event := &CaptureEvent{ID: "fixed", SessionID: "s1", Trigger: "manual"}
	if err := store.Insert(event); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Insert(&CaptureEvent{ID: "fixed", SessionID: "s1", Trigger: "manual"}); err == nil {
		t.Error("expected primary-key violation for duplicate ID")
	}
}

func TestRecentEventsNewestFirst(t *testing.T) {
	store := openTestStore(t)

	for i := 1; i <= 3; i++ {
		event := &CaptureEvent{
			SessionID:        "s1",
			CapturedAtNs:     int64(i) * 1e9,
			BoundaryDetected: true,
			Stability:        0.5,
			Trigger:          "auto",
			ByteSize:         100 * i,
		}
		if err := store.Insert(event); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	events, err := store.RecentEvents(2)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].CapturedAtNs != 3e9 || events[1].CapturedAtNs != 2e9 {
		t.Errorf("events out of order: %d, %d", events[0].CapturedAtNs, events[1].CapturedAtNs)
	}
	if !events[0].BoundaryDetected || events[0].Trigger != "auto" || events[0].ByteSize != 300 {
		t.Errorf("round-tripped event mismatch: %+v", events[0])
	}
}

func TestRecentEventsDefaultLimit(t *testing.T) {
	store := openTestStore(t)

	if err := store.Insert(&CaptureEvent{SessionID: "s1", Trigger: "manual"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	events, err := store.RecentEvents(0)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

func TestCountBySession(t *testing.T) {
	store := openTestStore(t)

	for _, session := range []string{"a", "a", "b"} {
		if err := store.Insert(&CaptureEvent{SessionID: session, Trigger: "manual"}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	for session, want := range map[string]int{"a": 2, "b": 1, "missing": 0} {
		count, err := store.CountBySession(session)
		if err != nil {
			t.Fatalf("CountBySession(%q): %v", session, err)
		}
		if count != want {
			t.Errorf("CountBySession(%q) = %d, want %d", session, count, want)
		}
	}
}
