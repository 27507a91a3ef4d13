package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// setupTestStore creates a temporary database for testing
func setupTestStore(t *testing.T) (*Store, string, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "isolink-store-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "isolink.db")
	store, err := NewStore(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("NewStore failed: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return store, dbPath, cleanup
}

func TestNewStore(t *testing.T) {
	store, dbPath, cleanup := setupTestStore(t)
	defer cleanup()

	// Verify file existence
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file was not created at %s", dbPath)
	}

	// Verify table existence via sqlite_master
	for _, table := range []string{"link_events", "leases", "system_state", "webhooks"} {
		var name string
		err := store.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("expected table %q to exist: %v", table, err)
		}
	}

	// Verify indices on link_events
	rows, err := store.db.Query("PRAGMA index_list('link_events')")
	if err != nil {
		t.Fatalf("failed to query index_list: %v", err)
	}
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var seq int
		var name string
		var unique int
		var origin string
		var partial int
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			t.Logf("scanning index row failed: %v", err)
			continue
		}
		found[name] = true
	}
	if !found["idx_link_events_ts_event"] {
		t.Errorf("idx_link_events_ts_event not found")
	}
	if !found["idx_link_events_source"] {
		t.Errorf("idx_link_events_source not found")
	}
}

func TestSystemStateRoundTrip(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	// Missing key reads empty, not an error.
	val, err := store.GetSystemState(ctx, "cursor")
	if err != nil || val != "" {
		t.Fatalf("empty get = %q/%v, want \"\"/nil", val, err)
	}

	if err := store.SetSystemState(ctx, "cursor", "42"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetSystemState(ctx, "cursor", "43"); err != nil {
		t.Fatal(err)
	}
	val, err = store.GetSystemState(ctx, "cursor")
	if err != nil || val != "43" {
		t.Fatalf("get after upsert = %q/%v, want 43/nil", val, err)
	}
}
