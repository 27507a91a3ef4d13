package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func putString(t *testing.T, s *LocalBlobStore, key, content string) {
	t.Helper()
	if err := s.Put(context.Background(), key, strings.NewReader(content)); err != nil {
		t.Fatalf("Put(%s): %v", key, err)
	}
}

func TestLocalBlobStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := NewLocalBlobStore(root)

	key := "archive/2026/08/events-1.jsonl.gz"
	putString(t, s, key, "payload")

	rc, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("content = %q, want %q", got, "payload")
	}

	// Put must not leave its temp file behind next to the blob.
	entries, err := os.ReadDir(filepath.Join(root, "archive/2026/08"))
	if err != nil {
		t.Fatalf("read blob dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("blob dir holds %d entries, want only the blob", len(entries))
	}
}

func TestLocalBlobStoreGetMissing(t *testing.T) {
	s := NewLocalBlobStore(t.TempDir())
	if _, err := s.Get(context.Background(), "nope"); err == nil {
		t.Fatal("Get of a missing key should fail")
	}
}

func TestLocalBlobStoreList(t *testing.T) {
	s := NewLocalBlobStore(t.TempDir())

	putString(t, s, "archive/a.gz", "a")
	putString(t, s, "archive/deep/b.gz", "b")
	putString(t, s, "other/c.gz", "c")

	keys, err := s.List(context.Background(), "archive")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("List(archive) = %v, want 2 keys", keys)
	}
	for _, k := range keys {
		if !strings.HasPrefix(k, "archive"+string(filepath.Separator)) {
			t.Errorf("key %q escaped the prefix", k)
		}
	}

	keys, err = s.List(context.Background(), "missing")
	if err != nil {
		t.Fatalf("List of a missing prefix should be empty, not an error: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("List(missing) = %v, want none", keys)
	}
}

func TestLocalBlobStoreDelete(t *testing.T) {
	s := NewLocalBlobStore(t.TempDir())
	ctx := context.Background()

	putString(t, s, "x.gz", "x")
	putString(t, s, "y.gz", "y")

	if err := s.Delete(ctx, "x.gz"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "x.gz"); err == nil {
		t.Error("deleted blob still readable")
	}
	if _, err := s.Get(ctx, "y.gz"); err != nil {
		t.Errorf("unrelated blob lost: %v", err)
	}
	if err := s.Delete(ctx, "x.gz"); err == nil {
		t.Error("second delete should report the missing blob")
	}
}
