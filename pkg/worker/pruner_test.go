package worker

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/isolink-io/isolink/pkg/blob"
	"github.com/isolink-io/isolink/pkg/linker"
	"github.com/isolink-io/isolink/pkg/store"
)

func TestPruneOnceArchivesThenDeletes(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	blobDir, err := os.MkdirTemp("", "isolink-pruner-test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(blobDir)
	blobs := blob.NewLocalBlobStore(blobDir)

	now := time.Now().UTC()
	records := []store.LinkRecord{
		{JournalSeq: 1, Type: linker.EventIndirectLink, TsEvent: now.Add(-48 * time.Hour), SourceID: "a", TargetID: "b", Score: 0.8},
		{JournalSeq: 2, Type: linker.EventCanonicalMerge, TsEvent: now.Add(-36 * time.Hour), SourceID: "c", TargetID: "d", Score: 1},
		{JournalSeq: 3, Type: linker.EventIndirectLink, TsEvent: now.Add(-1 * time.Hour), SourceID: "e", TargetID: "f", Score: 0.6},
	}
	if err := s.AppendLinkEvents(ctx, records); err != nil {
		t.Fatalf("failed to append records: %v", err)
	}

	p := NewPruner(s, blobs, RetentionConfig{
		Enabled: true,
		MaxAge:  24 * time.Hour,
		Archive: true,
	}, nil)

	n, err := p.PruneOnce(ctx)
	if err != nil {
		t.Fatalf("PruneOnce failed: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d records, want 2", n)
	}

	// 1. Fresh record survives.
	left, err := s.QueryLinkEvents(ctx, store.EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].JournalSeq != 3 {
		t.Fatalf("remaining = %+v, want only journal_seq 3", left)
	}

	// 2. Expired records landed in exactly one archive blob.
	keys, err := blobs.List(ctx, "links/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 archive blob, got %d: %v", len(keys), keys)
	}
	if !strings.HasSuffix(keys[0], ".jsonl.gz") {
		t.Errorf("unexpected archive key %s", keys[0])
	}

	// 3. Archive round-trips as gzipped JSON Lines.
	rc, err := blobs.Get(ctx, keys[0])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer rc.Close()
	gz, err := gzip.NewReader(rc)
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	defer gz.Close()

	var archived []store.LinkRecord
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		var rec store.LinkRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("failed to decode archive line: %v", err)
		}
		archived = append(archived, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner failed: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("archived %d records, want 2", len(archived))
	}
	if archived[0].SourceID != "a" || archived[1].SourceID != "c" {
		t.Errorf("archive order = %s, %s, want a, c", archived[0].SourceID, archived[1].SourceID)
	}
}

func TestPruneOnceWithoutArchive(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	old := store.LinkRecord{JournalSeq: 1, Type: linker.EventIndirectLink, TsEvent: time.Now().UTC().Add(-48 * time.Hour)}
	if err := s.AppendLinkEvents(ctx, []store.LinkRecord{old}); err != nil {
		t.Fatal(err)
	}

	p := NewPruner(s, nil, RetentionConfig{Enabled: true, MaxAge: 24 * time.Hour}, nil)
	n, err := p.PruneOnce(ctx)
	if err != nil {
		t.Fatalf("PruneOnce failed: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
}

func TestPruneKeepsRecordsWhenArchiveFails(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	old := store.LinkRecord{JournalSeq: 1, Type: linker.EventIndirectLink, TsEvent: time.Now().UTC().Add(-48 * time.Hour)}
	if err := s.AppendLinkEvents(ctx, []store.LinkRecord{old}); err != nil {
		t.Fatal(err)
	}

	p := NewPruner(s, failingBlobStore{}, RetentionConfig{Enabled: true, MaxAge: 24 * time.Hour, Archive: true}, nil)
	if _, err := p.PruneOnce(ctx); err == nil {
		t.Fatal("expected error when archive fails")
	}

	left, err := s.QueryLinkEvents(ctx, store.EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 {
		t.Errorf("records deleted despite archive failure: %d left", len(left))
	}
}

type failingBlobStore struct{}

func (failingBlobStore) Put(ctx context.Context, key string, reader io.Reader) error {
	return errors.New("blob store unavailable")
}

func (failingBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("blob store unavailable")
}

func (failingBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	return nil, errors.New("blob store unavailable")
}

func (failingBlobStore) Delete(ctx context.Context, key string) error {
	return errors.New("blob store unavailable")
}
