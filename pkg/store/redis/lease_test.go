package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupLeaseStore(t *testing.T) (*LeaseStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLeaseStore(client), mr
}

func TestLeaseAcquireAndContention(t *testing.T) {
	s, _ := setupLeaseStore(t)
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "writer", "node-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire = %v/%v, want true/nil", ok, err)
	}

	// A second holder cannot steal a live lease.
	ok, err = s.Acquire(ctx, "writer", "node-b", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("node-b stole a live lease")
	}

	// Re-acquiring our own lease renews it.
	ok, err = s.Acquire(ctx, "writer", "node-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("re-acquire = %v/%v, want true/nil", ok, err)
	}

	lease, err := s.Get(ctx, "writer")
	if err != nil {
		t.Fatal(err)
	}
	if lease == nil || lease.HolderID != "node-a" {
		t.Fatalf("lease = %+v, want holder node-a", lease)
	}
}

func TestLeaseRenewOnlyByHolder(t *testing.T) {
	s, _ := setupLeaseStore(t)
	ctx := context.Background()

	if _, err := s.Acquire(ctx, "writer", "node-a", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.Renew(ctx, "writer", "node-a", time.Minute); err != nil {
		t.Errorf("holder renew failed: %v", err)
	}
	if err := s.Renew(ctx, "writer", "node-b", time.Minute); err == nil {
		t.Error("non-holder renew succeeded")
	}
}

func TestLeaseExpiryAllowsTakeover(t *testing.T) {
	s, mr := setupLeaseStore(t)
	ctx := context.Background()

	if _, err := s.Acquire(ctx, "writer", "node-a", 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(100 * time.Millisecond)

	ok, err := s.Acquire(ctx, "writer", "node-b", time.Minute)
	if err != nil || !ok {
		t.Fatalf("takeover after expiry = %v/%v, want true/nil", ok, err)
	}
}

func TestLeaseReleaseIsHolderChecked(t *testing.T) {
	s, _ := setupLeaseStore(t)
	ctx := context.Background()

	if _, err := s.Acquire(ctx, "writer", "node-a", time.Minute); err != nil {
		t.Fatal(err)
	}
	// A stranger's release must not evict the holder.
	if err := s.Release(ctx, "writer", "node-b"); err != nil {
		t.Fatal(err)
	}
	lease, err := s.Get(ctx, "writer")
	if err != nil {
		t.Fatal(err)
	}
	if lease == nil || lease.HolderID != "node-a" {
		t.Fatalf("lease after foreign release = %+v, want node-a", lease)
	}

	if err := s.Release(ctx, "writer", "node-a"); err != nil {
		t.Fatal(err)
	}
	lease, err = s.Get(ctx, "writer")
	if err != nil {
		t.Fatal(err)
	}
	if lease != nil {
		t.Fatalf("lease after release = %+v, want nil", lease)
	}
}
