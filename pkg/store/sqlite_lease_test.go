package store

import (
	"context"
	"testing"
	"time"
)

func TestLeaseAcquire(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	acquired, err := store.Acquire(ctx, "leader", "node-a", time.Second)
	if err != nil || !acquired {
		t.Fatalf("fresh acquire = (%v, %v), want (true, nil)", acquired, err)
	}
	lease, err := store.Get(ctx, "leader")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if lease.HolderID != "node-a" || lease.Version != 1 {
		t.Errorf("lease = %+v, want node-a at version 1", lease)
	}

	// The holder re-acquiring its own live lease extends it.
	acquired, err = store.Acquire(ctx, "leader", "node-a", time.Second)
	if err != nil || !acquired {
		t.Fatalf("re-acquire = (%v, %v), want (true, nil)", acquired, err)
	}
	if lease, _ = store.Get(ctx, "leader"); lease.Version != 2 {
		t.Errorf("version after re-acquire = %d, want 2", lease.Version)
	}

	// A live lease is not stealable.
	acquired, err = store.Acquire(ctx, "leader", "node-b", time.Second)
	if err != nil {
		t.Fatalf("contending acquire: %v", err)
	}
	if acquired {
		t.Error("node-b acquired a live lease held by node-a")
	}

	// Expiry opens the door.
	store.db.Exec("UPDATE leases SET expires_at = ?", time.Now().UTC().Add(-time.Minute))
	acquired, err = store.Acquire(ctx, "leader", "node-b", time.Second)
	if err != nil || !acquired {
		t.Fatalf("takeover = (%v, %v), want (true, nil)", acquired, err)
	}
	lease, _ = store.Get(ctx, "leader")
	if lease.HolderID != "node-b" {
		t.Errorf("holder after takeover = %s, want node-b", lease.HolderID)
	}
	if lease.Version != 3 {
		t.Errorf("version after takeover = %d, want 3", lease.Version)
	}
}

func TestLeaseRenew(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.Acquire(ctx, "worker", "w1", time.Second); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := store.Renew(ctx, "worker", "w1", time.Minute); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	lease, err := store.Get(ctx, "worker")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if until := time.Until(lease.ExpiresAt); until < 50*time.Second {
		t.Errorf("renewed expiry only %v away, want close to a minute", until)
	}

	// A holder that lost the lease finds out through Renew.
	store.db.Exec("UPDATE leases SET holder_id = 'w2' WHERE name = ?", "worker")
	if err := store.Renew(ctx, "worker", "w1", time.Second); err == nil {
		t.Error("renew of a stolen lease should fail")
	}
}

func TestLeaseRelease(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	store.Acquire(ctx, "lock", "h1", time.Second)
	if err := store.Release(ctx, "lock", "h1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if lease, err := store.Get(ctx, "lock"); err != nil || lease != nil {
		t.Errorf("Get after release = (%+v, %v), want (nil, nil)", lease, err)
	}

	// Releasing a lease that is already gone stays quiet.
	if err := store.Release(ctx, "lock", "h1"); err != nil {
		t.Fatalf("repeat release: %v", err)
	}
}

func TestLeaseGet(t *testing.T) {
	store, _, cleanup := setupTestStore(t)
	defer cleanup()

	lease, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if lease != nil {
		t.Errorf("Get(missing) = %+v, want nil", lease)
	}
}
