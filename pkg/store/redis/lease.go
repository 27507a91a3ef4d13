// Package redis provides a Redis-backed lease store for leader election when
// daemons share a journal database but no filesystem.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/isolink-io/isolink/pkg/store"
)

// LeaseStore implements store.LeaseStore on a Redis key per lease, guarded by
// holder-checked Lua scripts.
type LeaseStore struct {
	client *redis.Client
}

// NewLeaseStore wraps an existing client.
func NewLeaseStore(client *redis.Client) *LeaseStore {
	return &LeaseStore{client: client}
}

func (s *LeaseStore) makeKey(name string) string {
	return fmt.Sprintf("isolink:lease:%s", name)
}

// Acquire tries to acquire the lease. Returns true if successful.
// If the lease is already held by holderID, it renews it.
func (s *LeaseStore) Acquire(ctx context.Context, name, holderID string, ttl time.Duration) (bool, error) {
	key := s.makeKey(name)

	// NX: only set if the key does not exist yet.
	success, err := s.client.SetNX(ctx, key, holderID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if success {
		return true, nil
	}

	// Key exists: if we already hold it, acquiring degrades to a renewal.
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existing lease: %w", err)
	}
	if val == holderID {
		return true, s.Renew(ctx, name, holderID, ttl)
	}

	return false, nil
}

// Renew updates the expiry of an existing lease held by holderID.
// Returns error if the lease is lost or stolen.
func (s *LeaseStore) Renew(ctx context.Context, name, holderID string, ttl time.Duration) error {
	key := s.makeKey(name)

	// Holder check and expiry extension must be one atomic step.
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	ttlMs := int64(ttl / time.Millisecond)

	res, err := s.client.Eval(ctx, script, []string{key}, holderID, ttlMs).Result()
	if err != nil {
		return fmt.Errorf("failed to execute renew script: %w", err)
	}
	success, ok := res.(int64)
	if !ok {
		return fmt.Errorf("unexpected return type from renew script")
	}
	if success == 1 {
		return nil
	}
	return fmt.Errorf("lease lost or stolen")
}

// Release deletes the lease if held by holderID. Releasing a lease someone
// else took over is a no-op, not an error.
func (s *LeaseStore) Release(ctx context.Context, name, holderID string) error {
	key := s.makeKey(name)

	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	if _, err := s.client.Eval(ctx, script, []string{key}, holderID).Result(); err != nil {
		return fmt.Errorf("failed to execute release script: %w", err)
	}
	return nil
}

// Get returns the current lease state, nil when nobody holds it.
func (s *LeaseStore) Get(ctx context.Context, name string) (*store.Lease, error) {
	key := s.makeKey(name)

	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get lease ttl: %w", err)
	}

	return &store.Lease{
		Name:      name,
		HolderID:  val,
		ExpiresAt: time.Now().Add(ttl),
		// Redis leases do not track CAS versions; expiry is the contention
		// mechanism.
		Version: 0,
	}, nil
}
