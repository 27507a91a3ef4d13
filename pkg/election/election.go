// Package election provides lease-based leadership for multi-instance
// deployments. Only the leader mutates the shared journal store and accepts
// mutating API calls; followers serve reads.
package election

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/isolink-io/isolink/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
)

var leaderGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "isolink_election_leader",
	Help: "1 while this instance holds the leadership lease.",
})

func init() {
	prometheus.MustRegister(leaderGauge)
}

// Manager runs the acquire/renew loop against a lease store.
type Manager struct {
	store     store.LeaseStore
	holderID  string
	leaseName string
	ttl       time.Duration

	onPromote func()
	onDemote  func()

	isLeader bool
	mu       sync.RWMutex

	stopCh chan struct{}
}

// NewManager creates an election manager. Callbacks may be nil; they fire on
// leadership transitions, not on steady-state renewals.
func NewManager(
	st store.LeaseStore,
	holderID string,
	leaseName string,
	ttl time.Duration,
	onPromote func(),
	onDemote func(),
) *Manager {
	return &Manager{
		store:     st,
		holderID:  holderID,
		leaseName: leaseName,
		ttl:       ttl,
		onPromote: onPromote,
		onDemote:  onDemote,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background election loop, ticking at half the lease TTL.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.ttl / 2)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.attempt(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	slog.Info("election manager started", "holder_id", m.holderID, "lease", m.leaseName)
}

// Stop halts the loop and releases the lease if currently leader, so a clean
// shutdown hands leadership over without waiting for expiry.
func (m *Manager) Stop(ctx context.Context) {
	close(m.stopCh)
	m.mu.Lock()
	wasLeader := m.isLeader
	m.isLeader = false
	m.mu.Unlock()
	if wasLeader {
		leaderGauge.Set(0)
		if err := m.store.Release(ctx, m.leaseName, m.holderID); err != nil {
			slog.Error("failed to release lease on stop", "error", err, "lease", m.leaseName)
		} else {
			slog.Info("lease released on stop", "holder_id", m.holderID, "lease", m.leaseName)
		}
	}
	slog.Info("election manager stopped", "holder_id", m.holderID)
}

// IsLeader reports whether this instance currently holds the lease. A nil
// *Manager is always leader, which is how single-instance deployments run.
func (m *Manager) IsLeader() bool {
	if m == nil {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isLeader
}

// Leader returns the current lease holder's ID, which deployments set to the
// node's advertise address so followers can redirect writes. ok is false when
// nobody holds the lease.
func (m *Manager) Leader(ctx context.Context) (string, bool, error) {
	if m == nil {
		return "", false, nil
	}
	lease, err := m.store.Get(ctx, m.leaseName)
	if err != nil {
		return "", false, err
	}
	if lease == nil {
		return "", false, nil
	}
	return lease.HolderID, true, nil
}

// attempt renews when leading, acquires otherwise, and fires transition
// callbacks.
func (m *Manager) attempt(ctx context.Context) {
	m.mu.Lock()
	wasLeader := m.isLeader
	m.mu.Unlock()

	var nowLeader bool
	if wasLeader {
		if err := m.store.Renew(ctx, m.leaseName, m.holderID, m.ttl); err != nil {
			slog.Warn("failed to renew lease", "error", err, "lease", m.leaseName)
		} else {
			nowLeader = true
		}
	} else {
		acquired, err := m.store.Acquire(ctx, m.leaseName, m.holderID, m.ttl)
		if err != nil {
			slog.Warn("failed to acquire lease", "error", err, "lease", m.leaseName)
		} else {
			nowLeader = acquired
		}
	}

	m.mu.Lock()
	m.isLeader = nowLeader
	m.mu.Unlock()

	if !wasLeader && nowLeader {
		leaderGauge.Set(1)
		if m.onPromote != nil {
			m.onPromote()
		}
		slog.Info("promoted to leader", "holder_id", m.holderID, "lease", m.leaseName)
	} else if wasLeader && !nowLeader {
		leaderGauge.Set(0)
		if m.onDemote != nil {
			m.onDemote()
		}
		slog.Info("demoted from leader", "holder_id", m.holderID, "lease", m.leaseName)
	}
}
