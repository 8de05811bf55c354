package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven/mocks"
)

// mockSweepStore implements driven.ExpiredEntrySweeper for testing
type mockSweepStore struct {
	calls     atomic.Int32
	cleanupFn func() (int64, error)
}

func (m *mockSweepStore) Cleanup(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	if m.cleanupFn != nil {
		return m.cleanupFn()
	}
	return 3, nil
}

func TestNewSweeper_Defaults(t *testing.T) {
	s := NewSweeper(SweeperConfig{Store: &mockSweepStore{}})

	if s.interval != 5*time.Minute {
		t.Errorf("expected default interval 5m, got %v", s.interval)
	}
	if s.lockTTL != 10*time.Minute {
		t.Errorf("expected default lock TTL 10m, got %v", s.lockTTL)
	}
	if s.logger == nil {
		t.Error("expected default logger")
	}
}

func TestSweeper_StartStop(t *testing.T) {
	store := &mockSweepStore{}
	s := NewSweeper(SweeperConfig{Store: store, Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start sweeper: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	time.Sleep(70 * time.Millisecond)
	s.Stop()

	if n := store.calls.Load(); n < 2 {
		t.Errorf("expected at least 2 sweeps, got %d", n)
	}

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if running {
		t.Error("expected sweeper to be stopped")
	}

	s.Stop() // Should not panic
}

func TestSweeper_ContextCancellation(t *testing.T) {
	s := NewSweeper(SweeperConfig{Store: &mockSweepStore{}, Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start sweeper: %v", err)
	}
	cancel()

	select {
	case <-s.doneCh:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not exit after context cancellation")
	}
}

func TestSweeper_Sweep_WithLock(t *testing.T) {
	store := &mockSweepStore{}
	lock := mocks.NewMockDistributedLock()
	s := NewSweeper(SweeperConfig{Store: store, Lock: lock})

	if removed := s.sweep(context.Background()); removed != 3 {
		t.Errorf("expected 3 removed, got %d", removed)
	}
	if lock.Releases != 1 {
		t.Errorf("expected lock to be released once, got %d", lock.Releases)
	}
	if lock.IsHeld(sweepLockName) {
		t.Error("expected lock to be free after sweep")
	}
}

func TestSweeper_Sweep_LockHeldElsewhere(t *testing.T) {
	store := &mockSweepStore{}
	lock := mocks.NewMockDistributedLock()
	lock.SetLockHeld(sweepLockName, time.Minute)
	s := NewSweeper(SweeperConfig{Store: store, Lock: lock})

	if removed := s.sweep(context.Background()); removed != 0 {
		t.Errorf("expected no sweep, got %d", removed)
	}
	if store.calls.Load() != 0 {
		t.Error("store must not be swept without the lock")
	}
}

func TestSweeper_Sweep_LockError(t *testing.T) {
	store := &mockSweepStore{}
	lock := mocks.NewMockDistributedLock()
	lock.AcquireFn = func(string, time.Duration) (bool, error) {
		return false, errors.New("lock backend down")
	}
	s := NewSweeper(SweeperConfig{Store: store, Lock: lock})

	s.sweep(context.Background())
	if store.calls.Load() != 0 {
		t.Error("store must not be swept when the lock cannot be acquired")
	}
}

func TestSweeper_Sweep_StoreError(t *testing.T) {
	store := &mockSweepStore{cleanupFn: func() (int64, error) {
		return 0, errors.New("db down")
	}}
	lock := mocks.NewMockDistributedLock()
	s := NewSweeper(SweeperConfig{Store: store, Lock: lock})

	if removed := s.sweep(context.Background()); removed != 0 {
		t.Errorf("expected 0 on error, got %d", removed)
	}
	if lock.Releases != 1 {
		t.Error("lock must be released after a failed sweep")
	}
}
