package postgres

import (
	"context"
	"sort"
	"sync"

	"github.com/smartcity/simulator/internal/domain"
)

// mockCapacity bounds the in-memory history so long runs without a database
// do not grow without limit.
const mockCapacity = 1000

// MockRepository implements domain.SnapshotRepository for testing/demo mode.
// It keeps a bounded in-memory ring of the most recent snapshots.
type MockRepository struct {
	mu        sync.Mutex
	snapshots []domain.TrafficUpdate
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

// SaveSnapshot appends to the in-memory ring, evicting the oldest entry
// once the ring is full
func (r *MockRepository) SaveSnapshot(ctx context.Context, update domain.TrafficUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots = append(r.snapshots, update)
	if len(r.snapshots) > mockCapacity {
		r.snapshots = r.snapshots[len(r.snapshots)-mockCapacity:]
	}
	return nil
}

// RecentSnapshots returns up to limit stored snapshots, newest first.
// Writes arrive from concurrent persistence goroutines, so order by tick
// rather than insertion.
func (r *MockRepository) RecentSnapshots(ctx context.Context, limit int) ([]domain.TrafficUpdate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]domain.TrafficUpdate, len(r.snapshots))
	copy(results, r.snapshots)
	sort.Slice(results, func(i, j int) bool { return results[i].Tick > results[j].Tick })

	if limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
