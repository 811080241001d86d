package repository

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scdaid-mcp-server/internal/domain"
)

// MemoryPlanRunRepository keeps the most recent plan runs in memory. It backs the audit
// trail when no database is configured.
type MemoryPlanRunRepository struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *domain.PlanRun]
}

// NewMemoryPlanRunRepository keeps at most size runs. Older runs are evicted.
func NewMemoryPlanRunRepository(size int) (*MemoryPlanRunRepository, error) {
	if size <= 0 {
		size = 1000
	}
	cache, err := lru.New[string, *domain.PlanRun](size)
	if err != nil {
		return nil, fmt.Errorf("creating run cache: %w", err)
	}
	return &MemoryPlanRunRepository{cache: cache}, nil
}

// SaveRun stores a copy of run
func (m *MemoryPlanRunRepository) SaveRun(ctx context.Context, run *domain.PlanRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("saving plan run: missing id")
	}
	stored := *run
	m.mu.Lock()
	m.cache.Add(run.ID, &stored)
	m.mu.Unlock()
	return nil
}

// GetRun returns the run with id
func (m *MemoryPlanRunRepository) GetRun(ctx context.Context, id string) (*domain.PlanRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.cache.Peek(id)
	if !ok {
		return nil, fmt.Errorf("plan run not found: %w", domain.ErrNotFound)
	}
	out := *run
	return &out, nil
}

// ListRuns returns up to limit runs, newest first
func (m *MemoryPlanRunRepository) ListRuns(ctx context.Context, limit int) ([]*domain.PlanRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := m.cache.Keys()
	runs := make([]*domain.PlanRun, 0, min(limit, len(keys)))
	for i := len(keys) - 1; i >= 0 && len(runs) < limit; i-- {
		if run, ok := m.cache.Peek(keys[i]); ok {
			out := *run
			runs = append(runs, &out)
		}
	}
	return runs, nil
}
