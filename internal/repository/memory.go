package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/andresuchdata/linksync/internal/domain"
)

type memoryRunRepository struct {
	mu    sync.RWMutex
	runs  map[string]domain.SyncRun
	links map[string][]domain.RunLink
}

// NewMemoryRunRepository keeps runs in process memory. It backs the server
// when no database is configured.
func NewMemoryRunRepository() RunRepository {
	return &memoryRunRepository{
		runs:  make(map[string]domain.SyncRun),
		links: make(map[string][]domain.RunLink),
	}
}

func (r *memoryRunRepository) CreateRun(ctx context.Context, run *domain.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

func (r *memoryRunRepository) UpdateRun(ctx context.Context, run *domain.SyncRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		return ErrRunNotFound
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *memoryRunRepository) GetRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return &run, nil
}

func (r *memoryRunRepository) ListRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	r.mu.RLock()
	runs := make([]*domain.SyncRun, 0, len(r.runs))
	for _, run := range r.runs {
		run := run
		runs = append(runs, &run)
	}
	r.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (r *memoryRunRepository) SaveLinks(ctx context.Context, runID string, links []domain.RunLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[runID]; !ok {
		return ErrRunNotFound
	}
	stored := make([]domain.RunLink, len(links))
	for i, link := range links {
		link.RunID = runID
		link.Position = i
		stored[i] = link
	}
	r.links[runID] = stored
	return nil
}

func (r *memoryRunRepository) GetLinks(ctx context.Context, runID string) ([]domain.RunLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.runs[runID]; !ok {
		return nil, ErrRunNotFound
	}
	links := make([]domain.RunLink, len(r.links[runID]))
	copy(links, r.links[runID])
	return links, nil
}
