package repository

import (
	"context"
	"errors"

	"github.com/andresuchdata/linksync/internal/domain"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("sync run not found")

// RunRepository persists sync runs and the links they produced.
type RunRepository interface {
	CreateRun(ctx context.Context, run *domain.SyncRun) error
	UpdateRun(ctx context.Context, run *domain.SyncRun) error
	GetRun(ctx context.Context, id string) (*domain.SyncRun, error)
	// ListRuns returns the most recent runs first. limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error)
	// SaveLinks replaces the links stored for runID.
	SaveLinks(ctx context.Context, runID string, links []domain.RunLink) error
	GetLinks(ctx context.Context, runID string) ([]domain.RunLink, error)
}
