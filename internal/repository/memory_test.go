package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andresuchdata/linksync/internal/domain"
)

func TestMemoryRunRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRunRepository()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		run := &domain.SyncRun{ID: id, Root: id, Status: domain.StateIdle, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun(%s) error = %v", id, err)
		}
	}

	runs, err := repo.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r3" || runs[1].ID != "r2" {
		t.Errorf("ListRuns(2) = %v, want r3, r2", runs)
	}

	run, _ := repo.GetRun(ctx, "r1")
	run.Status = domain.StateDone
	run.LinkCount = 2
	if err := repo.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun() error = %v", err)
	}
	got, err := repo.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != domain.StateDone || got.LinkCount != 2 {
		t.Errorf("GetRun() = %+v", got)
	}

	links := []domain.RunLink{{Name: "a", URL: "https://x.com/a"}, {Name: "b", URL: "https://x.com/b"}}
	if err := repo.SaveLinks(ctx, "r1", links); err != nil {
		t.Fatalf("SaveLinks() error = %v", err)
	}
	stored, err := repo.GetLinks(ctx, "r1")
	if err != nil {
		t.Fatalf("GetLinks() error = %v", err)
	}
	if len(stored) != 2 || stored[1].Position != 1 || stored[1].RunID != "r1" {
		t.Errorf("GetLinks() = %+v", stored)
	}
}

func TestMemoryRunRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRunRepository()

	if _, err := repo.GetRun(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun() error = %v", err)
	}
	if err := repo.UpdateRun(ctx, &domain.SyncRun{ID: "nope"}); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("UpdateRun() error = %v", err)
	}
	if err := repo.SaveLinks(ctx, "nope", nil); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("SaveLinks() error = %v", err)
	}
	if _, err := repo.GetLinks(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetLinks() error = %v", err)
	}
}

func TestMemoryRunRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRunRepository()
	_ = repo.CreateRun(ctx, &domain.SyncRun{ID: "r", Status: domain.StateIdle})

	run, _ := repo.GetRun(ctx, "r")
	run.Status = domain.StateFailed

	again, _ := repo.GetRun(ctx, "r")
	if again.Status != domain.StateIdle {
		t.Errorf("stored run mutated through returned pointer: %s", again.Status)
	}
}
