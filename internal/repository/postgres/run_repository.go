package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/linksync/internal/domain"
	"github.com/andresuchdata/linksync/internal/repository"
)

type runRepository struct {
	db *DB
}

func NewRunRepository(db *DB) repository.RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) CreateRun(ctx context.Context, run *domain.SyncRun) error {
	query := `
		INSERT INTO sync_runs (
			id, root, input_path, status, link_count,
			error_kind, error_message, started_at, completed_at
		) VALUES (
			:id, :root, :input_path, :status, :link_count,
			:error_kind, :error_message, :started_at, :completed_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

func (r *runRepository) UpdateRun(ctx context.Context, run *domain.SyncRun) error {
	query := `
		UPDATE sync_runs SET
			status = :status,
			link_count = :link_count,
			error_kind = :error_kind,
			error_message = :error_message,
			completed_at = :completed_at
		WHERE id = :id
	`
	res, err := r.db.NamedExecContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrRunNotFound
	}
	return nil
}

func (r *runRepository) GetRun(ctx context.Context, id string) (*domain.SyncRun, error) {
	var run domain.SyncRun
	err := r.db.GetContext(ctx, &run, `SELECT * FROM sync_runs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return &run, nil
}

func (r *runRepository) ListRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	query := `SELECT * FROM sync_runs ORDER BY started_at DESC, id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var runs []*domain.SyncRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return runs, nil
}

func (r *runRepository) SaveLinks(ctx context.Context, runID string, links []domain.RunLink) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_run_links WHERE run_id = $1`, runID); err != nil {
			return fmt.Errorf("failed to clear links: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sync_run_links (run_id, position, name, url)
			VALUES ($1, $2, $3, $4)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, link := range links {
			if _, err := stmt.ExecContext(ctx, runID, i, link.Name, link.URL); err != nil {
				return fmt.Errorf("failed to insert link %s: %w", link.Name, err)
			}
		}
		return nil
	})
}

func (r *runRepository) GetLinks(ctx context.Context, runID string) ([]domain.RunLink, error) {
	if _, err := r.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	var links []domain.RunLink
	err := r.db.SelectContext(ctx, &links,
		`SELECT run_id, position, name, url FROM sync_run_links WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get links: %w", err)
	}
	return links, nil
}
