package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository creates a new generation repository backed by PostgreSQL.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// Create inserts a new generation in the processing state.
func (r *GenerationRepositoryPG) Create(ctx context.Context, g domain.NewGeneration) (*domain.Generation, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertGeneration, g.ID, g.UserID, g.Prompt, string(g.Style), g.OriginalPath)
	created, err := scanGeneration(row)
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create generation %s: %w", g.ID, domain.ErrConflict)
		}
		return nil, fmt.Errorf("create generation %s: %w", g.ID, err)
	}
	return created, nil
}

// GetByID fetches a generation by its identifier.
func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	return scanGeneration(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationByID, id))
}

// ListByUser returns the newest generations owned by userID.
func (r *GenerationRepositoryPG) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Generation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListGenerationsByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Generation, 0, limit)
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return out, nil
}

// CountByUser returns how many generations userID owns.
func (r *GenerationRepositoryPG) CountByUser(ctx context.Context, userID int64) (int, error) {
	var total int
	if err := r.sql.QueryRow(ctx, sqlinline.QCountGenerationsByUser, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count generations: %w", err)
	}
	return total, nil
}

// UpdateStatus writes the terminal status. Rows that already left the
// processing state are untouched and reported as domain.ErrAlreadyFinal.
func (r *GenerationRepositoryPG) UpdateStatus(ctx context.Context, id string, status domain.GenerationStatus, resultPath *string) (*domain.Generation, error) {
	if err := domain.ValidateTransition(status, resultPath); err != nil {
		return nil, err
	}
	updated, err := scanGeneration(r.sql.QueryRow(ctx, sqlinline.QFinalizeGeneration, id, string(status), resultPath))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("finalize generation %s: %w", id, err)
	}

	var current string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectGenerationStatus, id).Scan(&current); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finalize generation %s: %w", id, err)
	}
	return nil, fmt.Errorf("finalize generation %s (status %s): %w", id, current, domain.ErrAlreadyFinal)
}

// Delete removes a generation row.
func (r *GenerationRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteGeneration, id)
	if err != nil {
		return fmt.Errorf("delete generation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FailStale marks generations orphaned by a previous process as failed.
func (r *GenerationRepositoryPG) FailStale(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailStaleGenerations, cutoff)
	if err != nil {
		return 0, fmt.Errorf("fail stale generations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanGeneration(row pgx.Row) (*domain.Generation, error) {
	var g domain.Generation
	if err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.Prompt,
		&g.Style,
		&g.Status,
		&g.OriginalPath,
		&g.ResultPath,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
