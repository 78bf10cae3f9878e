package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users.
type UserRepository interface {
	Create(ctx context.Context, email, passwordHash string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
}

// GenerationRepository defines persistence for generation jobs.
type GenerationRepository interface {
	Create(ctx context.Context, g NewGeneration) (*Generation, error)
	GetByID(ctx context.Context, id string) (*Generation, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]Generation, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	// UpdateStatus performs the single terminal write of a generation.
	UpdateStatus(ctx context.Context, id string, status GenerationStatus, resultPath *string) (*Generation, error)
	Delete(ctx context.Context, id string) error
	// FailStale fails every row still processing that was created before
	// cutoff and returns how many were changed.
	FailStale(ctx context.Context, cutoff time.Time) (int, error)
}
