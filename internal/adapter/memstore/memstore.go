// Package memstore holds process-local implementations of the repositories.
// They back the service when no DATABASE_URL is configured and double as
// fixtures in handler and processor tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"genstudio/internal/domain"
)

// Users implements domain.UserRepository.
type Users struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]domain.User
	byEmail map[string]int64
}

func NewUsers() *Users {
	return &Users{byID: make(map[int64]domain.User), byEmail: make(map[string]int64)}
}

func (s *Users) Create(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return nil, domain.ErrConflict
	}
	s.nextID++
	u := domain.User{ID: s.nextID, Email: email, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	return &u, nil
}

func (s *Users) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u := s.byID[id]
	return &u, nil
}

func (s *Users) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

// Generations implements domain.GenerationRepository.
type Generations struct {
	mu   sync.RWMutex
	rows map[string]*domain.Generation
	// seq breaks created_at ties so listing order is stable.
	seq   map[string]int64
	clock func() time.Time
	next  int64
}

func NewGenerations() *Generations {
	return &Generations{
		rows:  make(map[string]*domain.Generation),
		seq:   make(map[string]int64),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Generations) Create(ctx context.Context, g domain.NewGeneration) (*domain.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[g.ID]; ok {
		return nil, domain.ErrConflict
	}
	now := s.clock()
	row := &domain.Generation{
		ID:           g.ID,
		UserID:       g.UserID,
		Prompt:       g.Prompt,
		Style:        g.Style,
		Status:       domain.StatusProcessing,
		OriginalPath: g.OriginalPath,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.next++
	s.rows[g.ID] = row
	s.seq[g.ID] = s.next
	return clone(row), nil
}

func (s *Generations) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(row), nil
}

func (s *Generations) ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var owned []*domain.Generation
	for _, row := range s.rows {
		if row.UserID == userID {
			owned = append(owned, row)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return s.seq[owned[i].ID] > s.seq[owned[j].ID]
	})
	if limit >= 0 && len(owned) > limit {
		owned = owned[:limit]
	}
	out := make([]domain.Generation, 0, len(owned))
	for _, row := range owned {
		out = append(out, *clone(row))
	}
	return out, nil
}

func (s *Generations) CountByUser(ctx context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, row := range s.rows {
		if row.UserID == userID {
			total++
		}
	}
	return total, nil
}

func (s *Generations) UpdateStatus(ctx context.Context, id string, status domain.GenerationStatus, resultPath *string) (*domain.Generation, error) {
	if err := domain.ValidateTransition(status, resultPath); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if row.Status.Terminal() {
		return nil, domain.ErrAlreadyFinal
	}
	row.Status = status
	if resultPath != nil {
		p := *resultPath
		row.ResultPath = &p
	}
	row.UpdatedAt = s.clock()
	return clone(row), nil
}

func (s *Generations) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.rows, id)
	delete(s.seq, id)
	return nil
}

func (s *Generations) FailStale(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.rows {
		if row.Status == domain.StatusProcessing && row.CreatedAt.Before(cutoff) {
			row.Status = domain.StatusFailed
			row.UpdatedAt = s.clock()
			n++
		}
	}
	return n, nil
}

func clone(g *domain.Generation) *domain.Generation {
	c := *g
	if g.ResultPath != nil {
		p := *g.ResultPath
		c.ResultPath = &p
	}
	return &c
}

var (
	_ domain.UserRepository       = (*Users)(nil)
	_ domain.GenerationRepository = (*Generations)(nil)
)
