package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"genstudio/internal/domain"
)

// stubRow assigns values positionally into the scan destinations.
type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int64:
			*d = v.(int64)
		case *int:
			*d = v.(int)
		case *domain.Style:
			*d = domain.Style(v.(string))
		case *domain.GenerationStatus:
			*d = domain.GenerationStatus(v.(string))
		case **string:
			if v == nil {
				*d = nil
			} else {
				s := v.(string)
				*d = &s
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

type call struct {
	query string
	args  []any
}

// stubExecutor answers QueryRow calls from a queue, in order.
type stubExecutor struct {
	rows     []stubRow
	execTag  pgconn.CommandTag
	execErr  error
	calls    []call
	rowsData [][]any
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, call{query: query, args: args})
	return s.execTag, s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, call{query: query, args: args})
	if len(s.rows) == 0 {
		return stubRow{err: pgx.ErrNoRows}
	}
	next := s.rows[0]
	s.rows = s.rows[1:]
	return next
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, call{query: query, args: args})
	return &stubRows{data: s.rowsData}, nil
}

type stubRows struct {
	data   [][]any
	pos    int
	closed bool
}

func (r *stubRows) Close()                                       { r.closed = true }
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, errors.New("values not supported in test rows") }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	return stubRow{values: r.data[r.pos-1]}.Scan(dest...)
}

func generationValues(id string, status domain.GenerationStatus, result any) []any {
	now := time.Now()
	return []any{id, int64(7), "a red fox", "cartoon", string(status), "uploads/a.png", result, now, now}
}

func TestUserCreateMapsUniqueViolation(t *testing.T) {
	exec := &stubExecutor{rows: []stubRow{{err: &pgconn.PgError{Code: "23505"}}}}
	_, err := NewUserRepository(exec).Create(context.Background(), "a@example.com", "hash")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
}

func TestUserCreateReturnsRow(t *testing.T) {
	created := time.Now()
	exec := &stubExecutor{rows: []stubRow{{values: []any{int64(1), "a@example.com", "hash", created}}}}
	u, err := NewUserRepository(exec).Create(context.Background(), "a@example.com", "hash")
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if u.ID != 1 || u.Email != "a@example.com" || !u.CreatedAt.Equal(created) {
		t.Fatalf("Create() = %+v", u)
	}
	if got := exec.calls[0].args; got[0] != "a@example.com" || got[1] != "hash" {
		t.Fatalf("Create() args = %#v", got)
	}
}

func TestUserLookupsMapNoRows(t *testing.T) {
	repo := NewUserRepository(&stubExecutor{})
	if _, err := repo.GetByEmail(context.Background(), "missing@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByEmail() error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(context.Background(), 42); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestGenerationCreate(t *testing.T) {
	exec := &stubExecutor{rows: []stubRow{{values: generationValues("g-1", domain.StatusProcessing, nil)}}}
	g, err := NewGenerationRepository(exec).Create(context.Background(), domain.NewGeneration{
		ID: "g-1", UserID: 7, Prompt: "a red fox", Style: domain.StyleCartoon, OriginalPath: "uploads/a.png",
	})
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if g.Status != domain.StatusProcessing || g.ResultPath != nil {
		t.Fatalf("Create() = %+v, want processing without result", g)
	}
	if style := exec.calls[0].args[3]; style != "cartoon" {
		t.Fatalf("style arg = %#v, want plain string", style)
	}
}

func TestGenerationCreateConflict(t *testing.T) {
	exec := &stubExecutor{rows: []stubRow{{err: &pgconn.PgError{Code: "23505"}}}}
	_, err := NewGenerationRepository(exec).Create(context.Background(), domain.NewGeneration{ID: "dup"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
}

func TestGenerationListByUser(t *testing.T) {
	exec := &stubExecutor{rowsData: [][]any{
		generationValues("g-2", domain.StatusCompleted, "results/g-2.png"),
		generationValues("g-1", domain.StatusFailed, nil),
	}}
	list, err := NewGenerationRepository(exec).ListByUser(context.Background(), 7, 5)
	if err != nil {
		t.Fatalf("ListByUser() unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].ID != "g-2" || list[1].ID != "g-1" {
		t.Fatalf("ListByUser() = %+v", list)
	}
	if list[0].ResultPath == nil || *list[0].ResultPath != "results/g-2.png" {
		t.Fatalf("completed generation lost its result path")
	}
	if args := exec.calls[0].args; args[0] != int64(7) || args[1] != 5 {
		t.Fatalf("ListByUser() args = %#v", args)
	}
}

func TestGenerationUpdateStatus(t *testing.T) {
	result := "results/g-1.png"
	tests := []struct {
		name    string
		rows    []stubRow
		status  domain.GenerationStatus
		result  *string
		wantErr error
		calls   int
	}{
		{
			name:   "completes processing row",
			rows:   []stubRow{{values: generationValues("g-1", domain.StatusCompleted, result)}},
			status: domain.StatusCompleted, result: &result, calls: 1,
		},
		{
			name:   "second write is already final",
			rows:   []stubRow{{err: pgx.ErrNoRows}, {values: []any{"completed"}}},
			status: domain.StatusFailed, wantErr: domain.ErrAlreadyFinal, calls: 2,
		},
		{
			name:   "row deleted out of band",
			rows:   []stubRow{{err: pgx.ErrNoRows}, {err: pgx.ErrNoRows}},
			status: domain.StatusFailed, wantErr: domain.ErrNotFound, calls: 2,
		},
		{
			name:   "processing is not a terminal target",
			status: domain.StatusProcessing, wantErr: domain.ErrInvalidTransition, calls: 0,
		},
		{
			name:   "completed requires a result",
			status: domain.StatusCompleted, wantErr: domain.ErrInvalidTransition, calls: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exec := &stubExecutor{rows: tc.rows}
			g, err := NewGenerationRepository(exec).UpdateStatus(context.Background(), "g-1", tc.status, tc.result)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("UpdateStatus() error = %v, want %v", err, tc.wantErr)
				}
			} else {
				if err != nil {
					t.Fatalf("UpdateStatus() unexpected error: %v", err)
				}
				if g.Status != tc.status {
					t.Fatalf("status = %s, want %s", g.Status, tc.status)
				}
			}
			if len(exec.calls) != tc.calls {
				t.Fatalf("database calls = %d, want %d", len(exec.calls), tc.calls)
			}
			if tc.calls > 0 && !strings.Contains(exec.calls[0].query, "status = 'processing'") {
				t.Fatalf("terminal write must be conditional on processing")
			}
		})
	}
}

func TestGenerationDelete(t *testing.T) {
	repo := NewGenerationRepository(&stubExecutor{execTag: pgconn.NewCommandTag("DELETE 0")})
	if err := repo.Delete(context.Background(), "gone"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}
	repo = NewGenerationRepository(&stubExecutor{execTag: pgconn.NewCommandTag("DELETE 1")})
	if err := repo.Delete(context.Background(), "g-1"); err != nil {
		t.Fatalf("Delete() unexpected error: %v", err)
	}
}

func TestGenerationFailStale(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 2")}
	repo := NewGenerationRepository(exec)
	n, err := repo.FailStale(context.Background(), time.Now())
	if err != nil || n != 2 {
		t.Fatalf("FailStale() = %d, %v", n, err)
	}
}
