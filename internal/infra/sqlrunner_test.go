package infra

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type recordingExecutor struct {
	queries []string
	err     error
}

func (e *recordingExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	e.queries = append(e.queries, query)
	return pgconn.NewCommandTag("UPDATE 1"), e.err
}

func (e *recordingExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	e.queries = append(e.queries, query)
	return errorRow{err: pgx.ErrNoRows}
}

func (e *recordingExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	e.queries = append(e.queries, query)
	return nil, e.err
}

const markedQuery = `--sql 0f6b1f8e-2b64-4c71-9d0e-58d2d3f0a1c4
select 1;
`

func TestExtractMarker(t *testing.T) {
	marker, body, err := ExtractMarker(markedQuery)
	if err != nil {
		t.Fatalf("ExtractMarker error: %v", err)
	}
	if marker != "0f6b1f8e-2b64-4c71-9d0e-58d2d3f0a1c4" {
		t.Fatalf("marker = %q", marker)
	}
	if body != "select 1;" {
		t.Fatalf("body = %q", body)
	}
}

func TestExtractMarkerRejectsUntagged(t *testing.T) {
	for _, q := range []string{"", "select 1;", "--sql not-a-uuid\nselect 1;", "--sql 0f6b1f8e-2b64-4c71-9d0e-58d2d3f0a1c4"} {
		if _, _, err := ExtractMarker(q); err == nil {
			t.Fatalf("ExtractMarker(%q) expected error", q)
		}
	}
}

func TestSQLRunnerStripsMarker(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, zerolog.Nop())

	if _, err := runner.Exec(context.Background(), markedQuery); err != nil {
		t.Fatalf("Exec error: %v", err)
	}
	if len(exec.queries) != 1 || exec.queries[0] != "select 1;" {
		t.Fatalf("executor received %#v", exec.queries)
	}
	if err := runner.QueryRow(context.Background(), markedQuery).Scan(); !IsNoRows(err) {
		t.Fatalf("QueryRow scan error = %v, want no rows", err)
	}
}

func TestSQLRunnerRefusesUntaggedQuery(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewSQLRunner(exec, zerolog.Nop())

	if _, err := runner.Exec(context.Background(), "delete from users"); err == nil {
		t.Fatalf("expected error for untagged query")
	}
	if err := runner.QueryRow(context.Background(), "select 1").Scan(); err == nil {
		t.Fatalf("expected error for untagged query row")
	}
	if len(exec.queries) != 0 {
		t.Fatalf("untagged queries must not reach the database")
	}
}

func TestMigrateStopsOnFirstError(t *testing.T) {
	exec := &recordingExecutor{err: errors.New("boom")}
	err := Migrate(context.Background(), exec, []string{"create table a()", "create table b()"})
	if err == nil {
		t.Fatalf("expected migrate error")
	}
	if len(exec.queries) != 1 {
		t.Fatalf("executed %d statements, want 1", len(exec.queries))
	}
}

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(wrapped) {
		t.Fatalf("expected wrapped 23505 to be a unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation reported as unique violation")
	}
	if IsUniqueViolation(errors.New("plain")) {
		t.Fatalf("plain error reported as unique violation")
	}
}
