package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/adapter/memstore"
	"genstudio/internal/domain"
	"genstudio/internal/storage"
)

type harness struct {
	repo  *memstore.Generations
	store *storage.FileStore
	proc  *Processor
	done  chan domain.GenerationStatus
}

func newHarness(t *testing.T, strategy Strategy) *harness {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	h := &harness{
		repo:  memstore.NewGenerations(),
		store: store,
		done:  make(chan domain.GenerationStatus, 8),
	}
	h.proc = New(h.repo, store, strategy, zerolog.Nop())
	h.proc.onDone = func(id string, status domain.GenerationStatus) { h.done <- status }
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.proc.Shutdown(ctx)
	})
	return h
}

func (h *harness) create(t *testing.T, id string, upload bool) domain.Generation {
	t.Helper()
	original := "uploads/" + id + ".png"
	if upload {
		if _, err := h.store.Write(context.Background(), original, []byte("png-bytes")); err != nil {
			t.Fatalf("write upload: %v", err)
		}
	}
	g, err := h.repo.Create(context.Background(), domain.NewGeneration{
		ID: id, UserID: 1, Prompt: "a lighthouse", Style: domain.StyleRealistic, OriginalPath: original,
	})
	if err != nil {
		t.Fatalf("create generation: %v", err)
	}
	return *g
}

func (h *harness) wait(t *testing.T) domain.GenerationStatus {
	t.Helper()
	select {
	case status := <-h.done:
		return status
	case <-time.After(2 * time.Second):
		t.Fatalf("generation did not finish in time")
		return ""
	}
}

func TestProcessorSuccessCopiesOriginal(t *testing.T) {
	h := newHarness(t, Fixed(time.Millisecond, false))
	g := h.create(t, "ok", true)

	if err := h.proc.Submit(g); err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if status := h.wait(t); status != domain.StatusCompleted {
		t.Fatalf("recorded status = %q, want completed", status)
	}
	stored, _ := h.repo.GetByID(context.Background(), "ok")
	if stored.Status != domain.StatusCompleted || stored.ResultPath == nil {
		t.Fatalf("stored = %+v, want completed with result", stored)
	}
	if *stored.ResultPath != "results/ok.png" {
		t.Fatalf("result path = %q", *stored.ResultPath)
	}
	data, err := os.ReadFile(filepath.Join(h.store.BasePath(), "results", "ok.png"))
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("result artifact = %q, %v", data, err)
	}
}

func TestProcessorSimulatedFailure(t *testing.T) {
	h := newHarness(t, Fixed(time.Millisecond, true))
	g := h.create(t, "bad", true)

	_ = h.proc.Submit(g)
	if status := h.wait(t); status != domain.StatusFailed {
		t.Fatalf("recorded status = %q, want failed", status)
	}
	stored, _ := h.repo.GetByID(context.Background(), "bad")
	if stored.ResultPath != nil {
		t.Fatalf("failed generation must not carry a result path")
	}
}

func TestProcessorMaterializeErrorMarksFailed(t *testing.T) {
	h := newHarness(t, Fixed(time.Millisecond, false))
	g := h.create(t, "nofile", false)

	_ = h.proc.Submit(g)
	if status := h.wait(t); status != domain.StatusFailed {
		t.Fatalf("recorded status = %q, want failed", status)
	}
}

func TestProcessorToleratesDeletedRow(t *testing.T) {
	h := newHarness(t, Fixed(20*time.Millisecond, false))
	g := h.create(t, "gone", true)

	_ = h.proc.Submit(g)
	if err := h.repo.Delete(context.Background(), "gone"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if status := h.wait(t); status != "" {
		t.Fatalf("recorded status = %q, want nothing recorded", status)
	}
}

func TestProcessorDoubleSubmitWritesOnce(t *testing.T) {
	h := newHarness(t, Fixed(time.Millisecond, false))
	g := h.create(t, "twice", true)

	_ = h.proc.Submit(g)
	_ = h.proc.Submit(g)
	first, second := h.wait(t), h.wait(t)
	if (first == "") == (second == "") {
		t.Fatalf("statuses %q and %q, want exactly one recorded write", first, second)
	}
}

func TestProcessorRecoversPanics(t *testing.T) {
	h := newHarness(t, StrategyFunc(func() Outcome { panic("strategy exploded") }))
	g := h.create(t, "panic", true)

	_ = h.proc.Submit(g)
	if status := h.wait(t); status != domain.StatusFailed {
		t.Fatalf("recorded status = %q, want failed", status)
	}
}

type flakyRepo struct {
	domain.GenerationRepository
	mu       sync.Mutex
	failures int
}

func (r *flakyRepo) UpdateStatus(ctx context.Context, id string, status domain.GenerationStatus, resultPath *string) (*domain.Generation, error) {
	r.mu.Lock()
	if status == domain.StatusCompleted && r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return nil, errors.New("connection reset")
	}
	r.mu.Unlock()
	return r.GenerationRepository.UpdateStatus(ctx, id, status, resultPath)
}

func TestProcessorFallsBackToFailedOnStoreError(t *testing.T) {
	h := newHarness(t, Fixed(time.Millisecond, false))
	h.proc.repo = &flakyRepo{GenerationRepository: h.repo, failures: 1}
	g := h.create(t, "flaky", true)

	_ = h.proc.Submit(g)
	if status := h.wait(t); status != domain.StatusFailed {
		t.Fatalf("recorded status = %q, want failed", status)
	}
	stored, _ := h.repo.GetByID(context.Background(), "flaky")
	if stored.Status != domain.StatusFailed {
		t.Fatalf("stored status = %s, want failed", stored.Status)
	}
	result, err := h.store.Path("results/flaky.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(result); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("result file left behind after failed write: %v", err)
	}
}

func TestProcessorShutdownFailsPendingJobs(t *testing.T) {
	h := newHarness(t, Fixed(time.Hour, false))
	g := h.create(t, "slow", true)

	_ = h.proc.Submit(g)
	if h.proc.InFlight() != 1 {
		t.Fatalf("InFlight = %d, want 1", h.proc.InFlight())
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.proc.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}
	if status := h.wait(t); status != domain.StatusFailed {
		t.Fatalf("recorded status = %q, want failed", status)
	}
	if h.proc.InFlight() != 0 {
		t.Fatalf("InFlight = %d after shutdown", h.proc.InFlight())
	}
	if err := h.proc.Submit(g); !errors.Is(err, ErrClosed) {
		t.Fatalf("Submit after shutdown = %v, want ErrClosed", err)
	}
}

func TestRandomStrategyBounds(t *testing.T) {
	s := NewRandomStrategy(10*time.Millisecond, 30*time.Millisecond, 0, 42)
	for i := 0; i < 200; i++ {
		o := s.Next()
		if o.Delay < 10*time.Millisecond || o.Delay > 30*time.Millisecond {
			t.Fatalf("delay %s outside bounds", o.Delay)
		}
		if o.Fail {
			t.Fatalf("failure drawn with zero failure rate")
		}
	}
	always := NewRandomStrategy(0, 0, 1, 42)
	for i := 0; i < 50; i++ {
		if o := always.Next(); !o.Fail || o.Delay != 0 {
			t.Fatalf("Next() = %+v, want immediate failure", o)
		}
	}
}

func TestRandomStrategyFailureRate(t *testing.T) {
	s := NewRandomStrategy(0, 0, 0.2, 7)
	fails := 0
	const draws = 5000
	for i := 0; i < draws; i++ {
		if s.Next().Fail {
			fails++
		}
	}
	rate := float64(fails) / draws
	if rate < 0.15 || rate > 0.25 {
		t.Fatalf("observed failure rate %.3f, want about 0.2", rate)
	}
}
