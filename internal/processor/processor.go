// Package processor simulates the asynchronous model run behind a generation.
// Each submitted job runs on its own goroutine: it waits the simulated delay,
// then writes exactly one terminal status back to the repository.
package processor

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"genstudio/internal/domain"
)

const finalizeTimeout = 5 * time.Second

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("processor: shut down")

// Materializer produces the result artifact for a generation and discards it
// when the completed write cannot be recorded.
type Materializer interface {
	Copy(ctx context.Context, srcKey, dstKey string) (string, error)
	Remove(key string) error
}

// Processor runs simulated generations in the background.
type Processor struct {
	repo     domain.GenerationRepository
	store    Materializer
	strategy Strategy
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	inFlight atomic.Int64
	// onDone is a test hook invoked after each job's terminal write attempt.
	onDone func(id string, status domain.GenerationStatus)
}

// New constructs a Processor.
func New(repo domain.GenerationRepository, store Materializer, strategy Strategy, logger zerolog.Logger) *Processor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		repo:     repo,
		store:    store,
		strategy: strategy,
		logger:   logger.With().Str("component", "processor").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit schedules g for background processing and returns immediately.
func (p *Processor) Submit(g domain.Generation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.wg.Add(1)
	p.inFlight.Add(1)
	go p.run(g)
	return nil
}

// InFlight reports how many generations are currently being processed.
func (p *Processor) InFlight() int {
	return int(p.inFlight.Load())
}

// Shutdown stops accepting work, cuts pending delays short and waits for every
// job to record a terminal status or for ctx to expire. Interrupted jobs are
// marked failed.
func (p *Processor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) run(g domain.Generation) {
	var recorded domain.GenerationStatus
	defer p.wg.Done()
	defer p.inFlight.Add(-1)
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error().Str("job_id", g.ID).Interface("panic", rec).Msg("generation panicked")
			if recorded == "" {
				recorded, _ = p.finalize(g.ID, domain.StatusFailed, nil)
			}
		}
		if p.onDone != nil {
			p.onDone(g.ID, recorded)
		}
	}()

	log := p.logger.With().Str("job_id", g.ID).Logger()
	outcome := p.strategy.Next()
	log.Debug().Dur("delay", outcome.Delay).Bool("fail", outcome.Fail).Msg("generation started")

	timer := time.NewTimer(outcome.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-p.ctx.Done():
		log.Warn().Msg("generation interrupted by shutdown")
		recorded, _ = p.finalize(g.ID, domain.StatusFailed, nil)
		return
	}

	if outcome.Fail {
		log.Info().Msg("simulated model failure")
		recorded, _ = p.finalize(g.ID, domain.StatusFailed, nil)
		return
	}

	resultKey, err := p.materialize(g)
	if err != nil {
		log.Error().Err(err).Msg("materialize result failed")
		recorded, _ = p.finalize(g.ID, domain.StatusFailed, nil)
		return
	}
	recorded, err = p.finalize(g.ID, domain.StatusCompleted, &resultKey)
	if err != nil {
		// The row is still processing; fall back to failed so it cannot hang.
		if rmErr := p.store.Remove(resultKey); rmErr != nil {
			log.Warn().Err(rmErr).Str("key", resultKey).Msg("remove unrecorded result failed")
		}
		recorded, _ = p.finalize(g.ID, domain.StatusFailed, nil)
	}
}

// materialize stands in for model output by duplicating the original upload.
func (p *Processor) materialize(g domain.Generation) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	dst := fmt.Sprintf("results/%s%s", g.ID, path.Ext(g.OriginalPath))
	return p.store.Copy(ctx, g.OriginalPath, dst)
}

// finalize performs the terminal write and returns the status actually
// recorded. A row that vanished or was already finalized is logged and left
// alone; only unexpected store failures are returned.
func (p *Processor) finalize(id string, status domain.GenerationStatus, resultPath *string) (domain.GenerationStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	log := p.logger.With().Str("job_id", id).Str("status", string(status)).Logger()
	_, err := p.repo.UpdateStatus(ctx, id, status, resultPath)
	switch {
	case err == nil:
		log.Info().Msg("generation finished")
		return status, nil
	case errors.Is(err, domain.ErrNotFound):
		log.Warn().Msg("generation disappeared before completion")
		return "", nil
	case errors.Is(err, domain.ErrAlreadyFinal):
		log.Warn().Msg("generation already finalized")
		return "", nil
	default:
		log.Error().Err(err).Msg("record generation status failed")
		return "", err
	}
}
