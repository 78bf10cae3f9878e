package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// State is a controller lifecycle state.
type State string

const (
	StateIdle         State = "idle"
	StateSubmitting   State = "submitting"
	StateRetryWaiting State = "retry-waiting"
	StateCancelled    State = "cancelled"
	StateSucceeded    State = "succeeded"
	StateFailedFinal  State = "failed-final"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
	DefaultListLimit  = 5
)

const (
	MsgImageRequired  = "Please select an image"
	MsgPromptRequired = "Please enter a prompt"
	MsgSucceeded      = "Generation started"
)

// MsgUnavailable replaces transport failures, whose text is not meant for users.
const MsgUnavailable = "Could not reach the server, please try again"

var (
	// ErrInFlight is returned by Submit while an attempt is running.
	ErrInFlight = errors.New("client: generation already in progress")
	// ErrInvalidInput is returned by Submit when the form is incomplete.
	ErrInvalidInput = errors.New("client: invalid generation input")

	errSuperseded = errors.New("client: attempt superseded")
)

// API is the part of Client the controller needs.
type API interface {
	CreateGeneration(ctx context.Context, in GenerationInput) (*Generation, error)
	ListGenerations(ctx context.Context, limit int) (*GenerationList, error)
}

// Snapshot is the observable controller state.
type Snapshot struct {
	State   State
	Retries int
	// Message is the progress, success or error text to show the user.
	Message    string
	Generation *Generation
	Err        error
}

// Controller runs one generation attempt at a time, retrying on model
// overload and honoring cancellation at any point.
type Controller struct {
	api API

	MaxRetries int
	RetryDelay time.Duration
	ListLimit  int
	Logger     zerolog.Logger
	// OnChange receives every state change in order. It must not call Submit
	// or Cancel synchronously.
	OnChange func(Snapshot)

	// emitMu orders listener calls; it is always taken before mu.
	emitMu sync.Mutex
	mu     sync.Mutex
	snap   Snapshot
	// attempt identifies the running attempt. Goroutines holding an older
	// value must not touch state.
	attempt uint64
	cancel  context.CancelFunc
	history []Generation
}

func NewController(api API) *Controller {
	return &Controller{
		api:        api,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		ListLimit:  DefaultListLimit,
		Logger:     zerolog.Nop(),
		snap:       Snapshot{State: StateIdle},
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *Controller) State() State {
	return c.Snapshot().State
}

// History returns the generation list from the last refresh.
func (c *Controller) History() []Generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Generation(nil), c.history...)
}

// update mutates state under mu when attempt still owns the controller and
// then notifies the listener, in order, outside mu.
func (c *Controller) update(attempt uint64, fn func(s *Snapshot)) bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if attempt != c.attempt {
		c.mu.Unlock()
		return false
	}
	prev := c.snap
	fn(&c.snap)
	snap := c.snap
	c.mu.Unlock()

	if c.OnChange != nil && snap != prev {
		c.OnChange(snap)
	}
	return true
}

// Submit validates in and starts an attempt. The returned channel is closed
// once the attempt has ended by success, final failure or cancellation.
func (c *Controller) Submit(in GenerationInput) (<-chan struct{}, error) {
	var msg string
	switch {
	case len(in.Image) == 0:
		msg = MsgImageRequired
	case strings.TrimSpace(in.Prompt) == "":
		msg = MsgPromptRequired
	}

	c.emitMu.Lock()
	c.mu.Lock()
	if c.snap.State == StateSubmitting || c.snap.State == StateRetryWaiting {
		c.mu.Unlock()
		c.emitMu.Unlock()
		return nil, ErrInFlight
	}
	if msg != "" {
		c.snap = Snapshot{State: StateIdle, Message: msg, Err: ErrInvalidInput}
		snap := c.snap
		c.mu.Unlock()
		if c.OnChange != nil {
			c.OnChange(snap)
		}
		c.emitMu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, msg)
	}

	c.attempt++
	attempt := c.attempt
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.snap = Snapshot{State: StateSubmitting}
	snap := c.snap
	c.mu.Unlock()
	if c.OnChange != nil {
		c.OnChange(snap)
	}
	c.emitMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		c.run(ctx, attempt, in)
	}()
	return done, nil
}

// Cancel aborts the running attempt, stopping any request or retry wait, and
// returns the controller to idle without an error. It reports whether an
// attempt was running.
func (c *Controller) Cancel() bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.snap.State != StateSubmitting && c.snap.State != StateRetryWaiting {
		c.mu.Unlock()
		return false
	}
	c.attempt++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.snap = Snapshot{State: StateCancelled}
	cancelled := c.snap
	c.snap = Snapshot{State: StateIdle}
	idle := c.snap
	c.mu.Unlock()

	if c.OnChange != nil {
		c.OnChange(cancelled)
		c.OnChange(idle)
	}
	return true
}

func (c *Controller) run(ctx context.Context, attempt uint64, in GenerationInput) {
	log := c.Logger.With().Uint64("attempt", attempt).Logger()
	var created *Generation

	op := func() error {
		if !c.update(attempt, func(s *Snapshot) { s.State = StateSubmitting }) {
			return backoff.Permanent(errSuperseded)
		}
		g, err := c.api.CreateGeneration(ctx, in)
		switch {
		case err == nil:
			created = g
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		case IsRetryable(err):
			log.Debug().Err(err).Msg("model overloaded")
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	notify := func(err error, wait time.Duration) {
		c.update(attempt, func(s *Snapshot) {
			s.Retries++
			s.State = StateRetryWaiting
			s.Message = fmt.Sprintf("Retrying... (%d/%d)", s.Retries, c.MaxRetries)
			s.Err = err
		})
	}

	schedule := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.RetryDelay), uint64(max(c.MaxRetries, 0))),
		ctx,
	)
	err := backoff.RetryNotify(op, schedule, notify)

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, errSuperseded) {
			return
		}
		log.Info().Err(err).Msg("generation failed")
		c.update(attempt, func(s *Snapshot) {
			*s = Snapshot{State: StateFailedFinal, Message: failureMessage(err), Err: err}
		})
		c.finish(attempt)
		return
	}

	if !c.update(attempt, func(s *Snapshot) {
		*s = Snapshot{State: StateSucceeded, Message: MsgSucceeded, Generation: created}
	}) {
		return
	}
	if list, err := c.api.ListGenerations(ctx, c.ListLimit); err != nil {
		log.Warn().Err(err).Msg("refresh generations failed")
	} else {
		c.mu.Lock()
		if attempt == c.attempt {
			c.history = list.Generations
		}
		c.mu.Unlock()
	}
	c.finish(attempt)
}

// failureMessage shows server messages verbatim and hides anything else.
func failureMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return MsgUnavailable
}

// finish returns the controller to idle, keeping the final message visible.
func (c *Controller) finish(attempt uint64) {
	c.update(attempt, func(s *Snapshot) {
		s.State = StateIdle
		s.Retries = 0
	})
	c.mu.Lock()
	if attempt == c.attempt {
		c.cancel = nil
	}
	c.mu.Unlock()
}

// Refresh reloads the generation history.
func (c *Controller) Refresh(ctx context.Context) ([]Generation, error) {
	list, err := c.api.ListGenerations(ctx, c.ListLimit)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.history = list.Generations
	c.mu.Unlock()
	return c.History(), nil
}
