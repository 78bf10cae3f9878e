package processor

import (
	"math/rand"
	"sync"
	"time"
)

// Outcome is the simulated result of one generation: how long the "model"
// takes and whether it fails.
type Outcome struct {
	Delay time.Duration
	Fail  bool
}

// Strategy decides the outcome of each generation.
type Strategy interface {
	Next() Outcome
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func() Outcome

func (f StrategyFunc) Next() Outcome { return f() }

// Fixed always returns the same outcome.
func Fixed(delay time.Duration, fail bool) Strategy {
	return StrategyFunc(func() Outcome { return Outcome{Delay: delay, Fail: fail} })
}

// RandomStrategy draws a uniform delay in [MinDelay, MaxDelay] and fails with
// probability FailureRate.
type RandomStrategy struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomStrategy seeds a RandomStrategy. A zero seed uses the clock.
func NewRandomStrategy(minDelay, maxDelay time.Duration, failureRate float64, seed int64) *RandomStrategy {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &RandomStrategy{
		MinDelay:    minDelay,
		MaxDelay:    maxDelay,
		FailureRate: failureRate,
		rnd:         rand.New(rand.NewSource(seed)),
	}
}

func (s *RandomStrategy) Next() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	delay := s.MinDelay
	if span := s.MaxDelay - s.MinDelay; span > 0 {
		delay += time.Duration(s.rnd.Int63n(int64(span) + 1))
	}
	return Outcome{Delay: delay, Fail: s.rnd.Float64() < s.FailureRate}
}
