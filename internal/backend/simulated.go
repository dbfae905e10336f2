package backend

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/fusionn-batch/internal/config"
	"github.com/fusionn-batch/internal/domain"
	"github.com/fusionn-batch/internal/job"
	"github.com/fusionn-batch/pkg/logger"
)

// ErrSimulatedFailure is emitted when the simulated backend rolls a failure.
var ErrSimulatedFailure = errors.New("simulated processing failure")

// Simulated fabricates progress on a ticker. Each tick emits a random delta in
// [MinDelta, MaxDelta] until 100 is reached, then signals completion.
type Simulated struct {
	tick        time.Duration
	minDelta    float64
	maxDelta    float64
	failureRate float64
	limiter     *rate.Limiter
	rand        func() float64
}

// NewSimulated creates a simulated backend from config.
func NewSimulated(cfg config.BackendConfig, rpm int) *Simulated {
	s := &Simulated{
		tick:        time.Duration(cfg.TickMs) * time.Millisecond,
		minDelta:    cfg.MinDelta,
		maxDelta:    cfg.MaxDelta,
		failureRate: cfg.FailureRate,
		rand:        rand.Float64,
	}
	if s.tick <= 0 {
		s.tick = 200 * time.Millisecond
	}
	if s.maxDelta <= 0 {
		s.minDelta, s.maxDelta = 5, 15
	}
	if s.maxDelta < s.minDelta {
		s.maxDelta = s.minDelta
	}

	// Translation submissions are throttled like the upstream translator API.
	if rpm > 0 {
		rps := float64(rpm) / 60.0
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		logger.Infof("🚦 Translation rate limit: %d RPM", rpm)
	}

	return s
}

// Submit implements job.Backend.
func (s *Simulated) Submit(ctx context.Context, file domain.MediaFile, opts job.Options) (<-chan job.Event, error) {
	if s.limiter != nil && opts.Type.Translates() {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	logger.Debugf("🎛️ Simulating %s for %s", opts.Type.Label(), file.Name)

	out := make(chan job.Event)
	go s.run(ctx, out)
	return out, nil
}

func (s *Simulated) run(ctx context.Context, out chan<- job.Event) {
	defer close(out)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	var total float64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		ev := job.Event{Delta: s.minDelta + s.rand()*(s.maxDelta-s.minDelta)}
		if s.failureRate > 0 && s.rand() < s.failureRate {
			ev = job.Event{Err: ErrSimulatedFailure}
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
		if ev.Err != nil {
			return
		}

		total += ev.Delta
		if total >= 100 {
			select {
			case out <- job.Event{Done: true}:
			case <-ctx.Done():
			}
			return
		}
	}
}
