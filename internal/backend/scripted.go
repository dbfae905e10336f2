package backend

import (
	"context"

	"github.com/fusionn-batch/internal/domain"
	"github.com/fusionn-batch/internal/job"
)

// Scripted replays a fixed event sequence for every submission. It stands in
// for a real backend where determinism matters.
type Scripted struct {
	// Script returns the events for a file. The stream closes after the last event.
	Script func(file domain.MediaFile, opts job.Options) []job.Event
	// SubmitErr, when non-nil, is returned from every Submit.
	SubmitErr error
}

// Deltas builds a script of progress deltas followed by nothing; the machine
// completes once they sum to 100.
func Deltas(deltas ...float64) []job.Event {
	events := make([]job.Event, len(deltas))
	for i, d := range deltas {
		events[i] = job.Event{Delta: d}
	}
	return events
}

// Fixed returns a Scripted backend that replays events for every file.
func Fixed(events ...job.Event) *Scripted {
	return &Scripted{Script: func(domain.MediaFile, job.Options) []job.Event { return events }}
}

// Submit implements job.Backend.
func (s *Scripted) Submit(ctx context.Context, file domain.MediaFile, opts job.Options) (<-chan job.Event, error) {
	if s.SubmitErr != nil {
		return nil, s.SubmitErr
	}

	var events []job.Event
	if s.Script != nil {
		events = s.Script(file, opts)
	}

	out := make(chan job.Event)
	go func() {
		defer close(out)
		for _, ev := range events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
