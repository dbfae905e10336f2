package job

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fusionn-batch/internal/domain"
	"github.com/fusionn-batch/pkg/logger"
)

var (
	// ErrAlreadyRunning is returned when Run is called on a running machine.
	ErrAlreadyRunning = errors.New("job already running")
	// ErrFinished is returned when Run is called on a terminal machine.
	ErrFinished = errors.New("job already finished")
	// ErrStepTimeout is recorded when the backend goes quiet for too long.
	ErrStepTimeout = errors.New("no progress from backend")
	// ErrStreamClosed is recorded when the backend stream ends without an outcome.
	ErrStreamClosed = errors.New("backend stream ended without completion")
)

// Machine drives one job through pending → running → completed|failed.
type Machine struct {
	mu        sync.RWMutex
	job       domain.Job
	artifacts []domain.Artifact

	assembler   Assembler
	stepTimeout time.Duration
}

// Option configures a Machine.
type Option func(*Machine)

// WithStepTimeout fails the job when no event arrives within d. Zero disables it.
func WithStepTimeout(d time.Duration) Option {
	return func(m *Machine) { m.stepTimeout = d }
}

// New creates a pending job with a fresh id.
func New(file domain.MediaFile, jobType domain.JobType, languages []string, asm Assembler, opts ...Option) *Machine {
	j := domain.Job{
		ID:        uuid.New().String()[:8],
		File:      file,
		Type:      jobType,
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}
	if jobType.Translates() {
		j.TargetLanguages = LanguageSet(languages)
	}

	m := &Machine{job: j, assembler: asm}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LanguageSet lower-cases and trims codes, dropping blanks and repeats while
// keeping first-seen order.
func LanguageSet(languages []string) []string {
	out := make([]string, 0, len(languages))
	for _, l := range languages {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || slices.Contains(out, l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (m *Machine) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.job.ID
}

// Snapshot returns a copy of the job.
func (m *Machine) Snapshot() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot()
}

func (m *Machine) snapshot() domain.Job {
	j := m.job
	j.TargetLanguages = slices.Clone(m.job.TargetLanguages)
	return j
}

// Artifacts returns the outputs built on completion.
func (m *Machine) Artifacts() []domain.Artifact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.artifacts)
}

// Run submits the job to b and applies its progress stream until the job is
// terminal. A snapshot is sent on updates after every applied event, in order.
// Processing failures are recorded on the job, not returned; the error result
// only reports misuse.
func (m *Machine) Run(ctx context.Context, b Backend, updates chan<- domain.Job) error {
	if err := m.start(); err != nil {
		return err
	}
	m.publish(ctx, updates)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel() // stops the backend once we stop reading

	snap := m.Snapshot()
	stream, err := b.Submit(ctx, snap.File, Options{Type: snap.Type, TargetLanguages: snap.TargetLanguages})
	if err != nil {
		m.fail(fmt.Errorf("submit: %w", err))
		m.publish(ctx, updates)
		return nil
	}

	var timeout <-chan time.Time
	var timer *time.Timer
	if m.stepTimeout > 0 {
		timer = time.NewTimer(m.stepTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			m.fail(ctx.Err())
		case <-timeout:
			m.fail(fmt.Errorf("%w within %v", ErrStepTimeout, m.stepTimeout))
		case ev, ok := <-stream:
			switch {
			case !ok:
				m.fail(ErrStreamClosed)
			case ev.Err != nil:
				m.fail(ev.Err)
			case ev.Done:
				m.advance(100)
			default:
				m.advance(ev.Delta)
			}
		}

		m.publish(ctx, updates)
		if m.Snapshot().Status.IsTerminal() {
			return nil
		}

		if timer != nil {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.stepTimeout)
		}
	}
}

func (m *Machine) start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.job.Status {
	case domain.StatusRunning:
		return ErrAlreadyRunning
	case domain.StatusCompleted, domain.StatusFailed:
		return ErrFinished
	}

	m.job.Status = domain.StatusRunning
	m.job.StartedAt = time.Now()
	return nil
}

// advance adds a non-negative delta, clamping at 100. Reaching 100 completes
// the job and discards any excess.
func (m *Machine) advance(delta float64) {
	m.mu.Lock()
	if m.job.Status != domain.StatusRunning {
		m.mu.Unlock()
		return
	}
	if delta < 0 {
		logger.Warnf("⚠️ Job %s: ignoring negative progress delta %.2f", m.job.ID, delta)
		delta = 0
	}

	m.job.Progress += delta
	if m.job.Progress < 100 {
		m.mu.Unlock()
		return
	}

	m.job.Progress = 100
	m.job.Status = domain.StatusCompleted
	m.job.CompletedAt = time.Now()
	done := m.snapshot()
	m.mu.Unlock()

	if m.assembler == nil {
		return
	}
	artifacts, err := m.assembler.BuildArtifacts(done)
	if err != nil {
		logger.Errorf("❌ Job %s: build artifacts: %v", done.ID, err)
		return
	}

	m.mu.Lock()
	m.artifacts = artifacts
	m.mu.Unlock()
}

// fail records err and leaves progress at its last value.
func (m *Machine) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job.Status != domain.StatusRunning {
		return
	}
	m.job.Status = domain.StatusFailed
	m.job.Error = err.Error()
	m.job.CompletedAt = time.Now()
}

// publish sends the current snapshot. Terminal snapshots are always delivered;
// others give up when ctx is done.
func (m *Machine) publish(ctx context.Context, updates chan<- domain.Job) {
	if updates == nil {
		return
	}

	snap := m.Snapshot()
	if snap.Status.IsTerminal() {
		updates <- snap
		return
	}

	select {
	case updates <- snap:
	case <-ctx.Done():
	}
}
