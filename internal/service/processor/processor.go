package processor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fusionn-batch/internal/domain"
	"github.com/fusionn-batch/internal/job"
	"github.com/fusionn-batch/internal/notify"
	"github.com/fusionn-batch/internal/validate"
	"github.com/fusionn-batch/pkg/logger"
)

// ErrAlreadyProcessing is returned when the same operation is requested twice.
var ErrAlreadyProcessing = errors.New("operation already in progress")

const msgNoLanguages = "Select at least one target language"

// Result is the outcome of a single-file request.
type Result struct {
	Validation validate.Result   `json:"validation"`
	Job        *domain.Job       `json:"job,omitempty"`
	Artifacts  []domain.Artifact `json:"artifacts,omitempty"`
	Duration   string            `json:"duration,omitempty"`
}

// slot tracks one operation. Transcription and translation run independently.
type slot struct {
	busy    bool
	machine *job.Machine
	last    *Result
}

// Service handles single-file transcription and translation.
type Service struct {
	validator   *validate.Validator
	backend     job.Backend
	assembler   job.Assembler
	notifier    notify.Notifier
	stepTimeout time.Duration

	mu    sync.Mutex
	slots map[domain.JobType]*slot
}

// New creates a new processor service.
func New(v *validate.Validator, b job.Backend, asm job.Assembler, n notify.Notifier, stepTimeout time.Duration) *Service {
	if n == nil {
		n = notify.Nop{}
	}
	return &Service{
		validator:   v,
		backend:     b,
		assembler:   asm,
		notifier:    n,
		stepTimeout: stepTimeout,
		slots: map[domain.JobType]*slot{
			domain.JobTypeTranscribe: {},
			domain.JobTypeTranslate:  {},
		},
	}
}

// stepTimer tracks timing for a processing step.
type stepTimer struct {
	name  string
	start time.Time
}

func startStep(name string) *stepTimer {
	return &stepTimer{name: name, start: time.Now()}
}

func (s *stepTimer) done() time.Duration {
	elapsed := time.Since(s.start)
	logger.Infof("   ⏱️  %s: %v", s.name, formatDuration(elapsed))
	return elapsed
}

// formatDuration formats duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

// Transcribe validates and transcribes one file, waiting for the outcome.
func (s *Service) Transcribe(ctx context.Context, file domain.MediaFile) (*Result, error) {
	return s.run(ctx, domain.JobTypeTranscribe, file, nil, true)
}

// Translate validates and translates one file into langs, waiting for the outcome.
func (s *Service) Translate(ctx context.Context, file domain.MediaFile, langs []string) (*Result, error) {
	return s.run(ctx, domain.JobTypeTranslate, file, langs, true)
}

// LaunchTranscribe is Transcribe without waiting; poll with Current.
func (s *Service) LaunchTranscribe(ctx context.Context, file domain.MediaFile) (*Result, error) {
	return s.run(ctx, domain.JobTypeTranscribe, file, nil, false)
}

// LaunchTranslate is Translate without waiting; poll with Current.
func (s *Service) LaunchTranslate(ctx context.Context, file domain.MediaFile, langs []string) (*Result, error) {
	return s.run(ctx, domain.JobTypeTranslate, file, langs, false)
}

// IsProcessing reports whether op is running.
func (s *Service) IsProcessing(op domain.JobType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[op]
	return ok && sl.busy
}

// Current returns the running job of op, or its last result.
func (s *Service) Current(op domain.JobType) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[op]
	if !ok {
		return Result{}, false
	}
	if sl.busy && sl.machine != nil {
		snap := sl.machine.Snapshot()
		return Result{Validation: validate.Result{Valid: true, Errors: []string{}}, Job: &snap}, true
	}
	if sl.last != nil {
		return *sl.last, true
	}
	return Result{}, false
}

func (s *Service) run(ctx context.Context, op domain.JobType, file domain.MediaFile, langs []string, wait bool) (*Result, error) {
	m, res, err := s.acquire(op, file, langs)
	if err != nil || m == nil {
		return res, err
	}

	if !wait {
		go s.execute(ctx, op, m, res.Validation)
		snap := m.Snapshot()
		res.Job = &snap
		return res, nil
	}
	return s.execute(ctx, op, m, res.Validation), nil
}

// acquire claims the operation flag. A nil machine with a nil error means
// validation rejected the file.
func (s *Service) acquire(op domain.JobType, file domain.MediaFile, langs []string) (*job.Machine, *Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slots[op]
	if sl.busy {
		return nil, nil, fmt.Errorf("%s: %w", op.Label(), ErrAlreadyProcessing)
	}

	langs = job.LanguageSet(langs)
	v := s.validator.File(file)
	if op.Translates() && len(langs) == 0 {
		v = validate.Result{Valid: false, Errors: append(slices.Clone(v.Errors), msgNoLanguages)}
	}
	if !v.Valid {
		logger.Warnf("⚠️ %s rejected %s: %s", op.Label(), file.Name, v.Message())
		s.notifier.Notify(notify.ValidationFailed(op.Label(), v.Errors))
		return nil, &Result{Validation: v}, nil
	}

	sl.busy = true
	sl.machine = job.New(file, op, langs, s.assembler, job.WithStepTimeout(s.stepTimeout))
	return sl.machine, &Result{Validation: v}, nil
}

func (s *Service) execute(ctx context.Context, op domain.JobType, m *job.Machine, v validate.Result) *Result {
	snap := m.Snapshot()

	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Infof("🎬 Starting %s: %s (job: %s)", op.Label(), snap.File.Name, snap.ID)
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	s.notifier.Notify(notify.JobStarted(snap))

	t := startStep(op.Label())
	if err := m.Run(ctx, s.backend, nil); err != nil {
		logger.Errorf("❌ %s %s: %v", op.Label(), snap.ID, err)
	}
	elapsed := t.done()

	final := m.Snapshot()
	res := &Result{
		Validation: v,
		Job:        &final,
		Artifacts:  m.Artifacts(),
		Duration:   formatDuration(elapsed),
	}

	if final.Status == domain.StatusCompleted {
		logger.Infof("✅ %s completed: %s (%d files)", op.Label(), final.File.Name, len(res.Artifacts))
		s.notifier.Notify(notify.JobSucceeded(final, len(res.Artifacts)))
	} else {
		s.handleError(final)
	}

	s.mu.Lock()
	sl := s.slots[op]
	sl.busy = false
	sl.machine = nil
	sl.last = res
	s.mu.Unlock()

	return res
}

func (s *Service) handleError(j domain.Job) {
	logger.Errorf("❌ %s failed at %.0f%%: %s", j.Type.Label(), j.Progress, j.Error)
	s.notifier.Notify(notify.JobFailed(j))
}
