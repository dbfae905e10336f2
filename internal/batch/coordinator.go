package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/fusionn-batch/internal/domain"
	"github.com/fusionn-batch/internal/job"
	"github.com/fusionn-batch/internal/notify"
	"github.com/fusionn-batch/internal/output"
	"github.com/fusionn-batch/internal/validate"
	"github.com/fusionn-batch/pkg/logger"
)

var (
	// ErrBatchInProgress is returned when a run is requested while one is active.
	ErrBatchInProgress = errors.New("batch already in progress")
	// ErrNoResult is returned when there is no finished batch to act on.
	ErrNoResult = errors.New("no batch result")
	// ErrNothingToRetry is returned when the last batch had no failures.
	ErrNothingToRetry = errors.New("no failed files to retry")
)

// DefaultAdvanceThreshold is the progress at which the next file starts.
const DefaultAdvanceThreshold = 95.0

const msgNoLanguages = "Select at least one target language"

// Options carries per-run settings.
type Options struct {
	TargetLanguages []string
}

// Result is returned for every accepted or rejected start request.
type Result struct {
	Validation validate.Result     `json:"validation"`
	Jobs       []domain.Job        `json:"jobs,omitempty"`  // snapshots at start
	Batch      *domain.BatchResult `json:"batch,omitempty"` // set once the run is over
}

// Tick is emitted after every applied progress update.
type Tick struct {
	Aggregate float64    `json:"aggregate"`
	Current   int        `json:"current"`
	Terminal  int        `json:"terminal"`
	Total     int        `json:"total"`
	Job       domain.Job `json:"job"`
}

// Progress is a point-in-time view of the coordinator.
type Progress struct {
	Processing bool         `json:"is_processing"`
	Aggregate  float64      `json:"aggregate_progress"`
	Current    int          `json:"current"`
	Jobs       []domain.Job `json:"jobs"`
}

// Coordinator runs batches one file at a time. At most one batch runs at once.
type Coordinator struct {
	validator   *validate.Validator
	backend     job.Backend
	assembler   *output.Assembler
	notifier    notify.Notifier
	threshold   float64
	stepTimeout time.Duration
	ticks       chan<- Tick

	mu         sync.RWMutex
	processing bool
	machines   []*job.Machine
	snapshots  []domain.Job
	current    int
	aggregate  float64
	last       *domain.BatchResult
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithAdvanceThreshold(p float64) Option {
	return func(c *Coordinator) {
		if p > 0 && p <= 100 {
			c.threshold = p
		}
	}
}

func WithStepTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.stepTimeout = d }
}

// WithTicks publishes a Tick per update on ch. Sends never block; ticks are
// dropped when ch is full.
func WithTicks(ch chan<- Tick) Option {
	return func(c *Coordinator) { c.ticks = ch }
}

// New creates a coordinator.
func New(v *validate.Validator, b job.Backend, asm *output.Assembler, n notify.Notifier, opts ...Option) *Coordinator {
	if n == nil {
		n = notify.Nop{}
	}
	c := &Coordinator{
		validator: v,
		backend:   b,
		assembler: asm,
		notifier:  n,
		threshold: DefaultAdvanceThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartBatch validates files and, when valid, processes them to completion.
// Validation failures are reported in the result, not as an error.
func (c *Coordinator) StartBatch(ctx context.Context, files []domain.MediaFile, jobType domain.JobType, opts Options) (*Result, error) {
	res, machines, err := c.prepare(files, jobType, opts)
	if err != nil || machines == nil {
		return res, err
	}

	br := c.run(ctx, machines)
	res.Batch = &br
	return res, nil
}

// Launch is StartBatch without waiting for the run to finish. Validation and
// the single-flight check happen before it returns.
func (c *Coordinator) Launch(ctx context.Context, files []domain.MediaFile, jobType domain.JobType, opts Options) (*Result, error) {
	res, machines, err := c.prepare(files, jobType, opts)
	if err != nil || machines == nil {
		return res, err
	}

	go c.run(ctx, machines)
	return res, nil
}

// RetryFailed re-runs the failed files of the last batch as new jobs.
func (c *Coordinator) RetryFailed(ctx context.Context) (*Result, error) {
	files, jobType, opts, err := c.retryArgs()
	if err != nil {
		return nil, err
	}
	return c.StartBatch(ctx, files, jobType, opts)
}

// LaunchRetry is RetryFailed without waiting.
func (c *Coordinator) LaunchRetry(ctx context.Context) (*Result, error) {
	files, jobType, opts, err := c.retryArgs()
	if err != nil {
		return nil, err
	}
	return c.Launch(ctx, files, jobType, opts)
}

func (c *Coordinator) retryArgs() ([]domain.MediaFile, domain.JobType, Options, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.processing {
		return nil, "", Options{}, ErrBatchInProgress
	}
	if c.last == nil {
		return nil, "", Options{}, ErrNoResult
	}

	var files []domain.MediaFile
	var jobType domain.JobType
	var opts Options
	for _, j := range c.last.Jobs {
		if j.Status != domain.StatusFailed {
			continue
		}
		files = append(files, j.File)
		jobType = j.Type
		opts.TargetLanguages = j.TargetLanguages
	}
	if len(files) == 0 {
		return nil, "", Options{}, ErrNothingToRetry
	}
	return files, jobType, opts, nil
}

// IsProcessing reports whether a batch is running.
func (c *Coordinator) IsProcessing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.processing
}

// Progress returns the current batch state.
func (c *Coordinator) Progress() Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Progress{
		Processing: c.processing,
		Aggregate:  c.aggregate,
		Current:    c.current,
		Jobs:       slices.Clone(c.snapshots),
	}
}

// LastResult returns the most recent finished batch.
func (c *Coordinator) LastResult() (domain.BatchResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return domain.BatchResult{}, false
	}
	return *c.last, true
}

// Bundle lists the artifacts of the last batch for packaging.
func (c *Coordinator) Bundle() (output.Bundle, error) {
	res, ok := c.LastResult()
	if !ok {
		return output.Bundle{}, ErrNoResult
	}
	return c.assembler.BuildBundle(res)
}

// Clear drops the last batch and its jobs.
func (c *Coordinator) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.processing {
		return ErrBatchInProgress
	}
	c.machines = nil
	c.snapshots = nil
	c.current = 0
	c.aggregate = 0
	c.last = nil
	return nil
}

// prepare claims the processing flag and builds one pending job per file.
// A nil machine slice with a nil error means validation rejected the request.
func (c *Coordinator) prepare(files []domain.MediaFile, jobType domain.JobType, opts Options) (*Result, []*job.Machine, error) {
	if _, ok := domain.ParseJobType(string(jobType)); !ok {
		return nil, nil, fmt.Errorf("unknown job type %q", jobType)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.processing {
		return nil, nil, ErrBatchInProgress
	}

	langs := job.LanguageSet(opts.TargetLanguages)
	v := c.validator.Batch(files)
	if jobType.Translates() && len(langs) == 0 {
		v = validate.Result{Valid: false, Errors: append(slices.Clone(v.Errors), msgNoLanguages)}
	}
	if !v.Valid {
		logger.Warnf("⚠️ Batch rejected: %s", v.Message())
		c.notifier.Notify(notify.ValidationFailed("Batch "+jobType.Label(), v.Errors))
		return &Result{Validation: v}, nil, nil
	}

	machines := make([]*job.Machine, len(files))
	snapshots := make([]domain.Job, len(files))
	for i, f := range files {
		machines[i] = job.New(f, jobType, langs, c.assembler, job.WithStepTimeout(c.stepTimeout))
		snapshots[i] = machines[i].Snapshot()
	}

	c.processing = true
	c.machines = machines
	c.snapshots = snapshots
	c.current = 0
	c.aggregate = 0

	return &Result{Validation: v, Jobs: slices.Clone(snapshots)}, machines, nil
}

// run advances the pointer through machines and returns once every job is
// terminal. The next job starts when the current one reaches the threshold or
// finishes; earlier jobs keep draining until they are terminal.
func (c *Coordinator) run(ctx context.Context, machines []*job.Machine) domain.BatchResult {
	total := len(machines)
	started := time.Now()
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Infof("📦 Batch started: %d files", total)
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	index := make(map[string]int, total)
	for i, m := range machines {
		index[m.ID()] = i
	}

	updates := make(chan domain.Job)
	var wg conc.WaitGroup
	start := func(i int) {
		m := machines[i]
		snap := m.Snapshot()
		logger.Infof("🔄 [%d/%d] %s: %s", i+1, total, snap.Type.Label(), snap.File.Name)
		c.notifier.Notify(notify.JobStarted(snap))
		wg.Go(func() {
			if err := m.Run(ctx, c.backend, updates); err != nil {
				logger.Errorf("❌ Job %s: %v", snap.ID, err)
			}
		})
	}

	start(0)
	current, terminal := 0, 0
	for terminal < total {
		snap := <-updates
		i := index[snap.ID]

		if snap.Status.IsTerminal() {
			terminal++
			c.reportJob(machines[i], snap)
		}

		if i == current && current < total-1 && (snap.Progress >= c.threshold || snap.Status.IsTerminal()) {
			current++
			start(current)
		}

		c.record(i, snap, current, terminal, total)
	}

	wg.Wait()

	jobs := make([]domain.Job, total)
	artifacts := make(map[string][]domain.Artifact)
	for i, m := range machines {
		jobs[i] = m.Snapshot()
		if jobs[i].Status == domain.StatusCompleted {
			artifacts[jobs[i].ID] = m.Artifacts()
		}
	}
	res := domain.NewBatchResult(jobs, artifacts)

	c.mu.Lock()
	c.snapshots = slices.Clone(jobs)
	c.aggregate = Aggregate(jobs)
	c.last = &res
	c.processing = false
	c.mu.Unlock()

	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	logger.Infof("✅ Batch complete: %d succeeded, %d failed", res.Summary.Succeeded, res.Summary.Failed)
	logger.Infof("⏱️  Total time: %s", time.Since(started).Round(time.Millisecond))
	logger.Infof("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	c.notifier.Notify(notify.BatchFinished(res.Summary))

	return res
}

func (c *Coordinator) record(i int, snap domain.Job, current, terminal, total int) {
	c.mu.Lock()
	c.snapshots[i] = snap
	c.current = current
	c.aggregate = Aggregate(c.snapshots)
	tick := Tick{Aggregate: c.aggregate, Current: current, Terminal: terminal, Total: total, Job: snap}
	c.mu.Unlock()

	if c.ticks == nil {
		return
	}
	select {
	case c.ticks <- tick:
	default:
	}
}

func (c *Coordinator) reportJob(m *job.Machine, snap domain.Job) {
	if snap.Status == domain.StatusCompleted {
		n := len(m.Artifacts())
		logger.Infof("✅ Job completed: %s (%s, %d artifacts)", snap.ID, snap.File.Name, n)
		c.notifier.Notify(notify.JobSucceeded(snap, n))
		return
	}
	logger.Errorf("❌ Job %s failed at %.0f%%: %s", snap.ID, snap.Progress, snap.Error)
	c.notifier.Notify(notify.JobFailed(snap))
}

// Aggregate gives each job an equal share of 100. Terminal jobs fill their
// share; others contribute their own progress. It reaches 100 only when every
// job is terminal.
func Aggregate(jobs []domain.Job) float64 {
	if len(jobs) == 0 {
		return 0
	}

	var sum float64
	done := true
	for _, j := range jobs {
		if j.Status.IsTerminal() {
			sum += 100
			continue
		}
		done = false
		sum += min(max(j.Progress, 0), 100)
	}

	if done {
		return 100
	}
	// rounding must not report a finished batch while a job still runs
	return min(sum/float64(len(jobs)), belowFull)
}

var belowFull = math.Nextafter(100, 0)
