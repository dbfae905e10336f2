package job_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionn-batch/internal/backend"
	"github.com/fusionn-batch/internal/domain"
	"github.com/fusionn-batch/internal/job"
	"github.com/fusionn-batch/internal/output"
)

var testFile = domain.MediaFile{Name: "talk.mp3", SizeBytes: 1024, MIMEType: "audio/mpeg"}

// stallBackend returns a stream that never emits.
type stallBackend struct{}

func (stallBackend) Submit(context.Context, domain.MediaFile, job.Options) (<-chan job.Event, error) {
	return make(chan job.Event), nil
}

func runCollect(t *testing.T, m *job.Machine, b job.Backend) []domain.Job {
	t.Helper()
	updates := make(chan domain.Job, 256)
	require.NoError(t, m.Run(context.Background(), b, updates))
	close(updates)

	var out []domain.Job
	for u := range updates {
		out = append(out, u)
	}
	return out
}

func TestRunClampsAndCompletes(t *testing.T) {
	m := job.New(testFile, domain.JobTypeTranscribe, nil, nil)

	updates := runCollect(t, m, backend.Fixed(backend.Deltas(30, 30, 30, 30, 30)...))

	var progress []float64
	for _, u := range updates {
		progress = append(progress, u.Progress)
	}
	assert.Equal(t, []float64{0, 30, 60, 90, 100}, progress)

	final := m.Snapshot()
	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.Equal(t, 100.0, final.Progress)
	assert.False(t, final.CompletedAt.IsZero())
}

func TestProgressMonotonicForRandomIncrements(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for range 50 {
		deltas := make([]float64, 0, 40)
		var sum float64
		firstReach := -1
		for i := range 40 {
			d := r.Float64() * 20
			deltas = append(deltas, d)
			sum += d
			if firstReach < 0 && sum >= 100 {
				firstReach = i
			}
		}

		m := job.New(testFile, domain.JobTypeTranscribe, nil, nil)
		updates := runCollect(t, m, backend.Fixed(backend.Deltas(deltas...)...))

		prev := 0.0
		for _, u := range updates {
			assert.GreaterOrEqual(t, u.Progress, prev)
			assert.LessOrEqual(t, u.Progress, 100.0)
			prev = u.Progress
		}

		if firstReach >= 0 {
			// one update for start plus one per applied delta
			assert.Len(t, updates, firstReach+2)
			assert.Equal(t, domain.StatusCompleted, m.Snapshot().Status)
			assert.Equal(t, 100.0, m.Snapshot().Progress)
		} else {
			assert.Equal(t, domain.StatusFailed, m.Snapshot().Status)
		}
	}
}

func TestFailureKeepsLastProgress(t *testing.T) {
	m := job.New(testFile, domain.JobTypeTranscribe, nil, nil)
	events := append(backend.Deltas(25, 15), job.Event{Err: errors.New("decoder crashed")})

	runCollect(t, m, backend.Fixed(events...))

	final := m.Snapshot()
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Equal(t, 40.0, final.Progress)
	assert.Equal(t, "decoder crashed", final.Error)
	assert.Empty(t, m.Artifacts())
}

func TestDoneSignalCompletes(t *testing.T) {
	m := job.New(testFile, domain.JobTypeTranscribe, nil, nil)

	runCollect(t, m, backend.Fixed(job.Event{Delta: 50}, job.Event{Done: true}))

	assert.Equal(t, domain.StatusCompleted, m.Snapshot().Status)
	assert.Equal(t, 100.0, m.Snapshot().Progress)
}

func TestStreamClosedEarlyFails(t *testing.T) {
	m := job.New(testFile, domain.JobTypeTranscribe, nil, nil)

	runCollect(t, m, backend.Fixed(backend.Deltas(10)...))

	final := m.Snapshot()
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Equal(t, job.ErrStreamClosed.Error(), final.Error)
	assert.Equal(t, 10.0, final.Progress)
}

func TestSubmitErrorFails(t *testing.T) {
	m := job.New(testFile, domain.JobTypeTranscribe, nil, nil)

	runCollect(t, m, &backend.Scripted{SubmitErr: errors.New("backend down")})

	final := m.Snapshot()
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Equal(t, "submit: backend down", final.Error)
}

func TestNegativeDeltaIgnored(t *testing.T) {
	m := job.New(testFile, domain.JobTypeTranscribe, nil, nil)

	updates := runCollect(t, m, backend.Fixed(backend.Deltas(50, -20, 50)...))

	require.Len(t, updates, 4)
	assert.Equal(t, 50.0, updates[2].Progress)
	assert.Equal(t, domain.StatusCompleted, m.Snapshot().Status)
}

func TestStepTimeoutFails(t *testing.T) {
	m := job.New(testFile, domain.JobTypeTranscribe, nil, nil, job.WithStepTimeout(20*time.Millisecond))

	runCollect(t, m, stallBackend{})

	final := m.Snapshot()
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Contains(t, final.Error, job.ErrStepTimeout.Error())
}

func TestRunRejectsReentryAndReuse(t *testing.T) {
	m := job.New(testFile, domain.JobTypeTranscribe, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan domain.Job, 16)

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, stallBackend{}, updates) }()

	first := <-updates
	require.Equal(t, domain.StatusRunning, first.Status)
	assert.ErrorIs(t, m.Run(ctx, stallBackend{}, nil), job.ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, domain.StatusFailed, m.Snapshot().Status)
	assert.Equal(t, context.Canceled.Error(), m.Snapshot().Error)

	assert.ErrorIs(t, m.Run(context.Background(), backend.Fixed(), nil), job.ErrFinished)
}

func TestCompletionBuildsArtifacts(t *testing.T) {
	asm := output.New(output.DefaultFormats)
	m := job.New(testFile, domain.JobTypeTranslate, []string{"de", "fr"}, asm)

	runCollect(t, m, backend.Fixed(backend.Deltas(100)...))

	arts := m.Artifacts()
	require.Len(t, arts, 6)
	for _, a := range arts {
		assert.Equal(t, m.ID(), a.JobID)
	}
}

func TestTargetLanguagesAreASet(t *testing.T) {
	asm := output.New(output.DefaultFormats)
	m := job.New(testFile, domain.JobTypeTranslate, []string{"de", " DE", "fr", "", "de"}, asm)
	assert.Equal(t, []string{"de", "fr"}, m.Snapshot().TargetLanguages)

	runCollect(t, m, backend.Fixed(backend.Deltas(100)...))

	arts := m.Artifacts()
	require.Len(t, arts, 2*len(output.DefaultFormats.Translation))
	seen := map[string]bool{}
	for _, a := range arts {
		assert.False(t, seen[a.Filename], "duplicate artifact %s", a.Filename)
		seen[a.Filename] = true
	}
}

func TestLanguageSet(t *testing.T) {
	assert.Equal(t, []string{}, job.LanguageSet(nil))
	assert.Equal(t, []string{"zh-tw", "ja"}, job.LanguageSet([]string{"ZH-TW", "ja", "zh-tw ", "JA"}))
}

func TestNewJobsGetFreshIDs(t *testing.T) {
	a := job.New(testFile, domain.JobTypeTranscribe, []string{"de"}, nil)
	b := job.New(testFile, domain.JobTypeTranscribe, nil, nil)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, a.ID(), 8)
	assert.Empty(t, a.Snapshot().TargetLanguages, "transcription jobs carry no languages")
	assert.Equal(t, domain.StatusPending, a.Snapshot().Status)
}
