package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionn-batch/internal/backend"
	"github.com/fusionn-batch/internal/domain"
	"github.com/fusionn-batch/internal/job"
	"github.com/fusionn-batch/internal/notify"
	"github.com/fusionn-batch/internal/output"
	"github.com/fusionn-batch/internal/validate"
)

const mb = 1024 * 1024

// gate blocks every submission until events are pushed on ch.
type gate struct{ ch chan job.Event }

func (g gate) Submit(context.Context, domain.MediaFile, job.Options) (<-chan job.Event, error) {
	return g.ch, nil
}

func newService(b job.Backend, n notify.Notifier) *Service {
	v := validate.New(validate.Constraints{
		AllowedMIMETypes:   []string{"audio/mpeg", "video/mp4"},
		MaxSingleFileBytes: 100 * mb,
	})
	return New(v, b, output.New(output.DefaultFormats), n, time.Second)
}

func talk() domain.MediaFile {
	return domain.MediaFile{Name: "talk.mp3", SizeBytes: 5 * mb, MIMEType: "audio/mpeg"}
}

func TestTranscribe(t *testing.T) {
	rec := &notify.Recorder{}
	s := newService(backend.Fixed(backend.Deltas(50, 50)...), rec)

	res, err := s.Transcribe(context.Background(), talk())
	require.NoError(t, err)
	require.True(t, res.Validation.Valid)
	require.NotNil(t, res.Job)

	assert.Equal(t, domain.StatusCompleted, res.Job.Status)
	assert.Equal(t, 100.0, res.Job.Progress)
	assert.Len(t, res.Artifacts, len(output.DefaultFormats.Transcript))
	assert.NotEmpty(t, res.Duration)
	assert.False(t, s.IsProcessing(domain.JobTypeTranscribe))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "Transcription started", events[0].Title)
	assert.Equal(t, notify.KindSuccess, events[1].Kind)

	last, ok := s.Current(domain.JobTypeTranscribe)
	require.True(t, ok)
	assert.Equal(t, res.Job.ID, last.Job.ID)
}

func TestTranslate(t *testing.T) {
	s := newService(backend.Fixed(job.Event{Done: true}), nil)

	res, err := s.Translate(context.Background(), talk(), []string{"de", "ja"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Job.Status)
	assert.Equal(t, []string{"de", "ja"}, res.Job.TargetLanguages)
	assert.Len(t, res.Artifacts, 2*len(output.DefaultFormats.Translation))
}

func TestTranslateRequiresLanguages(t *testing.T) {
	rec := &notify.Recorder{}
	s := newService(backend.Fixed(job.Event{Done: true}), rec)

	res, err := s.Translate(context.Background(), talk(), nil)
	require.NoError(t, err)
	assert.False(t, res.Validation.Valid)
	assert.Equal(t, []string{"Select at least one target language"}, res.Validation.Errors)
	assert.Nil(t, res.Job)
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, notify.KindError, rec.Events()[0].Kind)
}

func TestValidationRejects(t *testing.T) {
	tests := []struct {
		name string
		file domain.MediaFile
		want string
	}{
		{
			name: "type",
			file: domain.MediaFile{Name: "a.txt", SizeBytes: 10, MIMEType: "text/plain"},
			want: "File type not supported. Allowed types: audio/mpeg, video/mp4",
		},
		{
			name: "size",
			file: domain.MediaFile{Name: "a.mp4", SizeBytes: 101 * mb, MIMEType: "video/mp4"},
			want: "File too large. Maximum size: 100.00 MB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(backend.Fixed(job.Event{Done: true}), nil)
			res, err := s.Transcribe(context.Background(), tt.file)
			require.NoError(t, err)
			assert.False(t, res.Validation.Valid)
			assert.Equal(t, []string{tt.want}, res.Validation.Errors)
			_, ok := s.Current(domain.JobTypeTranscribe)
			assert.False(t, ok)
		})
	}
}

func TestFailureIsReported(t *testing.T) {
	rec := &notify.Recorder{}
	s := newService(backend.Fixed(job.Event{Delta: 40}, job.Event{Err: errors.New("gpu lost")}), rec)

	res, err := s.Transcribe(context.Background(), talk())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, res.Job.Status)
	assert.Equal(t, 40.0, res.Job.Progress)
	assert.Equal(t, "gpu lost", res.Job.Error)
	assert.Empty(t, res.Artifacts)

	events := rec.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, "Transcription failed", events[len(events)-1].Title)
}

func TestPerOperationSingleFlight(t *testing.T) {
	g := gate{ch: make(chan job.Event)}
	s := newService(g, nil)

	res, err := s.LaunchTranscribe(context.Background(), talk())
	require.NoError(t, err)
	require.NotNil(t, res.Job)
	assert.True(t, s.IsProcessing(domain.JobTypeTranscribe))

	_, err = s.Transcribe(context.Background(), talk())
	assert.ErrorIs(t, err, ErrAlreadyProcessing)

	// translation has its own flag
	_, err = s.LaunchTranslate(context.Background(), talk(), []string{"fr"})
	require.NoError(t, err)
	assert.True(t, s.IsProcessing(domain.JobTypeTranslate))

	g.ch <- job.Event{Delta: 30}
	require.Eventually(t, func() bool {
		cur, ok := s.Current(domain.JobTypeTranscribe)
		if ok && cur.Job.Progress == 30 {
			return true
		}
		cur, ok = s.Current(domain.JobTypeTranslate)
		return ok && cur.Job.Progress == 30
	}, time.Second, 5*time.Millisecond)

	g.ch <- job.Event{Done: true}
	g.ch <- job.Event{Done: true}
	require.Eventually(t, func() bool {
		return !s.IsProcessing(domain.JobTypeTranscribe) && !s.IsProcessing(domain.JobTypeTranslate)
	}, time.Second, 5*time.Millisecond)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{2*time.Minute + 5*time.Second, "2m5s"},
		{3*time.Hour + 20*time.Minute, "3h20m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}
