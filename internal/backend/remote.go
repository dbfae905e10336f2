package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fusionn-batch/internal/config"
	"github.com/fusionn-batch/internal/domain"
	"github.com/fusionn-batch/internal/job"
	"github.com/fusionn-batch/pkg/logger"
)

// Remote drives an external processing service over HTTP. A job is created
// with POST {base}/jobs and polled with GET {base}/jobs/{id}.
type Remote struct {
	client       *resty.Client
	pollInterval time.Duration
}

// NewRemote creates a remote backend client.
func NewRemote(cfg config.BackendConfig) *Remote {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	interval := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}

	return &Remote{client: client, pollInterval: interval}
}

// SubmitRequest is the request body for job creation.
type SubmitRequest struct {
	FileName        string   `json:"file_name"`
	SizeBytes       int64    `json:"size_bytes"`
	MIMEType        string   `json:"mime_type"`
	Type            string   `json:"type"`
	TargetLanguages []string `json:"target_languages,omitempty"`
}

type submitResponse struct {
	ID string `json:"id"`
}

// Remote job states reported by the service.
const (
	remoteRunning   = "running"
	remoteCompleted = "completed"
	remoteFailed    = "failed"
)

// StatusResponse is the body returned when polling a remote job.
type StatusResponse struct {
	Progress float64 `json:"progress"` // absolute, 0-100
	Status   string  `json:"status"`
	Error    string  `json:"error,omitempty"`
}

// Submit implements job.Backend.
func (r *Remote) Submit(ctx context.Context, file domain.MediaFile, opts job.Options) (<-chan job.Event, error) {
	req := SubmitRequest{
		FileName:        file.Name,
		SizeBytes:       file.SizeBytes,
		MIMEType:        file.MIMEType,
		Type:            string(opts.Type),
		TargetLanguages: opts.TargetLanguages,
	}

	var created submitResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&created).
		Post("/jobs")
	if err != nil {
		return nil, fmt.Errorf("backend request: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("backend error (%d): %s", resp.StatusCode(), resp.String())
	}
	if created.ID == "" {
		return nil, errors.New("backend returned no job id")
	}

	logger.Debugf("🌐 Remote job created: %s (%s)", created.ID, file.Name)

	out := make(chan job.Event)
	go r.poll(ctx, created.ID, out)
	return out, nil
}

// poll converts absolute remote progress into deltas.
func (r *Remote) poll(ctx context.Context, id string, out chan<- job.Event) {
	defer close(out)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	var last float64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var st StatusResponse
		resp, err := r.client.R().
			SetContext(ctx).
			SetResult(&st).
			Get("/jobs/" + id)

		var ev job.Event
		switch {
		case err != nil:
			ev.Err = fmt.Errorf("poll job %s: %w", id, err)
		case resp.StatusCode() >= 400:
			ev.Err = fmt.Errorf("poll job %s (%d): %s", id, resp.StatusCode(), resp.String())
		case st.Status == remoteFailed:
			ev.Err = fmt.Errorf("remote job failed: %s", st.Error)
		case st.Progress > last:
			ev.Delta = st.Progress - last
			last = st.Progress
		}

		if ev.Err != nil || ev.Delta > 0 {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
		if ev.Err != nil {
			return
		}

		if st.Status == remoteCompleted {
			select {
			case out <- job.Event{Done: true}:
			case <-ctx.Done():
			}
			return
		}
	}
}
