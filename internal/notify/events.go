package notify

import (
	"fmt"
	"strings"

	"github.com/fusionn-batch/internal/domain"
)

// ValidationFailed reports rejected uploads; one event per attempt.
func ValidationFailed(operation string, errs []string) Event {
	return Event{
		Kind:    KindError,
		Title:   fmt.Sprintf("%s rejected", operation),
		Message: strings.Join(errs, "; "),
	}
}

func JobStarted(j domain.Job) Event {
	return Event{
		Kind:    KindInfo,
		Title:   fmt.Sprintf("%s started", j.Type.Label()),
		Message: j.File.Name,
	}
}

func JobSucceeded(j domain.Job, artifacts int) Event {
	return Event{
		Kind:    KindSuccess,
		Title:   fmt.Sprintf("%s complete", j.Type.Label()),
		Message: fmt.Sprintf("%s (%d files ready)", j.File.Name, artifacts),
	}
}

func JobFailed(j domain.Job) Event {
	return Event{
		Kind:    KindError,
		Title:   fmt.Sprintf("%s failed", j.Type.Label()),
		Message: fmt.Sprintf("%s: %s", j.File.Name, j.Error),
	}
}

// BatchFinished summarizes a batch run.
func BatchFinished(s domain.Summary) Event {
	kind := KindSuccess
	if s.Failed > 0 {
		kind = KindError
	}
	return Event{
		Kind:    kind,
		Title:   "Batch complete",
		Message: fmt.Sprintf("%d succeeded, %d failed (%d files)", s.Succeeded, s.Failed, s.Total),
	}
}
