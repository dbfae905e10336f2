package job

import (
	"context"

	"github.com/fusionn-batch/internal/domain"
)

// Options tells the backend what to produce for a file.
type Options struct {
	Type            domain.JobType
	TargetLanguages []string
}

// Event is one item of a backend progress stream. Exactly one of the three
// meanings applies: a progress delta, completion (Done) or failure (Err).
type Event struct {
	Delta float64
	Done  bool
	Err   error
}

// Backend performs the actual media processing. The returned stream is finite
// and cannot be restarted; a new Submit is needed for a new job. Implementations
// must stop sending once ctx is done.
type Backend interface {
	Submit(ctx context.Context, file domain.MediaFile, opts Options) (<-chan Event, error)
}

// Assembler builds output artifacts for completed jobs.
type Assembler interface {
	BuildArtifacts(j domain.Job) ([]domain.Artifact, error)
}
