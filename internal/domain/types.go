package domain

import (
	"time"
)

// MediaFile describes an uploaded file. It is never mutated after creation.
type MediaFile struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	MIMEType  string `json:"mime_type"`
}

// JobType selects which operations a job performs.
type JobType string

const (
	JobTypeTranscribe JobType = "transcribe"
	JobTypeTranslate  JobType = "translate"
	JobTypeBoth       JobType = "both"
)

// ParseJobType accepts the wire names of job types.
func ParseJobType(s string) (JobType, bool) {
	switch t := JobType(s); t {
	case JobTypeTranscribe, JobTypeTranslate, JobTypeBoth:
		return t, true
	default:
		return "", false
	}
}

// Label returns the human name of the operation.
func (t JobType) Label() string {
	switch t {
	case JobTypeTranscribe:
		return "Transcription"
	case JobTypeTranslate:
		return "Translation"
	case JobTypeBoth:
		return "Transcription & Translation"
	default:
		return string(t)
	}
}

// Transcribes reports whether the job produces transcript artifacts.
func (t JobType) Transcribes() bool {
	return t == JobTypeTranscribe || t == JobTypeBoth
}

// Translates reports whether the job needs target languages.
func (t JobType) Translates() bool {
	return t == JobTypeTranslate || t == JobTypeBoth
}

// JobStatus represents the current state of a job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// IsTerminal returns true for completed and failed.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is a snapshot of one file's transcription/translation.
type Job struct {
	ID              string    `json:"id"`
	File            MediaFile `json:"file"`
	Type            JobType   `json:"type"`
	TargetLanguages []string  `json:"target_languages,omitempty"`
	Status          JobStatus `json:"status"`
	Progress        float64   `json:"progress"` // 0-100
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	StartedAt       time.Time `json:"started_at,omitempty"`
	CompletedAt     time.Time `json:"completed_at,omitempty"`
}

// Artifact is one named output of a completed job. Language is empty for
// transcription outputs.
type Artifact struct {
	JobID    string `json:"job_id"`
	Format   string `json:"format"`
	Language string `json:"language,omitempty"`
	Filename string `json:"filename"`
}

// Per-file outcome values used in FileRecord.Status.
const (
	RecordCompleted = "completed"
	RecordFailed    = "failed"
)

// FileRecord is the per-file line of a batch result.
type FileRecord struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Status    string `json:"status"`
	Operation string `json:"operation"`
	Error     string `json:"error,omitempty"`
}

// Summary counts batch outcomes.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BatchResult is emitted once per batch run after every job is terminal.
type BatchResult struct {
	Jobs      []Job                 `json:"jobs"`
	Records   []FileRecord          `json:"records"`
	Summary   Summary               `json:"summary"`
	Artifacts map[string][]Artifact `json:"artifacts"` // keyed by job ID, completed jobs only
}

// NewBatchResult builds records and summary from terminal job snapshots.
func NewBatchResult(jobs []Job, artifacts map[string][]Artifact) BatchResult {
	res := BatchResult{
		Jobs:      jobs,
		Records:   make([]FileRecord, 0, len(jobs)),
		Summary:   Summary{Total: len(jobs)},
		Artifacts: artifacts,
	}
	if res.Artifacts == nil {
		res.Artifacts = make(map[string][]Artifact)
	}

	for _, j := range jobs {
		rec := FileRecord{
			Filename:  j.File.Name,
			SizeBytes: j.File.SizeBytes,
			Operation: j.Type.Label(),
		}
		if j.Status == StatusCompleted {
			rec.Status = RecordCompleted
			res.Summary.Succeeded++
		} else {
			rec.Status = RecordFailed
			rec.Error = j.Error
			res.Summary.Failed++
		}
		res.Records = append(res.Records, rec)
	}

	return res
}
