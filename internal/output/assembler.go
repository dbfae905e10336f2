package output

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fusionn-batch/internal/config"
	"github.com/fusionn-batch/internal/domain"
)

// ErrJobNotCompleted is returned when artifacts are requested for a job that
// has not completed.
var ErrJobNotCompleted = errors.New("job not completed")

const (
	opTranscription = "transcription"
	opTranslation   = "translation"
)

// Formats lists the output formats per operation.
type Formats struct {
	Transcript  []string // language-independent transcript/subtitle formats
	Translation []string // per target language audio/subtitle formats
}

// DefaultFormats matches the default config.
var DefaultFormats = Formats{
	Transcript:  []string{"txt", "docx", "srt", "vtt"},
	Translation: []string{"mp3", "wav", "srt"},
}

// FormatsFromConfig falls back to DefaultFormats per empty list.
func FormatsFromConfig(cfg config.OutputConfig) Formats {
	f := Formats{Transcript: cfg.TranscriptFormats, Translation: cfg.TranslationFormats}
	if len(f.Transcript) == 0 {
		f.Transcript = DefaultFormats.Transcript
	}
	if len(f.Translation) == 0 {
		f.Translation = DefaultFormats.Translation
	}
	return f
}

// Assembler names the artifacts produced by completed jobs.
type Assembler struct {
	formats Formats
}

// New creates an assembler for the given formats.
func New(formats Formats) *Assembler {
	return &Assembler{formats: formats}
}

// Filename returns "{operation}_{language}.{format}", omitting the language
// part when language is empty.
func Filename(operation, language, format string) string {
	if language == "" {
		return fmt.Sprintf("%s.%s", operation, format)
	}
	return fmt.Sprintf("%s_%s.%s", operation, language, format)
}

// BuildArtifacts implements job.Assembler. Repeated calls for the same job
// return identical artifacts.
func (a *Assembler) BuildArtifacts(j domain.Job) ([]domain.Artifact, error) {
	if j.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("%w: %s is %s", ErrJobNotCompleted, j.ID, j.Status)
	}

	var out []domain.Artifact
	if j.Type.Transcribes() {
		for _, format := range a.formats.Transcript {
			out = append(out, domain.Artifact{
				JobID:    j.ID,
				Format:   format,
				Filename: Filename(opTranscription, "", format),
			})
		}
	}
	if j.Type.Translates() {
		for _, lang := range j.TargetLanguages {
			for _, format := range a.formats.Translation {
				out = append(out, domain.Artifact{
					JobID:    j.ID,
					Format:   format,
					Language: lang,
					Filename: Filename(opTranslation, lang, format),
				})
			}
		}
	}

	return out, nil
}

// BundleEntry places one artifact inside the batch archive.
type BundleEntry struct {
	Path     string          `json:"path"`
	Artifact domain.Artifact `json:"artifact"`
}

// Report is the human-facing batch manifest.
type Report struct {
	Files   []domain.FileRecord `json:"files"`
	Summary domain.Summary      `json:"summary"`
}

// Bundle is a flat listing for an external archiver. No packaging happens here.
type Bundle struct {
	Zip    []BundleEntry `json:"zip_manifest"`
	Report Report        `json:"report_manifest"`
}

// BuildBundle lists the artifacts of every completed job in batch order.
// Artifacts already present on the result are reused; missing ones are built.
func (a *Assembler) BuildBundle(res domain.BatchResult) (Bundle, error) {
	b := Bundle{
		Zip: []BundleEntry{},
		Report: Report{
			Files:   res.Records,
			Summary: res.Summary,
		},
	}

	for _, j := range res.Jobs {
		if j.Status != domain.StatusCompleted {
			continue
		}

		artifacts, ok := res.Artifacts[j.ID]
		if !ok {
			var err error
			if artifacts, err = a.BuildArtifacts(j); err != nil {
				return Bundle{}, err
			}
		}

		dir := fmt.Sprintf("%s-%s", stem(j.File.Name), j.ID)
		for _, art := range artifacts {
			b.Zip = append(b.Zip, BundleEntry{Path: dir + "/" + art.Filename, Artifact: art})
		}
	}

	return b, nil
}

func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
