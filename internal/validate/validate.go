// Package validate checks uploaded media files against size, count and type
// constraints. Violations are returned as data, never as errors.
package validate

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/fusionn-batch/internal/domain"
)

// Constraints bounds what a single upload or a batch may contain.
type Constraints struct {
	AllowedMIMETypes   []string
	MaxSingleFileBytes int64
	MaxBatchFileBytes  int64
	MaxBatchFileCount  int
	MaxBatchTotalBytes int64
}

// Result lists every violated rule. Errors keep rule evaluation order.
type Result struct {
	Valid  bool     `json:"is_valid"`
	Errors []string `json:"errors"`
}

func newResult(errs []string) Result {
	if errs == nil {
		errs = []string{}
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// Message joins all errors into one notification line.
func (r Result) Message() string {
	return strings.Join(r.Errors, "; ")
}

// File validates one upload in the single-file context.
func File(file domain.MediaFile, c Constraints) Result {
	return newResult(fileErrors(file, c.AllowedMIMETypes, c.MaxSingleFileBytes))
}

// Batch validates a set of uploads in the batch context. Per-file errors are
// prefixed with the file name.
func Batch(files []domain.MediaFile, c Constraints) Result {
	if len(files) == 0 {
		return newResult([]string{"No files selected"})
	}

	var errs []string
	var total int64
	for _, f := range files {
		total += f.SizeBytes
		for _, e := range fileErrors(f, c.AllowedMIMETypes, c.MaxBatchFileBytes) {
			errs = append(errs, fmt.Sprintf("%s: %s", f.Name, e))
		}
	}

	if len(files) > c.MaxBatchFileCount {
		errs = append(errs, fmt.Sprintf("Maximum %d files allowed", c.MaxBatchFileCount))
	}
	if total > c.MaxBatchTotalBytes {
		errs = append(errs, fmt.Sprintf("Total size exceeds %s limit", domain.FormatSize(c.MaxBatchTotalBytes)))
	}

	return newResult(errs)
}

func fileErrors(f domain.MediaFile, allowed []string, maxBytes int64) []string {
	var errs []string
	if !slices.Contains(allowed, f.MIMEType) {
		errs = append(errs, fmt.Sprintf("File type not supported. Allowed types: %s", strings.Join(allowed, ", ")))
	}
	if f.SizeBytes > maxBytes {
		errs = append(errs, fmt.Sprintf("File too large. Maximum size: %s", domain.FormatSize(maxBytes)))
	}
	return errs
}

// Validator holds constraints that can be swapped on config reload.
type Validator struct {
	c atomic.Pointer[Constraints]
}

// New creates a validator with the given constraints.
func New(c Constraints) *Validator {
	v := &Validator{}
	v.Set(c)
	return v
}

func (v *Validator) Set(c Constraints) {
	c.AllowedMIMETypes = slices.Clone(c.AllowedMIMETypes)
	v.c.Store(&c)
}

func (v *Validator) Constraints() Constraints {
	return *v.c.Load()
}

func (v *Validator) File(file domain.MediaFile) Result {
	return File(file, v.Constraints())
}

func (v *Validator) Batch(files []domain.MediaFile) Result {
	return Batch(files, v.Constraints())
}
