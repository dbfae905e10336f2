package validate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusionn-batch/internal/domain"
)

const mb = 1024 * 1024

func testConstraints() Constraints {
	return Constraints{
		AllowedMIMETypes:   []string{"audio/mpeg", "audio/wav", "video/mp4"},
		MaxSingleFileBytes: 100 * mb,
		MaxBatchFileBytes:  50 * mb,
		MaxBatchFileCount:  10,
		MaxBatchTotalBytes: 500 * mb,
	}
}

func TestFileTooLarge(t *testing.T) {
	res := File(domain.MediaFile{Name: "talk.mp3", SizeBytes: 120 * mb, MIMEType: "audio/mpeg"}, testConstraints())

	assert.False(t, res.Valid)
	assert.Equal(t, []string{"File too large. Maximum size: 100.00 MB"}, res.Errors)
}

func TestFileAtCeilingIsValid(t *testing.T) {
	res := File(domain.MediaFile{Name: "talk.mp3", SizeBytes: 100 * mb, MIMEType: "audio/mpeg"}, testConstraints())

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestFileReportsAllViolations(t *testing.T) {
	res := File(domain.MediaFile{Name: "doc.pdf", SizeBytes: 200 * mb, MIMEType: "application/pdf"}, testConstraints())

	require.False(t, res.Valid)
	assert.Equal(t, []string{
		"File type not supported. Allowed types: audio/mpeg, audio/wav, video/mp4",
		"File too large. Maximum size: 100.00 MB",
	}, res.Errors)
}

func TestBatchCountCeiling(t *testing.T) {
	files := make([]domain.MediaFile, 11)
	for i := range files {
		files[i] = domain.MediaFile{Name: fmt.Sprintf("f%d.mp3", i), SizeBytes: 10 * mb, MIMEType: "audio/mpeg"}
	}

	res := Batch(files, testConstraints())

	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Maximum 10 files allowed"}, res.Errors)
}

func TestBatchTotalSizeCeiling(t *testing.T) {
	// 5 files summing to 520MB, each under the per-file ceiling of 110MB.
	c := testConstraints()
	c.MaxBatchFileBytes = 110 * mb
	files := make([]domain.MediaFile, 5)
	for i := range files {
		files[i] = domain.MediaFile{Name: fmt.Sprintf("f%d.mp4", i), SizeBytes: 104 * mb, MIMEType: "video/mp4"}
	}

	res := Batch(files, c)

	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Total size exceeds 500.00 MB limit"}, res.Errors)
	assert.Equal(t, int64(524288000), c.MaxBatchTotalBytes)
}

func TestBatchUsesPerFileBatchCeiling(t *testing.T) {
	files := []domain.MediaFile{
		{Name: "ok.mp3", SizeBytes: 10 * mb, MIMEType: "audio/mpeg"},
		{Name: "big.mp3", SizeBytes: 60 * mb, MIMEType: "audio/mpeg"},
		{Name: "bad.txt", SizeBytes: 1, MIMEType: "text/plain"},
	}

	res := Batch(files, testConstraints())

	require.False(t, res.Valid)
	assert.Equal(t, []string{
		"big.mp3: File too large. Maximum size: 50.00 MB",
		"bad.txt: File type not supported. Allowed types: audio/mpeg, audio/wav, video/mp4",
	}, res.Errors)
}

func TestBatchEmpty(t *testing.T) {
	res := Batch(nil, testConstraints())

	assert.False(t, res.Valid)
	assert.Equal(t, []string{"No files selected"}, res.Errors)
}

func TestValidationIsDeterministic(t *testing.T) {
	files := []domain.MediaFile{
		{Name: "a.pdf", SizeBytes: 600 * mb, MIMEType: "application/pdf"},
		{Name: "b.pdf", SizeBytes: 600 * mb, MIMEType: "application/pdf"},
	}

	first := Batch(files, testConstraints())
	second := Batch(files, testConstraints())

	assert.Equal(t, first, second)
	assert.Len(t, first.Errors, 5)
	assert.Equal(t, "Total size exceeds 500.00 MB limit", first.Errors[4])
}

func TestValidatorSwapConstraints(t *testing.T) {
	v := New(testConstraints())
	file := domain.MediaFile{Name: "talk.mp3", SizeBytes: 120 * mb, MIMEType: "audio/mpeg"}
	require.False(t, v.File(file).Valid)

	c := testConstraints()
	c.MaxSingleFileBytes = 200 * mb
	v.Set(c)

	assert.True(t, v.File(file).Valid)
	assert.Equal(t, int64(200*mb), v.Constraints().MaxSingleFileBytes)
}

func TestResultMessage(t *testing.T) {
	res := Result{Errors: []string{"a", "b"}}
	assert.Equal(t, "a; b", res.Message())
}
