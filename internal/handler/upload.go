package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/fusionn-batch/internal/domain"
)

const octetStream = "application/octet-stream"

// uploads reads every part named "files" (or "file"). A request without a
// multipart body yields no files so validation can report it.
func uploads(c *gin.Context) ([]domain.MediaFile, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse upload: %w", err)
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}

	files := make([]domain.MediaFile, 0, len(headers))
	for _, fh := range headers {
		f, err := mediaFile(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// mediaFile sniffs the MIME type from content and falls back to the part
// header when the content is not recognized.
func mediaFile(fh *multipart.FileHeader) (domain.MediaFile, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.MediaFile{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return domain.MediaFile{}, fmt.Errorf("detect %s: %w", fh.Filename, err)
	}

	mime := baseType(mt.String())
	if mime == octetStream {
		if header := baseType(fh.Header.Get("Content-Type")); header != "" {
			mime = header
		}
	}

	return domain.MediaFile{
		Name:      filepath.Base(fh.Filename),
		SizeBytes: fh.Size,
		MIMEType:  mime,
	}, nil
}

func baseType(s string) string {
	s, _, _ = strings.Cut(s, ";")
	return strings.ToLower(strings.TrimSpace(s))
}

// targetLanguages reads "languages" as repeated or comma separated catalog
// codes or names, without repeats. Without any, the current selection is used.
func (h *Handler) targetLanguages(c *gin.Context) ([]string, bool) {
	var langs []string
	for _, raw := range c.PostFormArray("languages") {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			code, ok := h.catalog.Resolve(part)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported language: " + strings.TrimSpace(part)})
				return nil, false
			}
			if !slices.Contains(langs, code) {
				langs = append(langs, code)
			}
		}
	}

	if len(langs) == 0 {
		langs = h.selection.List()
	}
	return langs, true
}
