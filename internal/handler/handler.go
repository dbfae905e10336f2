package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fusionn-batch/internal/batch"
	"github.com/fusionn-batch/internal/domain"
	"github.com/fusionn-batch/internal/language"
	"github.com/fusionn-batch/internal/service/processor"
	"github.com/fusionn-batch/internal/validate"
	"github.com/fusionn-batch/internal/version"
	"github.com/fusionn-batch/pkg/logger"
)

// Deps are the services behind the HTTP API.
type Deps struct {
	Batch           *batch.Coordinator
	Processor       *processor.Service
	SingleValidator *validate.Validator
	BatchValidator  *validate.Validator
	Catalog         *language.Catalog
	Selection       *language.Selection
}

// Handler handles HTTP requests.
type Handler struct {
	ctx       context.Context // parent of background runs; cancelled on shutdown
	batch     *batch.Coordinator
	processor *processor.Service
	single    *validate.Validator
	multi     *validate.Validator
	catalog   *language.Catalog
	selection *language.Selection
}

// New creates a new Handler. Runs started over HTTP outlive their request and
// are bound to ctx instead.
func New(ctx context.Context, d Deps) *Handler {
	return &Handler{
		ctx:       ctx,
		batch:     d.Batch,
		processor: d.Processor,
		single:    d.SingleValidator,
		multi:     d.BatchValidator,
		catalog:   d.Catalog,
		selection: d.Selection,
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/health", h.Health)
		api.GET("/version", h.Version)

		// Target language selection
		api.GET("/languages", h.ListLanguages)
		api.POST("/languages/:code/toggle", h.ToggleLanguage)
		api.DELETE("/languages", h.ClearLanguages)

		// Dry-run validation
		api.POST("/validate", h.Validate)

		// Single-file operations
		api.POST("/transcribe", h.Transcribe)
		api.GET("/transcribe", h.CurrentTranscription)
		api.POST("/translate", h.Translate)
		api.GET("/translate", h.CurrentTranslation)

		// Batch
		api.POST("/batch", h.StartBatch)
		api.GET("/batch", h.BatchProgress)
		api.GET("/batch/result", h.BatchResult)
		api.POST("/batch/retry", h.RetryBatch)
		api.DELETE("/batch", h.ClearBatch)
	}
}

// Health returns service health status.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Version returns service version.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": version.Version})
}

// ListLanguages returns the supported languages and the current selection.
func (h *Handler) ListLanguages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"languages": h.catalog.All(),
		"selected":  h.selection.List(),
	})
}

// ToggleLanguage flips one language in the selection.
func (h *Handler) ToggleLanguage(c *gin.Context) {
	code := c.Param("code")
	if !h.catalog.Supports(code) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unsupported language: " + code})
		return
	}

	selected := h.selection.Toggle(code)
	c.JSON(http.StatusOK, gin.H{
		"code":     code,
		"selected": selected,
		"codes":    h.selection.List(),
	})
}

func (h *Handler) ClearLanguages(c *gin.Context) {
	h.selection.Clear()
	c.Status(http.StatusNoContent)
}

// Validate checks uploads without starting anything. mode is single or batch.
func (h *Handler) Validate(c *gin.Context) {
	files, err := uploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch c.DefaultQuery("mode", "batch") {
	case "single":
		if len(files) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one file required"})
			return
		}
		c.JSON(http.StatusOK, h.single.File(files[0]))
	case "batch":
		c.JSON(http.StatusOK, h.multi.Batch(files))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be single or batch"})
	}
}

// Transcribe starts a single-file transcription.
func (h *Handler) Transcribe(c *gin.Context) {
	file, ok := h.singleUpload(c)
	if !ok {
		return
	}

	res, err := h.processor.LaunchTranscribe(h.ctx, file)
	h.respondSingle(c, res, err)
}

// Translate starts a single-file translation.
func (h *Handler) Translate(c *gin.Context) {
	file, ok := h.singleUpload(c)
	if !ok {
		return
	}
	langs, ok := h.targetLanguages(c)
	if !ok {
		return
	}

	res, err := h.processor.LaunchTranslate(h.ctx, file, langs)
	h.respondSingle(c, res, err)
}

func (h *Handler) CurrentTranscription(c *gin.Context) {
	h.current(c, domain.JobTypeTranscribe)
}

func (h *Handler) CurrentTranslation(c *gin.Context) {
	h.current(c, domain.JobTypeTranslate)
}

func (h *Handler) current(c *gin.Context, op domain.JobType) {
	res, ok := h.processor.Current(op)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no " + string(op) + " job"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"is_processing": h.processor.IsProcessing(op),
		"result":        res,
	})
}

func (h *Handler) singleUpload(c *gin.Context) (domain.MediaFile, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return domain.MediaFile{}, false
	}
	file, err := mediaFile(fh)
	if err != nil {
		logger.Warnf("⚠️ Upload read failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.MediaFile{}, false
	}
	return file, true
}

func (h *Handler) respondSingle(c *gin.Context, res *processor.Result, err error) {
	switch {
	case errors.Is(err, processor.ErrAlreadyProcessing):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		logger.Errorf("❌ Single-file request: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case !res.Validation.Valid:
		c.JSON(http.StatusUnprocessableEntity, res)
	default:
		logger.Infof("📥 %s accepted: %s (job: %s)", res.Job.Type.Label(), res.Job.File.Name, res.Job.ID)
		c.JSON(http.StatusAccepted, res)
	}
}

// StartBatch validates the uploads and starts a batch in the background.
func (h *Handler) StartBatch(c *gin.Context) {
	jobType, ok := domain.ParseJobType(c.DefaultPostForm("type", string(domain.JobTypeTranscribe)))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be transcribe, translate or both"})
		return
	}

	files, err := uploads(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var langs []string
	if jobType.Translates() {
		if langs, ok = h.targetLanguages(c); !ok {
			return
		}
	}

	res, err := h.batch.Launch(h.ctx, files, jobType, batch.Options{TargetLanguages: langs})
	h.respondBatch(c, res, err)
}

// BatchProgress returns the aggregate and per-job progress.
func (h *Handler) BatchProgress(c *gin.Context) {
	c.JSON(http.StatusOK, h.batch.Progress())
}

// BatchResult returns the last finished batch with its download manifest.
func (h *Handler) BatchResult(c *gin.Context) {
	res, ok := h.batch.LastResult()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no batch result"})
		return
	}

	bundle, err := h.batch.Bundle()
	if err != nil {
		logger.Errorf("❌ Bundle: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result": res,
		"bundle": bundle,
	})
}

// RetryBatch re-runs the failed files of the last batch.
func (h *Handler) RetryBatch(c *gin.Context) {
	res, err := h.batch.LaunchRetry(h.ctx)
	switch {
	case errors.Is(err, batch.ErrNoResult):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, batch.ErrNothingToRetry):
		c.JSON(http.StatusOK, gin.H{
			"message": "no failed files to retry",
			"count":   0,
		})
	default:
		h.respondBatch(c, res, err)
	}
}

// ClearBatch drops the last batch.
func (h *Handler) ClearBatch(c *gin.Context) {
	if err := h.batch.Clear(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) respondBatch(c *gin.Context, res *batch.Result, err error) {
	switch {
	case errors.Is(err, batch.ErrBatchInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		logger.Errorf("❌ Batch request: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case !res.Validation.Valid:
		c.JSON(http.StatusUnprocessableEntity, res)
	default:
		logger.Infof("📥 Batch accepted: %d files", len(res.Jobs))
		c.JSON(http.StatusAccepted, res)
	}
}
