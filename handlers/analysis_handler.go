package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"unicode/utf8"

	"contractlens-backend/models"
	"contractlens-backend/repository"
	"contractlens-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MinContractLength is the minimum number of characters accepted for analysis
const MinContractLength = 10

// Analyzer runs the contract analysis pipeline
type Analyzer interface {
	Analyze(ctx context.Context, contractText string) (*models.AnalysisReport, error)
}

// JobRunner submits and tracks background analyses
type JobRunner interface {
	Submit(ctx context.Context) (*models.AnalysisJob, error)
	Process(ctx context.Context, jobID uuid.UUID, contractText string) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
}

// AnalysisHandler handles HTTP requests for contract analyses
type AnalysisHandler struct {
	analyzer Analyzer
	jobs     JobRunner
	reports  repository.ReportStore
	status   func() any
}

// NewAnalysisHandler creates a new analysis handler; status reports the
// component configuration for GET /status. jobs may be nil, which disables
// the asynchronous endpoints.
func NewAnalysisHandler(analyzer Analyzer, jobs JobRunner, reports repository.ReportStore, status func() any) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		jobs:     jobs,
		reports:  reports,
		status:   status,
	}
}

// AnalyzeRequest represents the request body for analyzing a contract
type AnalyzeRequest struct {
	Text string `json:"text" binding:"required"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// bindContract reads and validates the contract text, writing the error
// response itself when the request is invalid
func bindContract(c *gin.Context) (string, bool) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return "", false
	}

	text := strings.TrimSpace(req.Text)
	if utf8.RuneCountInString(text) < MinContractLength {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Contract text must be at least 10 characters")
		return "", false
	}
	return text, true
}

// Analyze handles POST /api/analyze
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	text, ok := bindContract(c)
	if !ok {
		return
	}
	h.analyze(c, text)
}

// analyze runs the pipeline synchronously and writes the report
func (h *AnalysisHandler) analyze(c *gin.Context, text string) {
	report, err := h.analyzer.Analyze(c.Request.Context(), text)
	if err != nil {
		if service.IsThemeExtractionError(err) {
			respondError(c, http.StatusUnprocessableEntity, "THEME_EXTRACTION_FAILED", err.Error())
			return
		}
		log.Printf("Analysis failed: %v", err)
		respondError(c, http.StatusInternalServerError, "ANALYSIS_FAILED", err.Error())
		return
	}

	if h.reports != nil {
		if err := h.reports.Save(c.Request.Context(), report); err != nil {
			log.Printf("Warning: failed to store report %s: %v", report.ID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    report,
	})
}

// GetAnalysis handles GET /api/analyses/:id
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid analysis ID format")
		return
	}
	if h.reports == nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "Analysis not found")
		return
	}

	report, err := h.reports.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Analysis not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "FETCH_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    report,
	})
}

// SubmitAnalysis handles POST /api/analyses
func (h *AnalysisHandler) SubmitAnalysis(c *gin.Context) {
	text, ok := bindContract(c)
	if !ok {
		return
	}

	// Create job (synchronous, fast)
	job, err := h.jobs.Submit(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "JOB_CREATION_FAILED", err.Error())
		return
	}

	// Use background context (not request context) to avoid cancellation
	go func() {
		if err := h.jobs.Process(context.Background(), job.ID, text); err != nil {
			log.Printf("Analysis job %s failed: %v", job.ID, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"job_id":  job.ID,
			"status":  job.Status,
			"message": "Analysis job created. Poll /api/jobs/:id for updates.",
		},
	})
}

// GetJobStatus handles GET /api/jobs/:id
func (h *AnalysisHandler) GetJobStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid job ID format")
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Analysis job not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "RETRIEVAL_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    job,
	})
}

// Health handles GET /health
func (h *AnalysisHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status handles GET /status
func (h *AnalysisHandler) Status(c *gin.Context) {
	var data any = gin.H{}
	if h.status != nil {
		data = h.status()
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// RegisterRoutes mounts the analysis API and the metrics endpoint on r
func RegisterRoutes(r *gin.Engine, h *AnalysisHandler, metrics http.Handler) {
	r.GET("/health", h.Health)
	r.GET("/status", h.Status)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	api := r.Group("/api")
	{
		api.POST("/analyze", h.Analyze)
		api.POST("/analyze/file", h.AnalyzeFile)
		api.GET("/analyses/:id", h.GetAnalysis)
		if h.jobs != nil {
			api.POST("/analyses", h.SubmitAnalysis)
			api.GET("/jobs/:id", h.GetJobStatus)
		}
	}
}
