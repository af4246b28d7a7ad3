package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"contractlens-backend/models"
	"contractlens-backend/repository"
	"contractlens-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAnalyzer struct {
	report *models.AnalysisReport
	err    error
	got    string
}

func (s *stubAnalyzer) Analyze(_ context.Context, text string) (*models.AnalysisReport, error) {
	s.got = text
	return s.report, s.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type stubJobs struct {
	submitErr error
	jobs      map[uuid.UUID]*models.AnalysisJob
	processed chan string
}

func newStubJobs() *stubJobs {
	return &stubJobs{
		jobs:      make(map[uuid.UUID]*models.AnalysisJob),
		processed: make(chan string, 1),
	}
}

func (s *stubJobs) Submit(context.Context) (*models.AnalysisJob, error) {
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	job := &models.AnalysisJob{ID: uuid.New(), Status: models.JobStatusPending}
	s.jobs[job.ID] = job
	return job, nil
}

func (s *stubJobs) Process(_ context.Context, _ uuid.UUID, text string) error {
	s.processed <- text
	return nil
}

func (s *stubJobs) GetJob(_ context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, service.ErrJobNotFound
	}
	return job, nil
}

func newRouter(a Analyzer, reports repository.ReportStore) *gin.Engine {
	return newRouterWithJobs(a, nil, reports)
}

func newRouterWithJobs(a Analyzer, jobs JobRunner, reports repository.ReportStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "contractlens_test_total", Help: "test"}))
	h := NewAnalysisHandler(a, jobs, reports, func() any { return map[string]string{"index_backend": "memory"} })
	RegisterRoutes(r, h, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestAnalyze_StoresAndReturnsReport(t *testing.T) {
	report := &models.AnalysisReport{
		ID:       uuid.New(),
		Status:   models.ReportDone,
		Themes:   []models.Theme{"Right to Privacy"},
		Branches: []models.BranchResult{{Theme: "Right to Privacy", Status: models.BranchSuccess}},
		Errors:   []string{},
	}
	analyzer := &stubAnalyzer{report: report}
	store := repository.NewMemoryReportStore(4)
	r := newRouter(analyzer, store)

	w, env := do(t, r, http.MethodPost, "/api/analyze", `{"text":"  The vendor shall keep customer data confidential.  "}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "The vendor shall keep customer data confidential.", analyzer.got)

	var got models.AnalysisReport
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, report.ID, got.ID)
	assert.Equal(t, models.BranchSuccess, got.Branches[0].Status)

	w, env = do(t, r, http.MethodGet, "/api/analyses/"+report.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestAnalyze_RejectsInvalidRequests(t *testing.T) {
	r := newRouter(&stubAnalyzer{}, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing text", `{}`},
		{"malformed json", `{"text":`},
		{"too short", `{"text":"   short   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, r, http.MethodPost, "/api/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
		})
	}
}

func TestAnalyze_ThemeExtractionFailure(t *testing.T) {
	analyzer := &stubAnalyzer{err: service.NewThemeExtractionError(errors.New("model unavailable"))}
	r := newRouter(analyzer, nil)

	w, env := do(t, r, http.MethodPost, "/api/analyze", `{"text":"This agreement is governed by Indian law."}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "THEME_EXTRACTION_FAILED", env.Error.Code)
}

func TestAnalyze_InternalFailure(t *testing.T) {
	r := newRouter(&stubAnalyzer{err: service.ErrRetrieverNotSet}, nil)

	w, env := do(t, r, http.MethodPost, "/api/analyze", `{"text":"This agreement is governed by Indian law."}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "ANALYSIS_FAILED", env.Error.Code)
}

func TestGetAnalysis_Errors(t *testing.T) {
	r := newRouter(&stubAnalyzer{}, repository.NewMemoryReportStore(1))

	w, env := do(t, r, http.MethodGet, "/api/analyses/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)

	w, env = do(t, r, http.MethodGet, "/api/analyses/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestHealthStatusAndMetrics(t *testing.T) {
	r := newRouter(&stubAnalyzer{}, nil)

	w, _ := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w, env := do(t, r, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"index_backend":"memory"}`, string(env.Data))

	w, _ = do(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "contractlens_test_total")
}

func TestSubmitAnalysis_StartsBackgroundJob(t *testing.T) {
	jobs := newStubJobs()
	r := newRouterWithJobs(&stubAnalyzer{}, jobs, nil)

	w, env := do(t, r, http.MethodPost, "/api/analyses", `{"text":"The tenant shall not sublet the premises."}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, env.Success)

	var data struct {
		JobID  uuid.UUID `json:"job_id"`
		Status string    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "pending", data.Status)

	select {
	case text := <-jobs.processed:
		assert.Equal(t, "The tenant shall not sublet the premises.", text)
	case <-time.After(time.Second):
		t.Fatal("job was not processed")
	}

	w, env = do(t, r, http.MethodGet, "/api/jobs/"+data.JobID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var job models.AnalysisJob
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, data.JobID, job.ID)
}

func TestSubmitAnalysis_Errors(t *testing.T) {
	jobs := newStubJobs()
	r := newRouterWithJobs(&stubAnalyzer{}, jobs, nil)

	w, env := do(t, r, http.MethodPost, "/api/analyses", `{"text":"short"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)

	jobs.submitErr = service.ErrJobCreationFailed
	w, env = do(t, r, http.MethodPost, "/api/analyses", `{"text":"The tenant shall not sublet the premises."}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "JOB_CREATION_FAILED", env.Error.Code)
}

func TestGetJobStatus_Errors(t *testing.T) {
	r := newRouterWithJobs(&stubAnalyzer{}, newStubJobs(), nil)

	w, env := do(t, r, http.MethodGet, "/api/jobs/42", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", env.Error.Code)

	w, env = do(t, r, http.MethodGet, "/api/jobs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestJobRoutesDisabledWithoutRunner(t *testing.T) {
	r := newRouter(&stubAnalyzer{}, nil)

	w, _ := do(t, r, http.MethodGet, "/api/jobs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
