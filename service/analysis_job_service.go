package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"contractlens-backend/models"
	"contractlens-backend/repository"

	"github.com/google/uuid"
)

var (
	ErrJobCreationFailed = errors.New("failed to create analysis job")
	ErrJobNotFound       = errors.New("analysis job not found")
)

// JobService runs analyses in the background and tracks their progress
type JobService struct {
	jobs     repository.JobStore
	reports  repository.ReportStore
	pipeline *Pipeline
	logger   *slog.Logger
}

// JobServiceOption is a functional option for JobService
type JobServiceOption func(*JobService)

// JobWithStore sets the job store
func JobWithStore(store repository.JobStore) JobServiceOption {
	return func(s *JobService) {
		s.jobs = store
	}
}

// JobWithReportStore sets where finished reports are saved
func JobWithReportStore(store repository.ReportStore) JobServiceOption {
	return func(s *JobService) {
		s.reports = store
	}
}

// JobWithPipeline sets the analysis pipeline
func JobWithPipeline(p *Pipeline) JobServiceOption {
	return func(s *JobService) {
		s.pipeline = p
	}
}

// JobWithLogger sets the structured logger
func JobWithLogger(l *slog.Logger) JobServiceOption {
	return func(s *JobService) {
		s.logger = l
	}
}

// NewJobService creates a new job service
func NewJobService(opts ...JobServiceOption) *JobService {
	s := &JobService{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates a pending job and returns immediately. Process does the work.
func (s *JobService) Submit(ctx context.Context) (*models.AnalysisJob, error) {
	if s.jobs == nil {
		return nil, errors.New("job store not set")
	}

	steps := make(models.JobSteps, 0, len(PipelineSteps()))
	for _, name := range PipelineSteps() {
		steps = append(steps, models.JobStep{Name: name, Status: models.StepPending})
	}
	job := &models.AnalysisJob{
		ID:     uuid.New(),
		Status: models.JobStatusPending,
		Steps:  steps,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJobCreationFailed, err)
	}
	return job, nil
}

// Process analyzes contractText for a submitted job, recording step progress
// and linking the finished report. It is meant to run in its own goroutine.
func (s *JobService) Process(ctx context.Context, jobID uuid.UUID, contractText string) error {
	if s.jobs == nil {
		return errors.New("job store not set")
	}
	if s.pipeline == nil {
		s.markJobFailed(ctx, jobID, "pipeline not set")
		return errors.New("pipeline not set")
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load analysis job: %w", err)
	}
	if err := s.jobs.UpdateStatus(ctx, jobID, models.JobStatusInProgress); err != nil {
		return fmt.Errorf("failed to start analysis job: %w", err)
	}

	steps := job.Steps.Clone()
	progress := func(step, status string) {
		var current string
		for i := range steps {
			if steps[i].Name == step {
				steps[i].Status = status
				current = step
				break
			}
		}
		if err := s.jobs.UpdateProgress(ctx, jobID, current, steps); err != nil {
			s.logger.Warn("failed to record job progress", "job_id", jobID, "step", step, "error", err)
		}
	}

	report, err := s.pipeline.AnalyzeWithProgress(ctx, contractText, progress)
	if err != nil {
		s.markJobFailed(ctx, jobID, err.Error())
		return err
	}

	if s.reports != nil {
		if err := s.reports.Save(ctx, report); err != nil {
			s.markJobFailed(ctx, jobID, "failed to store report: "+err.Error())
			return fmt.Errorf("failed to store report: %w", err)
		}
	}

	if err := s.jobs.Complete(ctx, jobID, report.ID); err != nil {
		return fmt.Errorf("failed to complete analysis job: %w", err)
	}
	s.logger.Info("analysis job completed", "job_id", jobID, "analysis_id", report.ID)
	return nil
}

// GetJob retrieves a job by ID
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	if s.jobs == nil {
		return nil, errors.New("job store not set")
	}
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

func (s *JobService) markJobFailed(ctx context.Context, jobID uuid.UUID, errorMessage string) {
	if err := s.jobs.Fail(ctx, jobID, errorMessage); err != nil {
		s.logger.Error("failed to mark job failed", "job_id", jobID, "error", err)
	}
}
