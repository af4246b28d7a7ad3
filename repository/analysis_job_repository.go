package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"contractlens-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrJobNotFound is returned when no job has the requested ID
var ErrJobNotFound = errors.New("analysis job not found")

// JobStore persists asynchronous analysis jobs
type JobStore interface {
	Create(ctx context.Context, job *models.AnalysisJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.AnalysisJobStatus) error
	UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.JobSteps) error
	Complete(ctx context.Context, id uuid.UUID, reportID uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// AnalysisJobRepository handles database operations for analysis jobs
type AnalysisJobRepository struct {
	db *pgxpool.Pool
}

// NewAnalysisJobRepository creates a new analysis job repository
func NewAnalysisJobRepository(db *pgxpool.Pool) *AnalysisJobRepository {
	return &AnalysisJobRepository{db: db}
}

// Create creates a new analysis job
func (r *AnalysisJobRepository) Create(ctx context.Context, job *models.AnalysisJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	query := `
		INSERT INTO analysis_jobs (
			id, status, current_step, steps, error_message
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	return r.db.QueryRow(
		ctx, query,
		job.ID,
		job.Status,
		job.CurrentStep,
		job.Steps,
		job.ErrorMessage,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

// GetByID retrieves an analysis job by ID
func (r *AnalysisJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	job := &models.AnalysisJob{}
	query := `
		SELECT id, status, current_step, steps, report_id, error_message,
			created_at, updated_at, completed_at
		FROM analysis_jobs
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.Status,
		&job.CurrentStep,
		&job.Steps,
		&job.ReportID,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	if job.Steps == nil {
		job.Steps = make(models.JobSteps, 0)
	}
	return job, nil
}

// UpdateStatus updates the status of an analysis job
func (r *AnalysisJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.AnalysisJobStatus) error {
	query := `
		UPDATE analysis_jobs SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, status)
	return err
}

// UpdateProgress updates the step progress of an analysis job
func (r *AnalysisJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.JobSteps) error {
	query := `
		UPDATE analysis_jobs SET
			current_step = $2,
			steps = $3,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, currentStep, steps)
	return err
}

// Complete marks an analysis job as completed with its report
func (r *AnalysisJobRepository) Complete(ctx context.Context, id uuid.UUID, reportID uuid.UUID) error {
	now := time.Now()
	query := `
		UPDATE analysis_jobs SET
			status = $2,
			report_id = $3,
			completed_at = $4,
			updated_at = $4
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.JobStatusCompleted, reportID, now)
	return err
}

// Fail marks an analysis job as failed
func (r *AnalysisJobRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	now := time.Now()
	query := `
		UPDATE analysis_jobs SET
			status = $2,
			error_message = $3,
			completed_at = $4,
			updated_at = $4
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.JobStatusFailed, errorMessage, now)
	return err
}

// MemoryJobStore keeps jobs in memory, evicting the oldest beyond capacity
type MemoryJobStore struct {
	mu       sync.Mutex
	capacity int
	order    []uuid.UUID
	jobs     map[uuid.UUID]*models.AnalysisJob
}

// NewMemoryJobStore creates an in-memory job store
func NewMemoryJobStore(capacity int) *MemoryJobStore {
	if capacity <= 0 {
		capacity = DefaultReportCapacity
	}
	return &MemoryJobStore{
		capacity: capacity,
		jobs:     make(map[uuid.UUID]*models.AnalysisJob, capacity),
	}
}

func (s *MemoryJobStore) Create(_ context.Context, job *models.AnalysisJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now()
	job.CreatedAt, job.UpdatedAt = now, now
	if _, ok := s.jobs[job.ID]; !ok {
		s.order = append(s.order, job.ID)
	}
	s.jobs[job.ID] = cloneJob(job)

	for len(s.order) > s.capacity {
		delete(s.jobs, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *MemoryJobStore) GetByID(_ context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryJobStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.AnalysisJobStatus) error {
	return s.update(id, func(job *models.AnalysisJob) {
		job.Status = status
	})
}

func (s *MemoryJobStore) UpdateProgress(_ context.Context, id uuid.UUID, currentStep string, steps models.JobSteps) error {
	return s.update(id, func(job *models.AnalysisJob) {
		job.CurrentStep = &currentStep
		job.Steps = steps.Clone()
	})
}

func (s *MemoryJobStore) Complete(_ context.Context, id uuid.UUID, reportID uuid.UUID) error {
	return s.update(id, func(job *models.AnalysisJob) {
		job.Status = models.JobStatusCompleted
		job.ReportID = &reportID
		now := time.Now()
		job.CompletedAt = &now
	})
}

func (s *MemoryJobStore) Fail(_ context.Context, id uuid.UUID, errorMessage string) error {
	return s.update(id, func(job *models.AnalysisJob) {
		job.Status = models.JobStatusFailed
		job.ErrorMessage = &errorMessage
		now := time.Now()
		job.CompletedAt = &now
	})
}

func (s *MemoryJobStore) update(id uuid.UUID, fn func(*models.AnalysisJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	fn(job)
	job.UpdatedAt = time.Now()
	return nil
}

func cloneJob(job *models.AnalysisJob) *models.AnalysisJob {
	c := *job
	c.Steps = job.Steps.Clone()
	return &c
}
