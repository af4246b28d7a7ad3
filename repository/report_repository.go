package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"contractlens-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrReportNotFound is returned when no report has the requested ID
var ErrReportNotFound = errors.New("analysis report not found")

// ReportStore persists finished analysis reports
type ReportStore interface {
	Save(ctx context.Context, report *models.AnalysisReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisReport, error)
}

// ReportRepository stores reports in Postgres as JSONB
type ReportRepository struct {
	db *pgxpool.Pool
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save inserts a report, replacing any report with the same ID
func (r *ReportRepository) Save(ctx context.Context, report *models.AnalysisReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	themes := make([]string, 0, len(report.Themes))
	for _, t := range report.Themes {
		themes = append(themes, string(t))
	}

	query := `
		INSERT INTO analysis_reports (
			id, status, summary, themes, report, started_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			summary = EXCLUDED.summary,
			themes = EXCLUDED.themes,
			report = EXCLUDED.report,
			completed_at = EXCLUDED.completed_at`

	_, err = r.db.Exec(ctx, query,
		report.ID,
		report.Status,
		report.Summary,
		themes,
		string(body),
		report.StartedAt,
		report.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetByID retrieves a report by ID
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisReport, error) {
	var body []byte
	err := r.db.QueryRow(ctx, "SELECT report FROM analysis_reports WHERE id = $1", id).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	report := &models.AnalysisReport{}
	if err := json.Unmarshal(body, report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return report, nil
}

// DefaultReportCapacity bounds MemoryReportStore
const DefaultReportCapacity = 256

// MemoryReportStore keeps the most recent reports in memory
type MemoryReportStore struct {
	mu       sync.RWMutex
	capacity int
	order    []uuid.UUID
	reports  map[uuid.UUID]*models.AnalysisReport
}

// NewMemoryReportStore creates a store evicting the oldest report beyond capacity
func NewMemoryReportStore(capacity int) *MemoryReportStore {
	if capacity <= 0 {
		capacity = DefaultReportCapacity
	}
	return &MemoryReportStore{
		capacity: capacity,
		reports:  make(map[uuid.UUID]*models.AnalysisReport, capacity),
	}
}

func (s *MemoryReportStore) Save(_ context.Context, report *models.AnalysisReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[report.ID]; !ok {
		s.order = append(s.order, report.ID)
	}
	s.reports[report.ID] = report

	for len(s.order) > s.capacity {
		delete(s.reports, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

func (s *MemoryReportStore) GetByID(_ context.Context, id uuid.UUID) (*models.AnalysisReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return report, nil
}
