package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-intervention-api/internal/models"
)

const reportJobColumns = `id, params, status, progress, result_url, created_by, created_at, finished_at, error_message`

// CaseReportRepository persists urgency report job metadata.
type CaseReportRepository struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

// NewCaseReportRepository constructs the repository.
func NewCaseReportRepository(db *sqlx.DB) *CaseReportRepository {
	return &CaseReportRepository{db: db, qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// Create inserts a new job row, assigning an id and QUEUED status when unset.
func (r *CaseReportRepository) Create(ctx context.Context, job *models.CaseReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO case_report_jobs (` + reportJobColumns + `)
VALUES (:id, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// GetByID returns sql.ErrNoRows (wrapped) when the job does not exist.
func (r *CaseReportRepository) GetByID(ctx context.Context, id string) (*models.CaseReportJob, error) {
	var job models.CaseReportJob
	if err := r.db.GetContext(ctx, &job, `SELECT `+reportJobColumns+` FROM case_report_jobs WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("get report job: %w", err)
	}
	return &job, nil
}

// UpdateReportJobParams defines the mutable fields. Nil fields are skipped.
type UpdateReportJobParams struct {
	Status       *models.ReportStatus
	Progress     *int
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

func (p UpdateReportJobParams) columns() map[string]interface{} {
	set := map[string]interface{}{}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.Progress != nil {
		set["progress"] = *p.Progress
	}
	if p.ResultURL != nil {
		set["result_url"] = *p.ResultURL
	}
	if p.ErrorMessage != nil {
		set["error_message"] = *p.ErrorMessage
	}
	if p.FinishedAt != nil {
		set["finished_at"] = *p.FinishedAt
	}
	return set
}

// Update persists the provided changes for a job row.
func (r *CaseReportRepository) Update(ctx context.Context, id string, params UpdateReportJobParams) error {
	set := params.columns()
	if len(set) == 0 {
		return nil
	}
	stmt, args, err := r.qb.Update("case_report_jobs").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update report job: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs, oldest first, for recovery after a restart.
func (r *CaseReportRepository) ListQueued(ctx context.Context, limit int) ([]models.CaseReportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ` + reportJobColumns + ` FROM case_report_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	var jobs []models.CaseReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, models.ReportStatusQueued, limit); err != nil {
		return nil, fmt.Errorf("list queued report jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore retrieves completed jobs finished before cutoff.
func (r *CaseReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CaseReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT ` + reportJobColumns + ` FROM case_report_jobs WHERE status = $1 AND finished_at IS NOT NULL AND finished_at < $2 ORDER BY finished_at ASC LIMIT $3`
	var jobs []models.CaseReportJob
	if err := r.db.SelectContext(ctx, &jobs, query, models.ReportStatusFinished, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished report jobs: %w", err)
	}
	return jobs, nil
}
