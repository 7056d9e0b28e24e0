package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-intervention-api/internal/models"
)

var reportJobRowColumns = []string{"id", "params", "status", "progress", "result_url", "created_by", "created_at", "finished_at", "error_message"}

func TestCaseReportRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCaseReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO case_report_jobs")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "QUEUED", 0, nil, int64(21), sqlmock.AnyArg(), nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.CaseReportJob{
		Params:    models.CaseReportJobParams{Format: models.ReportFormatCSV, Filter: models.InterventionFilter{Status: models.InterventionStatusPending}},
		CreatedBy: 21,
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM case_report_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(sqlmock.NewRows(reportJobRowColumns).
			AddRow(job.ID, []byte(`{"format":"csv","filter":{"status":"Pending"}}`), "QUEUED", 0, nil, 21, time.Now(), nil, nil))

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, fetched.ID)
	assert.Equal(t, models.InterventionStatusPending, fetched.Params.Filter.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCaseReportRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCaseReportRepository(db)

	now := time.Now()
	status := models.ReportStatusFinished
	progress := 100
	result := "/api/v1/cases/reports/download/token"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE case_report_jobs SET finished_at = $1, progress = $2, result_url = $3, status = $4 WHERE id = $5")).
		WithArgs(now, progress, result, status, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateReportJobParams{
		Status:     &status,
		Progress:   &progress,
		ResultURL:  &result,
		FinishedAt: &now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateReportJobParams{}))
}

func TestCaseReportRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCaseReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM case_report_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2")).
		WithArgs(models.ReportStatusQueued, 20).
		WillReturnRows(sqlmock.NewRows(reportJobRowColumns).
			AddRow("job-1", []byte(`{"format":"pdf","filter":{}}`), "QUEUED", 0, nil, 21, time.Now(), nil, nil))

	jobs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ReportFormatPDF, jobs[0].Params.Format)
	assert.NoError(t, mock.ExpectationsWereMet())
}
