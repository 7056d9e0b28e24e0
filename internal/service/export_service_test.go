package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-intervention-api/internal/models"
	"github.com/noah-isme/sma-intervention-api/pkg/storage"
)

type exportFixture struct {
	svc   *ExportService
	store *storage.LocalStorage
	cases *fakeInterventionRepo
}

func newExportServiceForTest(t *testing.T) *exportFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	identities := newFakeIdentityRepo()
	cases := newFakeInterventionRepo(nil)
	ctx := context.Background()
	reported := models.NewDate(scoringNow.AddDate(0, 0, -3))
	title := "Bullying report"
	seed := []*models.Intervention{
		{Title: &title, Type: models.InterventionTypeBehavioral, Status: models.InterventionStatusPending, Priority: 2,
			Severity: models.SeverityLow, DateReported: reported, ProgressPercentage: 100, Description: "a", StudentID: 1, InformerID: 10, ResponsibleID: 11},
		{Type: models.InterventionTypeHealth, Status: models.InterventionStatusInProgress, Priority: 5,
			Severity: models.SeverityCritical, DateReported: reported, RequiresFollowUp: true, Description: "b", StudentID: 2, InformerID: 10, ResponsibleID: 11},
		{Type: models.InterventionTypeAcademic, Status: models.InterventionStatusPending, Priority: 3,
			Severity: models.SeverityMedium, DateReported: reported, ProgressPercentage: 50, Description: "c", StudentID: 99, InformerID: 10, ResponsibleID: 11},
	}
	for _, item := range seed {
		require.NoError(t, cases.Create(ctx, item, nil))
	}

	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(cases, identities, NewScoringEngine(func() time.Time { return scoringNow }), store, signer,
		ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}, zap.NewNop())
	return &exportFixture{svc: svc, store: store, cases: cases}
}

func TestExportServiceBuildDatasetRanksByScore(t *testing.T) {
	f := newExportServiceForTest(t)

	dataset, err := f.svc.BuildDataset(context.Background(), models.InterventionFilter{})
	require.NoError(t, err)

	assert.Equal(t, urgencyHeaders, dataset.Headers)
	require.Len(t, dataset.Rows, 3)
	assert.Equal(t, "2", dataset.Rows[0]["ID"])
	assert.Equal(t, "10", dataset.Rows[0]["Score"])
	assert.Equal(t, "Camila Paz", dataset.Rows[0]["Student"])
	assert.Equal(t, "3", dataset.Rows[1]["ID"])
	assert.Equal(t, "99", dataset.Rows[1]["Student"])
	assert.Equal(t, "1", dataset.Rows[2]["ID"])
	assert.Equal(t, "Bullying report", dataset.Rows[2]["Title"])
	assert.Equal(t, "17-03-2024", dataset.Rows[2]["Date Reported"])
}

func TestExportServiceBuildDatasetFilters(t *testing.T) {
	f := newExportServiceForTest(t)

	dataset, err := f.svc.BuildDataset(context.Background(), models.InterventionFilter{Status: models.InterventionStatusPending})
	require.NoError(t, err)

	require.Len(t, dataset.Rows, 2)
	for _, row := range dataset.Rows {
		assert.Equal(t, "Pending", row["Status"])
	}
}

func TestExportServiceGenerateCSV(t *testing.T) {
	f := newExportServiceForTest(t)
	job := &models.CaseReportJob{
		ID:     "0f8fad5b-d9cb-469f-a165-70867728950e",
		Params: models.CaseReportJobParams{Format: models.ReportFormatCSV},
	}

	result, err := f.svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/cases/reports/download/"))
	assert.True(t, strings.HasSuffix(result.URL, result.Token))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))

	file, err := f.svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(urgencyHeaders, ","), strings.TrimSpace(lines[0]))

	jobID, relPath, _, err := f.svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, job.ID, jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGeneratePDF(t *testing.T) {
	f := newExportServiceForTest(t)
	job := &models.CaseReportJob{
		ID:     "job-2",
		Params: models.CaseReportJobParams{Format: models.ReportFormatPDF, Filter: models.InterventionFilter{Severity: models.SeverityCritical}},
	}

	result, err := f.svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatPDF, result.Format)
	assert.Contains(t, result.RelativePath, "critical")

	file, err := f.svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	info, err := file.Stat()
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGenerateUnsupportedFormat(t *testing.T) {
	f := newExportServiceForTest(t)

	_, err := f.svc.Generate(context.Background(), &models.CaseReportJob{ID: "job-3", Params: models.CaseReportJobParams{Format: "xlsx"}})
	require.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "a_b-c", sanitizeFilename("a b/c"))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 150)), 100)
}
