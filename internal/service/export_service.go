package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-intervention-api/internal/models"
	"github.com/noah-isme/sma-intervention-api/pkg/export"
	"github.com/noah-isme/sma-intervention-api/pkg/storage"
)

var urgencyHeaders = []string{"ID", "Student", "Title", "Type", "Status", "Priority", "Severity", "Date Reported", "Score"}

type caseSource interface {
	List(ctx context.Context, filter models.InterventionFilter) ([]models.Intervention, error)
}

type studentDirectory interface {
	StudentsByIDs(ctx context.Context, ids []int64) (map[int64]models.Student, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders urgency reports and stores them behind signed URLs.
type ExportService struct {
	cases    caseSource
	students studentDirectory
	scoring  *ScoringEngine
	storage  fileStorage
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(cases caseSource, students studentDirectory, scoring *ScoringEngine, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scoring == nil {
		scoring = NewScoringEngine(nil)
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		cases:    cases,
		students: students,
		scoring:  scoring,
		storage:  storage,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate renders the job's report, stores it and signs a download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.CaseReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, err := export.RendererFor(export.Format(job.Params.Format))
	if err != nil {
		return nil, err
	}
	dataset, err := s.BuildDataset(ctx, job.Params.Filter)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job, renderer.Extension()), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Debug("urgency report stored", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("rows", len(dataset.Rows)))

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/cases/reports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// BuildDataset lists the filtered cases ranked by urgency score, highest
// first. Ties keep the newest case first.
func (s *ExportService) BuildDataset(ctx context.Context, filter models.InterventionFilter) (export.Dataset, error) {
	items, err := s.cases.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, err
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.StudentID)
	}
	students, err := s.students.StudentsByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return export.Dataset{}, err
	}

	now := s.scoring.Now()
	type scoredRow struct {
		item  models.Intervention
		score int
	}
	scored := make([]scoredRow, 0, len(items))
	for _, item := range items {
		scored = append(scored, scoredRow{item: item, score: ScoreAt(ScoreInputFromIntervention(item), now).Total()})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].item.ID > scored[j].item.ID
	})

	rows := make([]map[string]string, 0, len(scored))
	for _, r := range scored {
		student := strconv.FormatInt(r.item.StudentID, 10)
		if st, ok := students[r.item.StudentID]; ok {
			student = st.FullName()
		}
		title := ""
		if r.item.Title != nil {
			title = *r.item.Title
		}
		rows = append(rows, map[string]string{
			"ID":            strconv.FormatInt(r.item.ID, 10),
			"Student":       student,
			"Title":         title,
			"Type":          string(r.item.Type),
			"Status":        string(r.item.Status),
			"Priority":      strconv.Itoa(r.item.Priority),
			"Severity":      string(r.item.Severity),
			"Date Reported": r.item.DateReported.String(),
			"Score":         strconv.Itoa(r.score),
		})
	}

	return export.Dataset{
		Title:   fmt.Sprintf("Case Urgency Report %s", now.UTC().Format(models.DateLayout)),
		Headers: urgencyHeaders,
		Rows:    rows,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, or the configured ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.CaseReportJob, ext string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if f := job.Params.Filter; !f.Empty() {
		parts := make([]string, 0, 3)
		if f.Status != "" {
			parts = append(parts, string(f.Status))
		}
		if f.Type != "" {
			parts = append(parts, string(f.Type))
		}
		if f.Severity != "" {
			parts = append(parts, string(f.Severity))
		}
		if f.Priority > 0 {
			parts = append(parts, "p"+strconv.Itoa(f.Priority))
		}
		if len(parts) > 0 {
			scope = strings.ToLower(strings.Join(parts, "-"))
		}
	}
	return fmt.Sprintf("case_urgency_%s_%s_%s.%s", sanitizeFilename(scope), timestamp, sanitizeFilename(shortID(job.ID)), ext)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
