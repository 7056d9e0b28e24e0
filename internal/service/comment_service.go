package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-intervention-api/internal/dto"
	"github.com/noah-isme/sma-intervention-api/internal/models"
	appErrors "github.com/noah-isme/sma-intervention-api/pkg/errors"
)

type commentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByIntervention(ctx context.Context, caseID int64, limit, offset int) ([]models.Comment, int, error)
	FindScoped(ctx context.Context, caseID, commentID int64) (*models.Comment, error)
	UpdateContent(ctx context.Context, caseID, commentID int64, content string) (bool, error)
	DeleteScoped(ctx context.Context, caseID, commentID int64) (bool, error)
}

type caseLookup interface {
	FindByID(ctx context.Context, id int64) (*models.Intervention, error)
}

type staffLookup interface {
	FindStaffByID(ctx context.Context, id int64) (*models.Staff, error)
}

// CommentServiceConfig carries the pagination settings.
type CommentServiceConfig struct {
	DefaultPageSize int
	// MaxPageSize caps pageSize. Zero disables the cap.
	MaxPageSize int
}

// CommentService manages the comment log of a case.
type CommentService struct {
	comments  commentRepository
	cases     caseLookup
	staff     staffLookup
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    CommentServiceConfig
}

// NewCommentService constructs a CommentService.
func NewCommentService(
	comments commentRepository,
	cases caseLookup,
	staff staffLookup,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	config CommentServiceConfig,
) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = 10
	}
	if config.MaxPageSize < 0 {
		config.MaxPageSize = 0
	}
	return &CommentService{
		comments:  comments,
		cases:     cases,
		staff:     staff,
		cache:     cache,
		metrics:   metrics,
		validator: ensureCaseValidators(validate),
		logger:    logger,
		config:    config,
	}
}

// Add attaches a comment authored by authorID to the case.
func (s *CommentService) Add(ctx context.Context, caseID, authorID int64, content string) (*dto.CommentResponse, error) {
	if err := s.validateIDs(caseID, authorID); err != nil {
		return nil, err
	}
	if err := s.validator.Var(strings.TrimSpace(content), "required"); err != nil {
		return nil, fieldValidation("content", "required", "")
	}

	if _, err := s.cases.FindByID(ctx, caseID); err != nil {
		return nil, s.lookupError(err, "case or author not found", "failed to load case")
	}
	author, err := s.staff.FindStaffByID(ctx, authorID)
	if err != nil {
		return nil, s.lookupError(err, "case or author not found", "failed to load author")
	}

	comment := &models.Comment{InterventionID: caseID, AuthorID: authorID, Content: content}
	start := time.Now()
	err = s.comments.Create(ctx, comment)
	s.metrics.ObserveDBQuery("comments_create", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}
	s.metrics.RecordCommentWrite("add")
	s.invalidate(ctx, caseID)

	comment.Author = authorProjection(author)
	resp := dto.NewCommentResponse(*comment)
	return &resp, nil
}

// ListPage returns one window of the case's comments, newest first. page
// defaults to 1 and pageSize to the configured default when not positive.
func (s *CommentService) ListPage(ctx context.Context, caseID int64, page, pageSize int) (*dto.CommentPage, error) {
	if caseID <= 0 {
		return nil, fieldValidation("id", "min", "1")
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.config.DefaultPageSize
	}
	if s.config.MaxPageSize > 0 && pageSize > s.config.MaxPageSize {
		pageSize = s.config.MaxPageSize
	}

	if _, err := s.cases.FindByID(ctx, caseID); err != nil {
		return nil, s.lookupError(err, "case not found", "failed to load case")
	}

	start := time.Now()
	comments, total, err := s.comments.ListByIntervention(ctx, caseID, pageSize, pageOffset(page, pageSize))
	s.metrics.ObserveDBQuery("comments_list", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}

	items := make([]dto.CommentResponse, 0, len(comments))
	for _, c := range comments {
		items = append(items, dto.NewCommentResponse(c))
	}
	return &dto.CommentPage{
		Comments:   items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

// pageOffset clamps at math.MaxInt; pages past the int range read as empty.
func pageOffset(page, pageSize int) int {
	if page-1 > math.MaxInt/pageSize {
		return math.MaxInt
	}
	return (page - 1) * pageSize
}

// Edit replaces the content of a comment scoped to caseID. createdAt is kept.
func (s *CommentService) Edit(ctx context.Context, caseID, commentID int64, content string) (*dto.CommentResponse, error) {
	if err := s.validateScope(caseID, commentID); err != nil {
		return nil, err
	}
	if err := s.validator.Var(strings.TrimSpace(content), "required"); err != nil {
		return nil, fieldValidation("content", "required", "")
	}

	start := time.Now()
	updated, err := s.comments.UpdateContent(ctx, caseID, commentID, content)
	s.metrics.ObserveDBQuery("comments_update", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update comment")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "comment not found")
	}
	s.metrics.RecordCommentWrite("edit")
	s.invalidate(ctx, caseID)

	comment, err := s.comments.FindScoped(ctx, caseID, commentID)
	if err != nil {
		return nil, s.lookupError(err, "comment not found", "failed to reload comment")
	}
	resp := dto.NewCommentResponse(*comment)
	return &resp, nil
}

// Remove deletes a comment scoped to caseID.
func (s *CommentService) Remove(ctx context.Context, caseID, commentID int64) error {
	if err := s.validateScope(caseID, commentID); err != nil {
		return err
	}
	start := time.Now()
	deleted, err := s.comments.DeleteScoped(ctx, caseID, commentID)
	s.metrics.ObserveDBQuery("comments_delete", time.Since(start))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete comment")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "comment not found")
	}
	s.metrics.RecordCommentWrite("remove")
	s.invalidate(ctx, caseID)
	return nil
}

func (s *CommentService) validateIDs(caseID, authorID int64) error {
	if caseID <= 0 {
		return fieldValidation("id", "min", "1")
	}
	if authorID <= 0 {
		return fieldValidation("authorId", "required", "")
	}
	return nil
}

func (s *CommentService) validateScope(caseID, commentID int64) error {
	if caseID <= 0 {
		return fieldValidation("id", "min", "1")
	}
	if commentID <= 0 {
		return fieldValidation("commentId", "min", "1")
	}
	return nil
}

func (s *CommentService) lookupError(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func (s *CommentService) invalidate(ctx context.Context, caseID int64) {
	_ = s.cache.Delete(ctx, caseDetailKey(caseID))
}

func authorProjection(staff *models.Staff) *models.CommentAuthor {
	author := &models.CommentAuthor{ID: staff.ID}
	if staff.Profile != nil {
		first, last := staff.Profile.FirstName, staff.Profile.LastName
		author.FirstName = &first
		author.LastName = &last
	}
	return author
}

func totalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
