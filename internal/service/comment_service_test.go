package service

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-intervention-api/internal/models"
	appErrors "github.com/noah-isme/sma-intervention-api/pkg/errors"
)

type commentFixture struct {
	svc      *CommentService
	cases    *fakeInterventionRepo
	comments *fakeCommentRepo
	caseID   int64
	otherID  int64
}

func newCommentFixture(t *testing.T, cfg CommentServiceConfig) *commentFixture {
	t.Helper()
	identities := newFakeIdentityRepo()
	comments := newFakeCommentRepo(identities.staff)
	cases := newFakeInterventionRepo(comments)
	ctx := context.Background()
	reported := models.NewDate(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	first := &models.Intervention{Priority: 2, DateReported: reported, Description: "first", StudentID: 1, InformerID: 10, ResponsibleID: 11}
	second := &models.Intervention{Priority: 2, DateReported: reported, Description: "second", StudentID: 2, InformerID: 10, ResponsibleID: 11}
	require.NoError(t, cases.Create(ctx, first, nil))
	require.NoError(t, cases.Create(ctx, second, nil))

	svc := NewCommentService(comments, cases, identities, nil, NewMetricsService(), nil, zap.NewNop(), cfg)
	return &commentFixture{svc: svc, cases: cases, comments: comments, caseID: first.ID, otherID: second.ID}
}

func TestCommentServiceAdd(t *testing.T) {
	f := newCommentFixture(t, CommentServiceConfig{})

	resp, err := f.svc.Add(context.Background(), f.caseID, 10, "  Spoke with the family\n")
	require.NoError(t, err)

	assert.NotZero(t, resp.ID)
	assert.Equal(t, "  Spoke with the family\n", resp.Content)
	assert.Equal(t, "  Spoke with the family\n", f.comments.content(resp.ID))
	assert.False(t, resp.CreatedAt.IsZero())
	assert.Equal(t, int64(10), resp.Author.ID)
	require.NotNil(t, resp.Author.FirstName)
	assert.Equal(t, "Ana", *resp.Author.FirstName)
	assert.Equal(t, "Rojas", *resp.Author.LastName)
}

func TestCommentServiceAddAuthorWithoutProfile(t *testing.T) {
	f := newCommentFixture(t, CommentServiceConfig{})

	resp, err := f.svc.Add(context.Background(), f.caseID, 12, "note")
	require.NoError(t, err)

	assert.Equal(t, int64(12), resp.Author.ID)
	assert.Nil(t, resp.Author.FirstName)
	assert.Nil(t, resp.Author.LastName)
}

func TestCommentServiceAddErrors(t *testing.T) {
	f := newCommentFixture(t, CommentServiceConfig{})

	_, err := f.svc.Add(context.Background(), 999, 10, "note")
	assertAppError(t, err, appErrors.ErrNotFound.Code)
	assert.Equal(t, "case or author not found", appErrors.FromError(err).Message)

	_, err = f.svc.Add(context.Background(), f.caseID, 999, "note")
	assertAppError(t, err, appErrors.ErrNotFound.Code)

	_, err = f.svc.Add(context.Background(), f.caseID, 10, "   ")
	assertAppError(t, err, appErrors.ErrValidation.Code)

	_, err = f.svc.Add(context.Background(), f.caseID, 0, "note")
	assertAppError(t, err, appErrors.ErrValidation.Code)

	all, err := f.comments.ListAll(context.Background(), f.caseID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCommentServiceListPageSecondPage(t *testing.T) {
	f := newCommentFixture(t, CommentServiceConfig{})
	for i := 1; i <= 25; i++ {
		_, err := f.svc.Add(context.Background(), f.caseID, 10, fmt.Sprintf("comment %d", i))
		require.NoError(t, err)
	}
	_, err := f.svc.Add(context.Background(), f.otherID, 10, "other case")
	require.NoError(t, err)

	page, err := f.svc.ListPage(context.Background(), f.caseID, 2, 10)
	require.NoError(t, err)

	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 10, page.PageSize)
	require.Len(t, page.Comments, 10)
	// newest first: comment 25 is item 1, so items 11..20 are comments 15..6
	for i, c := range page.Comments {
		assert.Equal(t, fmt.Sprintf("comment %d", 15-i), c.Content)
	}
	for i := 1; i < len(page.Comments); i++ {
		assert.True(t, page.Comments[i-1].CreatedAt.After(page.Comments[i].CreatedAt))
	}

	last, err := f.svc.ListPage(context.Background(), f.caseID, 3, 10)
	require.NoError(t, err)
	assert.Len(t, last.Comments, 5)

	beyond, err := f.svc.ListPage(context.Background(), f.caseID, 9, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond.Comments)
	assert.Equal(t, 25, beyond.Total)
}

func TestCommentServiceListPageDefaultsAndCap(t *testing.T) {
	f := newCommentFixture(t, CommentServiceConfig{DefaultPageSize: 10, MaxPageSize: 20})
	for i := 0; i < 30; i++ {
		_, err := f.svc.Add(context.Background(), f.caseID, 11, "note")
		require.NoError(t, err)
	}

	page, err := f.svc.ListPage(context.Background(), f.caseID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 10, page.PageSize)
	assert.Len(t, page.Comments, 10)
	assert.Equal(t, 3, page.TotalPages)

	capped, err := f.svc.ListPage(context.Background(), f.caseID, 1, 500)
	require.NoError(t, err)
	assert.Equal(t, 20, capped.PageSize)
	assert.Len(t, capped.Comments, 20)
	assert.Equal(t, 2, capped.TotalPages)
}

func TestCommentServiceListPageEmptyAndMissingCase(t *testing.T) {
	f := newCommentFixture(t, CommentServiceConfig{})

	page, err := f.svc.ListPage(context.Background(), f.caseID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 0, page.TotalPages)
	assert.NotNil(t, page.Comments)

	_, err = f.svc.ListPage(context.Background(), 999, 1, 10)
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestCommentServiceEdit(t *testing.T) {
	f := newCommentFixture(t, CommentServiceConfig{})
	added, err := f.svc.Add(context.Background(), f.caseID, 10, "draft")
	require.NoError(t, err)

	edited, err := f.svc.Edit(context.Background(), f.caseID, added.ID, "final wording")
	require.NoError(t, err)

	assert.Equal(t, "final wording", edited.Content)
	assert.Equal(t, added.CreatedAt, edited.CreatedAt)
	assert.Equal(t, added.ID, edited.ID)
}

func TestCommentServiceEditKeepsContentAsSent(t *testing.T) {
	f := newCommentFixture(t, CommentServiceConfig{})
	added, err := f.svc.Add(context.Background(), f.caseID, 10, "draft")
	require.NoError(t, err)

	edited, err := f.svc.Edit(context.Background(), f.caseID, added.ID, "- item one\n- item two\n")
	require.NoError(t, err)
	assert.Equal(t, "- item one\n- item two\n", edited.Content)

	_, err = f.svc.Edit(context.Background(), f.caseID, added.ID, " \t\n")
	assertAppError(t, err, appErrors.ErrValidation.Code)
	assert.Equal(t, "- item one\n- item two\n", f.comments.content(added.ID))
}

func TestCommentServiceEditMismatchedCase(t *testing.T) {
	f := newCommentFixture(t, CommentServiceConfig{})
	added, err := f.svc.Add(context.Background(), f.caseID, 10, "original")
	require.NoError(t, err)

	_, err = f.svc.Edit(context.Background(), f.otherID, added.ID, "hijacked")

	assertAppError(t, err, appErrors.ErrNotFound.Code)
	assert.Equal(t, "original", f.comments.content(added.ID))
}

func TestCommentServiceRemove(t *testing.T) {
	f := newCommentFixture(t, CommentServiceConfig{})
	added, err := f.svc.Add(context.Background(), f.caseID, 10, "temporary")
	require.NoError(t, err)

	err = f.svc.Remove(context.Background(), f.otherID, added.ID)
	assertAppError(t, err, appErrors.ErrNotFound.Code)

	require.NoError(t, f.svc.Remove(context.Background(), f.caseID, added.ID))

	err = f.svc.Remove(context.Background(), f.caseID, added.ID)
	assertAppError(t, err, appErrors.ErrNotFound.Code)
}

type offsetRecordingRepo struct {
	*fakeCommentRepo
	limit, offset int
}

func (r *offsetRecordingRepo) ListByIntervention(ctx context.Context, caseID int64, limit, offset int) ([]models.Comment, int, error) {
	r.limit, r.offset = limit, offset
	return r.fakeCommentRepo.ListByIntervention(ctx, caseID, limit, offset)
}

func TestCommentServiceListPageBeyondIntRange(t *testing.T) {
	f := newCommentFixture(t, CommentServiceConfig{})
	for i := 0; i < 3; i++ {
		_, err := f.svc.Add(context.Background(), f.caseID, 10, "note")
		require.NoError(t, err)
	}
	recording := &offsetRecordingRepo{fakeCommentRepo: f.comments}
	svc := NewCommentService(recording, f.cases, newFakeIdentityRepo(), nil, NewMetricsService(), nil, zap.NewNop(), CommentServiceConfig{})

	page, err := svc.ListPage(context.Background(), f.caseID, math.MaxInt, 10)
	require.NoError(t, err)

	assert.Equal(t, 10, recording.limit)
	assert.GreaterOrEqual(t, recording.offset, 0)
	assert.Empty(t, page.Comments)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, math.MaxInt, page.Page)
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, pageOffset(1, 10))
	assert.Equal(t, 20, pageOffset(3, 10))
	assert.Equal(t, math.MaxInt, pageOffset(math.MaxInt, 10))
	assert.Equal(t, math.MaxInt, pageOffset(math.MaxInt/10+2, 10))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, totalPages(0, 10))
	assert.Equal(t, 1, totalPages(10, 10))
	assert.Equal(t, 2, totalPages(11, 10))
	assert.Equal(t, 3, totalPages(25, 10))
}
