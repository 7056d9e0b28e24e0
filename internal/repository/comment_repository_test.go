package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-intervention-api/internal/models"
)

var commentRowColumns = []string{"id", "intervention_id", "author_id", "content", "created_at", "author_first_name", "author_last_name"}

func TestCommentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	created := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO intervention_comments (intervention_id, author_id, content, created_at)")).
		WithArgs(int64(7), int64(21), "Met with the family", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, created))

	comment := &models.Comment{InterventionID: 7, AuthorID: 21, Content: "Met with the family"}
	require.NoError(t, repo.Create(context.Background(), comment))
	assert.EqualValues(t, 3, comment.ID)
	assert.Equal(t, created, comment.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepositoryListByInterventionWindow(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM intervention_comments WHERE intervention_id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.intervention_id = $1 ORDER BY c.created_at DESC, c.id DESC LIMIT $2 OFFSET $3")).
		WithArgs(int64(7), 10, 10).
		WillReturnRows(sqlmock.NewRows(commentRowColumns).
			AddRow(15, 7, 21, "fifteen", now, "Ana", "Soto").
			AddRow(14, 7, 99, "fourteen", now.Add(-time.Minute), nil, nil))

	comments, total, err := repo.ListByIntervention(context.Background(), 7, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, comments, 2)
	require.NotNil(t, comments[0].Author)
	assert.Equal(t, "Ana", *comments[0].Author.FirstName)
	assert.EqualValues(t, 99, comments[1].Author.ID)
	assert.Nil(t, comments[1].Author.FirstName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepositoryFindScopedMismatch(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.intervention_id = $1 AND c.id = $2")).
		WithArgs(int64(8), int64(3)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindScoped(context.Background(), 8, 3)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepositoryUpdateContentScoped(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE intervention_comments SET content = $3 WHERE intervention_id = $1 AND id = $2")).
		WithArgs(int64(8), int64(3), "edited").
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.UpdateContent(context.Background(), 8, 3, "edited")
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepositoryDeleteScoped(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM intervention_comments WHERE intervention_id = $1 AND id = $2")).
		WithArgs(int64(7), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.DeleteScoped(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
