package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-intervention-api/internal/models"
)

const commentSelect = `SELECT c.id, c.intervention_id, c.author_id, c.content, c.created_at,
        p.first_name AS author_first_name, p.last_name AS author_last_name
        FROM intervention_comments c
        LEFT JOIN users u ON u.id = c.author_id
        LEFT JOIN profiles p ON p.id = u.profile_id`

type commentRow struct {
	models.Comment
	AuthorFirstName sql.NullString `db:"author_first_name"`
	AuthorLastName  sql.NullString `db:"author_last_name"`
}

func (r commentRow) toModel() models.Comment {
	c := r.Comment
	author := &models.CommentAuthor{ID: c.AuthorID}
	if r.AuthorFirstName.Valid {
		v := r.AuthorFirstName.String
		author.FirstName = &v
	}
	if r.AuthorLastName.Valid {
		v := r.AuthorLastName.String
		author.LastName = &v
	}
	c.Author = author
	return c
}

// CommentRepository persists the comment log of each case.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository constructs a CommentRepository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a comment and fills in its id and created_at.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	const query = `INSERT INTO intervention_comments (intervention_id, author_id, content, created_at)
        VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, comment.InterventionID, comment.AuthorID, comment.Content, time.Now().UTC())
	if err := row.Scan(&comment.ID, &comment.CreatedAt); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// ListByIntervention returns one window of a case's comments, newest first,
// plus the total number of comments on the case. Ties on created_at fall
// back to the higher id first.
func (r *CommentRepository) ListByIntervention(ctx context.Context, caseID int64, limit, offset int) ([]models.Comment, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM intervention_comments WHERE intervention_id = $1`, caseID); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	query := commentSelect + ` WHERE c.intervention_id = $1 ORDER BY c.created_at DESC, c.id DESC LIMIT $2 OFFSET $3`
	var rows []commentRow
	if err := r.db.SelectContext(ctx, &rows, query, caseID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}

	comments := make([]models.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, row.toModel())
	}
	return comments, total, nil
}

// FindScoped returns sql.ErrNoRows unless commentID belongs to caseID.
func (r *CommentRepository) FindScoped(ctx context.Context, caseID, commentID int64) (*models.Comment, error) {
	var row commentRow
	if err := r.db.GetContext(ctx, &row, commentSelect+` WHERE c.intervention_id = $1 AND c.id = $2`, caseID, commentID); err != nil {
		return nil, err
	}
	comment := row.toModel()
	return &comment, nil
}

// UpdateContent overwrites the content of a scoped comment. created_at is
// left untouched. It reports false when the pair does not match.
func (r *CommentRepository) UpdateContent(ctx context.Context, caseID, commentID int64, content string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE intervention_comments SET content = $3 WHERE intervention_id = $1 AND id = $2`, caseID, commentID, content)
	if err != nil {
		return false, fmt.Errorf("update comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update comment rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteScoped removes a scoped comment. It reports false when the pair does
// not match.
func (r *CommentRepository) DeleteScoped(ctx context.Context, caseID, commentID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM intervention_comments WHERE intervention_id = $1 AND id = $2`, caseID, commentID)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment rows: %w", err)
	}
	return affected > 0, nil
}

// ListAll returns every comment of one case, newest first.
func (r *CommentRepository) ListAll(ctx context.Context, caseID int64) ([]models.Comment, error) {
	var rows []commentRow
	if err := r.db.SelectContext(ctx, &rows, commentSelect+` WHERE c.intervention_id = $1 ORDER BY c.created_at DESC, c.id DESC`, caseID); err != nil {
		return nil, fmt.Errorf("list case comments: %w", err)
	}
	comments := make([]models.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, row.toModel())
	}
	return comments, nil
}
