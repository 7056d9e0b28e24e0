package dto

import (
	"time"

	"github.com/noah-isme/sma-intervention-api/internal/models"
)

// AddCommentRequest is the body of POST /cases/:id/comments. userId is
// accepted as a legacy alias of authorId.
type AddCommentRequest struct {
	AuthorID *FlexInt `json:"authorId" validate:"omitempty,min=1"`
	UserID   *FlexInt `json:"userId" validate:"omitempty,min=1"`
	Content  string   `json:"content" validate:"required"`
}

// ResolvedAuthorID returns the explicit author, falling back to fallback.
func (r AddCommentRequest) ResolvedAuthorID(fallback int64) int64 {
	switch {
	case r.AuthorID != nil:
		return r.AuthorID.Int64()
	case r.UserID != nil:
		return r.UserID.Int64()
	}
	return fallback
}

// EditCommentRequest is the body of PUT /cases/:id/comments/:commentId.
type EditCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

// CommentAuthor is the reduced author projection.
type CommentAuthor struct {
	ID        int64   `json:"id"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// CommentResponse is the flattened comment shape.
type CommentResponse struct {
	ID        int64         `json:"id"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"createdAt"`
	Author    CommentAuthor `json:"author"`
}

// NewCommentResponse projects a stored comment.
func NewCommentResponse(c models.Comment) CommentResponse {
	author := CommentAuthor{ID: c.AuthorID}
	if c.Author != nil {
		author.FirstName = c.Author.FirstName
		author.LastName = c.Author.LastName
	}
	return CommentResponse{ID: c.ID, Content: c.Content, CreatedAt: c.CreatedAt, Author: author}
}

// CommentPage is one window of a case's comment log.
type CommentPage struct {
	Comments   []CommentResponse `json:"comments"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}
