package models

import "time"

// Comment is a remark attached to one case. Content is edited in place and
// no edit timestamp is kept.
type Comment struct {
	ID             int64          `db:"id" json:"id"`
	InterventionID int64          `db:"intervention_id" json:"interventionId"`
	AuthorID       int64          `db:"author_id" json:"authorId"`
	Content        string         `db:"content" json:"content"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	Author         *CommentAuthor `db:"-" json:"author,omitempty"`
}

// CommentAuthor is the reduced author projection. Names are nil when the
// author account or its profile no longer exists.
type CommentAuthor struct {
	ID        int64   `json:"id"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}
