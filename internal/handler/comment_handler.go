package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-intervention-api/internal/dto"
	appErrors "github.com/noah-isme/sma-intervention-api/pkg/errors"
	"github.com/noah-isme/sma-intervention-api/pkg/response"
)

type commentService interface {
	Add(ctx context.Context, caseID, authorID int64, content string) (*dto.CommentResponse, error)
	ListPage(ctx context.Context, caseID int64, page, pageSize int) (*dto.CommentPage, error)
	Edit(ctx context.Context, caseID, commentID int64, content string) (*dto.CommentResponse, error)
	Remove(ctx context.Context, caseID, commentID int64) error
}

// CommentHandler exposes the comment log of a case.
type CommentHandler struct {
	comments commentService
}

// NewCommentHandler constructs CommentHandler.
func NewCommentHandler(comments commentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// Add godoc
// @Summary Add comment to a case
// @Description authorId defaults to the authenticated staff member.
// @Tags Comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Case ID"
// @Param payload body dto.AddCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{id}/comments [post]
func (h *CommentHandler) Add(c *gin.Context) {
	caseID, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	var fallback int64
	if claims := claimsFromContext(c); claims != nil {
		fallback = claims.UserID
	}
	comment, err := h.comments.Add(c.Request.Context(), caseID, req.ResolvedAuthorID(fallback), req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// List godoc
// @Summary List comments of a case
// @Tags Comments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Case ID"
// @Param page query int false "Page, starting at 1"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{id}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	caseID, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	page, err := optionalIntQuery(c, "page")
	if err != nil {
		response.Error(c, err)
		return
	}
	pageSize, err := optionalIntQuery(c, "pageSize")
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.comments.ListPage(c.Request.Context(), caseID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Edit godoc
// @Summary Edit a comment
// @Tags Comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Case ID"
// @Param commentId path int true "Comment ID"
// @Param payload body dto.EditCommentRequest true "Comment payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{id}/comments/{commentId} [put]
func (h *CommentHandler) Edit(c *gin.Context) {
	caseID, commentID, err := commentScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.EditCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	comment, err := h.comments.Edit(c.Request.Context(), caseID, commentID, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comment, nil)
}

// Remove godoc
// @Summary Delete a comment
// @Tags Comments
// @Security BearerAuth
// @Param id path int true "Case ID"
// @Param commentId path int true "Comment ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /cases/{id}/comments/{commentId} [delete]
func (h *CommentHandler) Remove(c *gin.Context) {
	caseID, commentID, err := commentScope(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.comments.Remove(c.Request.Context(), caseID, commentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func commentScope(c *gin.Context) (int64, int64, error) {
	caseID, err := int64Param(c, "id")
	if err != nil {
		return 0, 0, err
	}
	commentID, err := int64Param(c, "commentId")
	if err != nil {
		return 0, 0, err
	}
	return caseID, commentID, nil
}
