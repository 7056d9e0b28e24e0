package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-intervention-api/internal/dto"
	"github.com/noah-isme/sma-intervention-api/internal/models"
	appErrors "github.com/noah-isme/sma-intervention-api/pkg/errors"
	"github.com/noah-isme/sma-intervention-api/pkg/response"
)

type interventionService interface {
	List(ctx context.Context, filter models.InterventionFilter) ([]models.Intervention, error)
	ListScored(ctx context.Context, filter models.InterventionFilter) ([]dto.ScoredIntervention, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.Intervention, error)
	Get(ctx context.Context, id int64) (*dto.InterventionDetail, error)
	Score(ctx context.Context, id int64) (*dto.ScoreResponse, error)
	Create(ctx context.Context, cmd dto.CreateInterventionCommand) (*models.Intervention, error)
	Update(ctx context.Context, id int64, cmd dto.UpdateInterventionCommand) (*models.Intervention, error)
	Delete(ctx context.Context, id int64) error
}

// InterventionHandler exposes the /cases endpoints.
type InterventionHandler struct {
	cases interventionService
}

// NewInterventionHandler constructs InterventionHandler.
func NewInterventionHandler(cases interventionService) *InterventionHandler {
	return &InterventionHandler{cases: cases}
}

// List godoc
// @Summary List intervention cases
// @Tags Cases
// @Produce json
// @Security BearerAuth
// @Param status query string false "Pending, InProgress, Resolved or Closed"
// @Param type query string false "Case type"
// @Param severity query string false "Low, Medium, High or Critical"
// @Param priority query int false "Priority 1-5"
// @Param studentId query int false "Student ID"
// @Param sort query string false "score to rank by urgency"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /cases [get]
func (h *InterventionHandler) List(c *gin.Context) {
	query, err := parseCaseListQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if query.SortByScore {
		items, err := h.cases.ListScored(c.Request.Context(), query.Filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, items, nil)
		return
	}
	items, err := h.cases.List(c.Request.Context(), query.Filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

func parseCaseListQuery(c *gin.Context) (dto.CaseListQuery, error) {
	var q dto.CaseListQuery
	if raw := c.Query("status"); raw != "" {
		status := models.InterventionStatus(raw)
		if !status.Valid() {
			return q, appErrors.Clone(appErrors.ErrValidation, "status must be one of "+joinValues(models.InterventionStatuses))
		}
		q.Filter.Status = status
	}
	if raw := c.Query("type"); raw != "" {
		kind := models.InterventionType(raw)
		if !kind.Valid() {
			return q, appErrors.Clone(appErrors.ErrValidation, "type must be one of "+joinValues(models.InterventionTypes))
		}
		q.Filter.Type = kind
	}
	if raw := c.Query("severity"); raw != "" {
		severity := models.Severity(raw)
		if !severity.Valid() {
			return q, appErrors.Clone(appErrors.ErrValidation, "severity must be one of "+joinValues(models.Severities))
		}
		q.Filter.Severity = severity
	}
	priority, err := optionalIntQuery(c, "priority")
	if err != nil {
		return q, err
	}
	if priority != 0 && (priority < 1 || priority > 5) {
		return q, appErrors.Clone(appErrors.ErrValidation, "priority must be between 1 and 5")
	}
	q.Filter.Priority = priority
	if raw := c.Query("studentId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return q, appErrors.Clone(appErrors.ErrValidation, "studentId must be a positive integer")
		}
		q.Filter.StudentID = id
	}
	switch sort := strings.ToLower(c.Query("sort")); sort {
	case "":
	case "score":
		q.SortByScore = true
	default:
		return q, appErrors.Clone(appErrors.ErrValidation, "sort must be score")
	}
	return q, nil
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// Get godoc
// @Summary Get intervention case
// @Description Informer and responsible are flattened with their profile fields.
// @Tags Cases
// @Produce json
// @Security BearerAuth
// @Param id path int true "Case ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{id} [get]
func (h *InterventionHandler) Get(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	item, err := h.cases.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// ByStudent godoc
// @Summary List a student's cases
// @Tags Cases
// @Produce json
// @Security BearerAuth
// @Param studentId path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /cases/by-student/{studentId} [get]
func (h *InterventionHandler) ByStudent(c *gin.Context) {
	studentID, err := int64Param(c, "studentId")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.cases.ListByStudent(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Score godoc
// @Summary Urgency score of a case
// @Tags Cases
// @Produce json
// @Security BearerAuth
// @Param id path int true "Case ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{id}/score [get]
func (h *InterventionHandler) Score(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	score, err := h.cases.Score(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil)
}

// Create godoc
// @Summary Create intervention case
// @Tags Cases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateInterventionCommand true "Case payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /cases [post]
func (h *InterventionHandler) Create(c *gin.Context) {
	var cmd dto.CreateInterventionCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.cases.Create(c.Request.Context(), cmd)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update intervention case
// @Description Only keys present in the body are applied. An unresolvable informer, responsible or student leaves the current one in place.
// @Tags Cases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Case ID"
// @Param payload body dto.UpdateInterventionCommand true "Partial case payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{id} [put]
func (h *InterventionHandler) Update(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var cmd dto.UpdateInterventionCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.cases.Update(c.Request.Context(), id, cmd)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete intervention case
// @Description Removes the case with its comments. Admin only.
// @Tags Cases
// @Security BearerAuth
// @Param id path int true "Case ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /cases/{id} [delete]
func (h *InterventionHandler) Delete(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.cases.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
