package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/sma-intervention-api/internal/models"
)

// CreateInterventionCommand is the typed body of POST /cases.
type CreateInterventionCommand struct {
	StudentID     *FlexInt `json:"studentId" validate:"required,min=1"`
	InformerID    *FlexInt `json:"informerId" validate:"required,min=1"`
	ResponsibleID *FlexInt `json:"responsibleId" validate:"required,min=1"`

	Title                    *string                   `json:"title"`
	Type                     models.InterventionType   `json:"type" validate:"omitempty,case_type"`
	Status                   models.InterventionStatus `json:"status" validate:"omitempty,case_status"`
	Priority                 *FlexInt                  `json:"priority" validate:"required,min=1,max=5"`
	Scope                    models.InterventionScope  `json:"scope" validate:"omitempty,case_scope"`
	Severity                 models.Severity           `json:"severity" validate:"omitempty,case_severity"`
	DateReported             *models.Date              `json:"dateReported" validate:"required"`
	DateResolved             *models.Date              `json:"dateResolved"`
	FollowUpDate             *models.Date              `json:"followUpDate"`
	Description              string                    `json:"description" validate:"required"`
	ActionsTaken             []string                  `json:"actionsTaken"`
	OutcomeEvaluation        *string                   `json:"outcomeEvaluation"`
	ParentFeedback           *string                   `json:"parentFeedback"`
	RequiresExternalReferral *FlexBool                 `json:"requiresExternalReferral"`
	ExternalReferralDetails  *string                   `json:"externalReferralDetails"`
	ProgressPercentage       *float64                  `json:"progressPercentage" validate:"omitempty,min=0,max=100"`
	RequiresFollowUp         *FlexBool                 `json:"requiresFollowUp"`
	Tags                     []string                  `json:"tags"`
	Outcome                  *string                   `json:"outcome"`
	InvolvedStaffIDs         []int64                   `json:"involvedStaffIds" validate:"omitempty,dive,min=1"`
}

// UpdateInterventionCommand is the typed body of PUT /cases/:id. Only keys
// present in the payload are applied.
type UpdateInterventionCommand struct {
	StudentID     Optional[FlexInt] `json:"studentId"`
	InformerID    Optional[FlexInt] `json:"informerId"`
	ResponsibleID Optional[FlexInt] `json:"responsibleId"`

	Title                    Optional[string]                    `json:"title"`
	Type                     Optional[models.InterventionType]   `json:"type"`
	Status                   Optional[models.InterventionStatus] `json:"status"`
	Priority                 Optional[FlexInt]                   `json:"priority"`
	Scope                    Optional[models.InterventionScope]  `json:"scope"`
	Severity                 Optional[models.Severity]           `json:"severity"`
	DateReported             Optional[models.Date]               `json:"dateReported"`
	DateResolved             Optional[models.Date]               `json:"dateResolved"`
	FollowUpDate             Optional[models.Date]               `json:"followUpDate"`
	Description              Optional[string]                    `json:"description"`
	ActionsTaken             Optional[[]string]                  `json:"actionsTaken"`
	OutcomeEvaluation        Optional[string]                    `json:"outcomeEvaluation"`
	ParentFeedback           Optional[string]                    `json:"parentFeedback"`
	RequiresExternalReferral Optional[FlexBool]                  `json:"requiresExternalReferral"`
	ExternalReferralDetails  Optional[string]                    `json:"externalReferralDetails"`
	ProgressPercentage       Optional[float64]                   `json:"progressPercentage"`
	RequiresFollowUp         Optional[FlexBool]                  `json:"requiresFollowUp"`
	Tags                     Optional[[]string]                  `json:"tags"`
	Outcome                  Optional[string]                    `json:"outcome"`
	InvolvedStaffIDs         Optional[[]int64]                   `json:"involvedStaffIds"`
}

// caseKeyAliases maps legacy client keys to their canonical names. The
// canonical key wins when a payload carries both.
var caseKeyAliases = map[string]string{
	"student":           "studentId",
	"informer":          "informerId",
	"responsible":       "responsibleId",
	"interventionScope": "scope",
}

func normalizeCaseKeys(data []byte) ([]byte, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	changed := false
	for alias, key := range caseKeyAliases {
		value, ok := raw[alias]
		if !ok {
			continue
		}
		delete(raw, alias)
		changed = true
		if _, exists := raw[key]; !exists {
			raw[key] = value
		}
	}
	if !changed {
		return data, nil
	}
	return json.Marshal(raw)
}

// UnmarshalJSON accepts the legacy relation and scope keys.
func (c *CreateInterventionCommand) UnmarshalJSON(data []byte) error {
	normalized, err := normalizeCaseKeys(data)
	if err != nil {
		return err
	}
	type plain CreateInterventionCommand
	return json.Unmarshal(normalized, (*plain)(c))
}

// UnmarshalJSON accepts the legacy relation and scope keys.
func (c *UpdateInterventionCommand) UnmarshalJSON(data []byte) error {
	normalized, err := normalizeCaseKeys(data)
	if err != nil {
		return err
	}
	type plain UpdateInterventionCommand
	return json.Unmarshal(normalized, (*plain)(c))
}

// CaseListQuery mirrors the GET /cases query string.
type CaseListQuery struct {
	Filter      models.InterventionFilter
	SortByScore bool
}

// StaffSummary is the flattened informer/responsible projection returned by
// GET /cases/:id. Profile fields are omitted when no profile is linked.
type StaffSummary struct {
	ID         int64           `json:"id"`
	Email      string          `json:"email"`
	Role       models.UserRole `json:"role"`
	StaffType  *string         `json:"staffType,omitempty"`
	FirstName  *string         `json:"firstName,omitempty"`
	LastName   *string         `json:"lastName,omitempty"`
	Position   *string         `json:"position,omitempty"`
	Department *string         `json:"department,omitempty"`
}

// NewStaffSummary flattens a staff record and its optional profile.
func NewStaffSummary(s *models.Staff) *StaffSummary {
	if s == nil {
		return nil
	}
	summary := &StaffSummary{ID: s.ID, Email: s.Email, Role: s.Role, StaffType: s.StaffType}
	if p := s.Profile; p != nil {
		first, last := p.FirstName, p.LastName
		summary.FirstName = &first
		summary.LastName = &last
		summary.Position = p.Position
		summary.Department = p.Department
	}
	return summary
}

// InterventionDetail is a case with flattened informer and responsible.
type InterventionDetail struct {
	models.Intervention
	Informer    *StaffSummary `json:"informer,omitempty"`
	Responsible *StaffSummary `json:"responsible,omitempty"`
}

// NewInterventionDetail projects a fully loaded case.
func NewInterventionDetail(in models.Intervention) InterventionDetail {
	return InterventionDetail{
		Intervention: in,
		Informer:     NewStaffSummary(in.Informer),
		Responsible:  NewStaffSummary(in.Responsible),
	}
}

// ScoreResponse is returned by GET /cases/:id/score.
type ScoreResponse struct {
	CaseID     int64                 `json:"caseId"`
	Score      int                   `json:"score"`
	Breakdown  models.ScoreBreakdown `json:"breakdown"`
	ComputedAt time.Time             `json:"computedAt"`
}

// ScoredIntervention pairs a case with its urgency score for sorted listings.
type ScoredIntervention struct {
	models.Intervention
	Score int `json:"score"`
}
