package models

import (
	"time"

	"github.com/lib/pq"
)

// InterventionType classifies the concern behind a case.
type InterventionType string

const (
	InterventionTypeBehavioral InterventionType = "Behavioral"
	InterventionTypeAcademic   InterventionType = "Academic"
	InterventionTypeAttendance InterventionType = "Attendance"
	InterventionTypeHealth     InterventionType = "Health"
	InterventionTypeFamily     InterventionType = "Family"
	InterventionTypeOther      InterventionType = "Other"
)

// InterventionStatus is the lifecycle state. Any value may follow any other.
type InterventionStatus string

const (
	InterventionStatusPending    InterventionStatus = "Pending"
	InterventionStatusInProgress InterventionStatus = "InProgress"
	InterventionStatusResolved   InterventionStatus = "Resolved"
	InterventionStatusClosed     InterventionStatus = "Closed"
)

// InterventionScope tells whether a case concerns one student, a group or a family.
type InterventionScope string

const (
	InterventionScopeIndividual InterventionScope = "Individual"
	InterventionScopeGroup      InterventionScope = "Group"
	InterventionScopeFamily     InterventionScope = "Family"
)

// Severity feeds the urgency score. It is independent from Priority.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

const (
	MinPriority = 1
	MaxPriority = 5
)

// InterventionTypes lists the accepted type values.
var InterventionTypes = []InterventionType{
	InterventionTypeBehavioral, InterventionTypeAcademic, InterventionTypeAttendance,
	InterventionTypeHealth, InterventionTypeFamily, InterventionTypeOther,
}

// InterventionStatuses lists the accepted status values.
var InterventionStatuses = []InterventionStatus{
	InterventionStatusPending, InterventionStatusInProgress, InterventionStatusResolved, InterventionStatusClosed,
}

// InterventionScopes lists the accepted scope values.
var InterventionScopes = []InterventionScope{
	InterventionScopeIndividual, InterventionScopeGroup, InterventionScopeFamily,
}

// Severities lists the accepted severity values, least to most severe.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

func (t InterventionType) Valid() bool {
	for _, v := range InterventionTypes {
		if v == t {
			return true
		}
	}
	return false
}

func (s InterventionStatus) Valid() bool {
	for _, v := range InterventionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s InterventionScope) Valid() bool {
	for _, v := range InterventionScopes {
		if v == s {
			return true
		}
	}
	return false
}

func (s Severity) Valid() bool {
	for _, v := range Severities {
		if v == s {
			return true
		}
	}
	return false
}

// Intervention is a case tracking a concern about one student.
type Intervention struct {
	ID                       int64              `db:"id" json:"id"`
	Title                    *string            `db:"title" json:"title,omitempty"`
	Type                     InterventionType   `db:"type" json:"type"`
	Status                   InterventionStatus `db:"status" json:"status"`
	Priority                 int                `db:"priority" json:"priority"`
	Scope                    InterventionScope  `db:"scope" json:"scope"`
	Severity                 Severity           `db:"severity" json:"severity"`
	DateReported             Date               `db:"date_reported" json:"dateReported"`
	DateResolved             *Date              `db:"date_resolved" json:"dateResolved"`
	FollowUpDate             *Date              `db:"follow_up_date" json:"followUpDate"`
	Description              string             `db:"description" json:"description"`
	ActionsTaken             pq.StringArray     `db:"actions_taken" json:"actionsTaken"`
	OutcomeEvaluation        *string            `db:"outcome_evaluation" json:"outcomeEvaluation"`
	ParentFeedback           *string            `db:"parent_feedback" json:"parentFeedback"`
	RequiresExternalReferral bool               `db:"requires_external_referral" json:"requiresExternalReferral"`
	ExternalReferralDetails  *string            `db:"external_referral_details" json:"externalReferralDetails"`
	ProgressPercentage       float64            `db:"progress_percentage" json:"progressPercentage"`
	RequiresFollowUp         bool               `db:"requires_follow_up" json:"requiresFollowUp"`
	Tags                     pq.StringArray     `db:"tags" json:"tags"`
	Outcome                  *string            `db:"outcome" json:"outcome"`
	StudentID                int64              `db:"student_id" json:"studentId"`
	InformerID               int64              `db:"informer_id" json:"informerId"`
	ResponsibleID            int64              `db:"responsible_id" json:"responsibleId"`
	CreatedAt                time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt                time.Time          `db:"updated_at" json:"updatedAt"`

	Student       *Student  `db:"-" json:"student,omitempty"`
	Informer      *Staff    `db:"-" json:"informer,omitempty"`
	Responsible   *Staff    `db:"-" json:"responsible,omitempty"`
	InvolvedStaff []Staff   `db:"-" json:"involvedStaff,omitempty"`
	Comments      []Comment `db:"-" json:"comments,omitempty"`
}

// InterventionFilter narrows case listings. Zero values mean "any".
type InterventionFilter struct {
	Status    InterventionStatus `json:"status,omitempty"`
	Type      InterventionType   `json:"type,omitempty"`
	Priority  int                `json:"priority,omitempty"`
	StudentID int64              `json:"studentId,omitempty"`
	Severity  Severity           `json:"severity,omitempty"`
}

// Empty reports whether no filter is set.
func (f InterventionFilter) Empty() bool {
	return f == InterventionFilter{}
}
