package service

import (
	"strings"

	"github.com/lib/pq"

	"github.com/noah-isme/sma-intervention-api/internal/dto"
	"github.com/noah-isme/sma-intervention-api/internal/models"
)

// RelationResolution is the outcome of looking up one relation id supplied
// on update. A relation is replaced only when it was requested and resolved;
// otherwise the stored relation is kept.
type RelationResolution struct {
	Requested bool
	ID        int64
	Resolved  bool
	Err       error
}

// Apply returns the id to store and whether the relation changes.
func (r RelationResolution) Apply() (int64, bool) {
	return r.ID, r.Requested && r.Resolved
}

// UpdateRelations groups the per-relation outcomes of one update.
type UpdateRelations struct {
	Student     RelationResolution
	Informer    RelationResolution
	Responsible RelationResolution
}

// MergeIntervention applies cmd onto current one field at a time. It returns
// the merged case and the columns to persist. Keys absent from cmd keep their
// stored value. Null on an optional field clears it. The command must have
// been validated.
func MergeIntervention(current models.Intervention, cmd dto.UpdateInterventionCommand, rel UpdateRelations) (models.Intervention, map[string]interface{}) {
	merged := current
	fields := make(map[string]interface{})

	if id, ok := rel.Student.Apply(); ok {
		merged.StudentID = id
		fields["student_id"] = id
	}
	if id, ok := rel.Informer.Apply(); ok {
		merged.InformerID = id
		fields["informer_id"] = id
	}
	if id, ok := rel.Responsible.Apply(); ok {
		merged.ResponsibleID = id
		fields["responsible_id"] = id
	}

	if cmd.Title.Set {
		merged.Title = optionalString(cmd.Title)
		fields["title"] = merged.Title
	}
	if cmd.Type.Present() {
		merged.Type = cmd.Type.Value
		fields["type"] = merged.Type
	}
	if cmd.Status.Present() {
		merged.Status = cmd.Status.Value
		fields["status"] = merged.Status
	}
	if cmd.Priority.Present() {
		merged.Priority = int(cmd.Priority.Value.Int64())
		fields["priority"] = merged.Priority
	}
	if cmd.Scope.Present() {
		merged.Scope = cmd.Scope.Value
		fields["scope"] = merged.Scope
	}
	if cmd.Severity.Present() {
		merged.Severity = cmd.Severity.Value
		fields["severity"] = merged.Severity
	}
	if cmd.DateReported.Present() {
		merged.DateReported = cmd.DateReported.Value
		fields["date_reported"] = merged.DateReported
	}
	if cmd.DateResolved.Set {
		merged.DateResolved = optionalDate(cmd.DateResolved)
		fields["date_resolved"] = merged.DateResolved
	}
	if cmd.FollowUpDate.Set {
		merged.FollowUpDate = optionalDate(cmd.FollowUpDate)
		fields["follow_up_date"] = merged.FollowUpDate
	}
	if cmd.Description.Present() {
		merged.Description = strings.TrimSpace(cmd.Description.Value)
		fields["description"] = merged.Description
	}
	if cmd.ActionsTaken.Set {
		merged.ActionsTaken = trimAll(cmd.ActionsTaken.Value)
		fields["actions_taken"] = merged.ActionsTaken
	}
	if cmd.OutcomeEvaluation.Set {
		merged.OutcomeEvaluation = optionalString(cmd.OutcomeEvaluation)
		fields["outcome_evaluation"] = merged.OutcomeEvaluation
	}
	if cmd.ParentFeedback.Set {
		merged.ParentFeedback = optionalString(cmd.ParentFeedback)
		fields["parent_feedback"] = merged.ParentFeedback
	}
	if cmd.RequiresExternalReferral.Present() {
		merged.RequiresExternalReferral = cmd.RequiresExternalReferral.Value.Bool()
		fields["requires_external_referral"] = merged.RequiresExternalReferral
	}
	if cmd.ExternalReferralDetails.Set {
		merged.ExternalReferralDetails = optionalString(cmd.ExternalReferralDetails)
		fields["external_referral_details"] = merged.ExternalReferralDetails
	}
	if cmd.ProgressPercentage.Present() {
		merged.ProgressPercentage = cmd.ProgressPercentage.Value
		fields["progress_percentage"] = merged.ProgressPercentage
	}
	if cmd.RequiresFollowUp.Present() {
		merged.RequiresFollowUp = cmd.RequiresFollowUp.Value.Bool()
		fields["requires_follow_up"] = merged.RequiresFollowUp
	}
	if cmd.Tags.Set {
		merged.Tags = trimAll(cmd.Tags.Value)
		fields["tags"] = merged.Tags
	}
	if cmd.Outcome.Set {
		merged.Outcome = optionalString(cmd.Outcome)
		fields["outcome"] = merged.Outcome
	}

	return merged, fields
}

func optionalString(o dto.Optional[string]) *string {
	if !o.Present() {
		return nil
	}
	v := o.Value
	return &v
}

func optionalDate(o dto.Optional[models.Date]) *models.Date {
	if !o.Present() || o.Value.IsZero() {
		return nil
	}
	v := o.Value
	return &v
}

// trimAll trims every entry and keeps the order. Nil input yields an empty
// array so the column is never NULL.
func trimAll(values []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
