package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-intervention-api/internal/models"
)

var interventionColumns = []string{
	"i.id", "i.title", "i.type", "i.status", "i.priority", "i.scope", "i.severity",
	"i.date_reported", "i.date_resolved", "i.follow_up_date", "i.description", "i.actions_taken",
	"i.outcome_evaluation", "i.parent_feedback", "i.requires_external_referral", "i.external_referral_details",
	"i.progress_percentage", "i.requires_follow_up", "i.tags", "i.outcome",
	"i.student_id", "i.informer_id", "i.responsible_id", "i.created_at", "i.updated_at",
}

// InterventionRepository persists intervention cases and their involved staff.
type InterventionRepository struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

// NewInterventionRepository constructs an InterventionRepository.
func NewInterventionRepository(db *sqlx.DB) *InterventionRepository {
	return &InterventionRepository{db: db, qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// List returns cases matching filter, most recently reported first.
func (r *InterventionRepository) List(ctx context.Context, filter models.InterventionFilter) ([]models.Intervention, error) {
	query := r.qb.Select(interventionColumns...).From("interventions i")
	if filter.Status != "" {
		query = query.Where(sq.Eq{"i.status": filter.Status})
	}
	if filter.Type != "" {
		query = query.Where(sq.Eq{"i.type": filter.Type})
	}
	if filter.Priority > 0 {
		query = query.Where(sq.Eq{"i.priority": filter.Priority})
	}
	if filter.Severity != "" {
		query = query.Where(sq.Eq{"i.severity": filter.Severity})
	}
	if filter.StudentID > 0 {
		query = query.Where(sq.Eq{"i.student_id": filter.StudentID})
	}
	query = query.OrderBy("i.date_reported DESC", "i.id DESC")

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list interventions: %w", err)
	}

	items := []models.Intervention{}
	if err := r.db.SelectContext(ctx, &items, stmt, args...); err != nil {
		return nil, fmt.Errorf("list interventions: %w", err)
	}
	return items, nil
}

// FindByID returns sql.ErrNoRows when the case does not exist.
func (r *InterventionRepository) FindByID(ctx context.Context, id int64) (*models.Intervention, error) {
	stmt, args, err := r.qb.Select(interventionColumns...).From("interventions i").Where(sq.Eq{"i.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find intervention: %w", err)
	}
	var item models.Intervention
	if err := r.db.GetContext(ctx, &item, stmt, args...); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create inserts the case and its involved staff in one transaction and fills
// in the generated id and timestamps.
func (r *InterventionRepository) Create(ctx context.Context, item *models.Intervention, involvedStaffIDs []int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create intervention: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO interventions (title, type, status, priority, scope, severity, date_reported, date_resolved,
        follow_up_date, description, actions_taken, outcome_evaluation, parent_feedback, requires_external_referral,
        external_referral_details, progress_percentage, requires_follow_up, tags, outcome, student_id, informer_id,
        responsible_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $23)
        RETURNING id, created_at, updated_at`
	row := tx.QueryRowxContext(ctx, query,
		item.Title, item.Type, item.Status, item.Priority, item.Scope, item.Severity, item.DateReported, item.DateResolved,
		item.FollowUpDate, item.Description, item.ActionsTaken, item.OutcomeEvaluation, item.ParentFeedback, item.RequiresExternalReferral,
		item.ExternalReferralDetails, item.ProgressPercentage, item.RequiresFollowUp, item.Tags, item.Outcome, item.StudentID, item.InformerID,
		item.ResponsibleID, now,
	)
	if err = row.Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return fmt.Errorf("create intervention: %w", err)
	}

	if err = replaceInvolvedStaff(ctx, tx, item.ID, involvedStaffIDs, false); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create intervention: %w", err)
	}
	return nil
}

// UpdateFields writes only the given columns and refreshes updated_at, so
// concurrent updates touching disjoint columns do not clobber each other.
// A nil involvedStaffIDs leaves the involved staff untouched. Returns
// sql.ErrNoRows when the case does not exist.
func (r *InterventionRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}, involvedStaffIDs []int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update intervention: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, args, err := r.qb.Update("interventions").
		SetMap(fields).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update intervention: %w", err)
	}
	res, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update intervention: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update intervention rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if involvedStaffIDs != nil {
		if err = replaceInvolvedStaff(ctx, tx, id, involvedStaffIDs, true); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update intervention: %w", err)
	}
	return nil
}

// Delete removes the case together with its comments and involved staff.
// It reports false when no case had that id.
func (r *InterventionRepository) Delete(ctx context.Context, id int64) (deleted bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete intervention: %w", err)
	}
	defer func() {
		if err != nil || !deleted {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM intervention_comments WHERE intervention_id = $1`, id); err != nil {
		return false, fmt.Errorf("delete intervention comments: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM intervention_involved_staff WHERE intervention_id = $1`, id); err != nil {
		return false, fmt.Errorf("delete involved staff: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM interventions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete intervention: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete intervention rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete intervention: %w", err)
	}
	return true, nil
}

// InvolvedStaffIDs maps each case id to its involved staff ids.
func (r *InterventionRepository) InvolvedStaffIDs(ctx context.Context, caseIDs []int64) (map[int64][]int64, error) {
	result := make(map[int64][]int64, len(caseIDs))
	if len(caseIDs) == 0 {
		return result, nil
	}
	var rows []struct {
		InterventionID int64 `db:"intervention_id"`
		StaffID        int64 `db:"staff_id"`
	}
	const query = `SELECT intervention_id, staff_id FROM intervention_involved_staff WHERE intervention_id = ANY($1) ORDER BY intervention_id, staff_id`
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(caseIDs)); err != nil {
		return nil, fmt.Errorf("list involved staff: %w", err)
	}
	for _, row := range rows {
		result[row.InterventionID] = append(result[row.InterventionID], row.StaffID)
	}
	return result, nil
}

func replaceInvolvedStaff(ctx context.Context, tx *sqlx.Tx, caseID int64, staffIDs []int64, clear bool) error {
	if clear {
		if _, err := tx.ExecContext(ctx, `DELETE FROM intervention_involved_staff WHERE intervention_id = $1`, caseID); err != nil {
			return fmt.Errorf("clear involved staff: %w", err)
		}
	}
	if len(staffIDs) == 0 {
		return nil
	}
	const query = `INSERT INTO intervention_involved_staff (intervention_id, staff_id)
        SELECT $1, UNNEST($2::bigint[]) ON CONFLICT DO NOTHING`
	if _, err := tx.ExecContext(ctx, query, caseID, pq.Array(staffIDs)); err != nil {
		return fmt.Errorf("insert involved staff: %w", err)
	}
	return nil
}
