package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-intervention-api/internal/models"
)

const (
	studentSelect = `SELECT id, first_name, last_name, rut, email, grade, academic_year, is_active FROM students`
	staffSelect   = `SELECT u.id, u.email, u.role, u.staff_type, u.is_active,
        p.id AS profile_id, p.first_name, p.last_name, p.position, p.department
        FROM users u
        LEFT JOIN profiles p ON p.id = u.profile_id`
)

type staffRow struct {
	models.Staff
	ProfileID  sql.NullInt64  `db:"profile_id"`
	FirstName  sql.NullString `db:"first_name"`
	LastName   sql.NullString `db:"last_name"`
	Position   sql.NullString `db:"position"`
	Department sql.NullString `db:"department"`
}

func (r staffRow) toModel() models.Staff {
	staff := r.Staff
	if !r.ProfileID.Valid {
		return staff
	}
	staff.Profile = &models.Profile{
		ID:         r.ProfileID.Int64,
		FirstName:  r.FirstName.String,
		LastName:   r.LastName.String,
		Position:   nullableString(r.Position),
		Department: nullableString(r.Department),
	}
	return staff
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// IdentityRepository reads students and staff accounts owned by other
// services. It never writes.
type IdentityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository constructs an IdentityRepository.
func NewIdentityRepository(db *sqlx.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// FindStudentByID returns sql.ErrNoRows when absent.
func (r *IdentityRepository) FindStudentByID(ctx context.Context, id int64) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, studentSelect+` WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindStaffByID returns the staff account with its profile, or sql.ErrNoRows.
func (r *IdentityRepository) FindStaffByID(ctx context.Context, id int64) (*models.Staff, error) {
	var row staffRow
	if err := r.db.GetContext(ctx, &row, staffSelect+` WHERE u.id = $1`, id); err != nil {
		return nil, err
	}
	staff := row.toModel()
	return &staff, nil
}

// StudentsByIDs loads the given students keyed by id. Missing ids are absent
// from the map.
func (r *IdentityRepository) StudentsByIDs(ctx context.Context, ids []int64) (map[int64]models.Student, error) {
	result := make(map[int64]models.Student, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, studentSelect+` WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list students by id: %w", err)
	}
	for _, s := range students {
		result[s.ID] = s
	}
	return result, nil
}

// StaffByIDs loads the given staff accounts with profiles keyed by id.
func (r *IdentityRepository) StaffByIDs(ctx context.Context, ids []int64) (map[int64]models.Staff, error) {
	result := make(map[int64]models.Staff, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var rows []staffRow
	if err := r.db.SelectContext(ctx, &rows, staffSelect+` WHERE u.id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list staff by id: %w", err)
	}
	for _, row := range rows {
		staff := row.toModel()
		result[staff.ID] = staff
	}
	return result, nil
}
