package models

// UserRole is the coarse role carried in access tokens.
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleStaff UserRole = "staff"
	RoleUser  UserRole = "user"
)

// Student is the learner a case is about. Owned by the student records
// service; read here by id only.
type Student struct {
	ID           int64   `db:"id" json:"id"`
	FirstName    string  `db:"first_name" json:"firstName"`
	LastName     string  `db:"last_name" json:"lastName"`
	RUT          string  `db:"rut" json:"rut"`
	Email        *string `db:"email" json:"email,omitempty"`
	Grade        string  `db:"grade" json:"grade"`
	AcademicYear int     `db:"academic_year" json:"academicYear"`
	IsActive     bool    `db:"is_active" json:"isActive"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// Staff is a user account acting as informer, responsible or comment author.
type Staff struct {
	ID        int64    `db:"id" json:"id"`
	Email     string   `db:"email" json:"email"`
	Role      UserRole `db:"role" json:"role"`
	StaffType *string  `db:"staff_type" json:"staffType,omitempty"`
	IsActive  bool     `db:"is_active" json:"isActive"`
	Profile   *Profile `db:"-" json:"profile,omitempty"`
}

// Profile holds the personal details linked to a staff account.
type Profile struct {
	ID         int64   `db:"id" json:"id"`
	FirstName  string  `db:"first_name" json:"firstName"`
	LastName   string  `db:"last_name" json:"lastName"`
	Position   *string `db:"position" json:"position,omitempty"`
	Department *string `db:"department" json:"department,omitempty"`
}
