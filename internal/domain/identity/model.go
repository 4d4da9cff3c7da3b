package identity

import (
	"fmt"
	"time"
)

// Role is a closed user role. The wire form is the code table key
// (R1 patient, R2 doctor, R3 admin).
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

var roleCodes = map[Role]string{
	RolePatient: "R1",
	RoleDoctor:  "R2",
	RoleAdmin:   "R3",
}

// ParseRole accepts either a wire code (R1..R3) or a role name.
func ParseRole(s string) (Role, error) {
	switch s {
	case "R1", string(RolePatient):
		return RolePatient, nil
	case "R2", string(RoleDoctor):
		return RoleDoctor, nil
	case "R3", string(RoleAdmin):
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Code returns the wire code for the role.
func (r Role) Code() string { return roleCodes[r] }

func (r Role) Valid() bool { return roleCodes[r] != "" }

// User maps to the users table.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Role      Role      `db:"role_code" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
