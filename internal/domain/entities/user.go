package entities

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of account roles
type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole maps a role claim to a Role, case-insensitively
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RolePatient:
		return RolePatient, nil
	case RoleDoctor:
		return RoleDoctor, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// ProfileKind is the profile type an identity acts through
type ProfileKind int

const (
	ProfileKindPatient ProfileKind = iota
	ProfileKindDoctor
)

func (k ProfileKind) String() string {
	switch k {
	case ProfileKindDoctor:
		return "doctor"
	case ProfileKindPatient:
		return "patient"
	default:
		return "unknown"
	}
}

// Identity is the authenticated caller, passed explicitly into every operation
type Identity struct {
	UserID int64
	Email  string
	Roles  []Role
}

// HasRole reports whether the identity carries role r
func (i Identity) HasRole(r Role) bool {
	for _, role := range i.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// IsAuthenticated reports whether the identity refers to an account
func (i Identity) IsAuthenticated() bool {
	return i.UserID > 0
}

// ProfileKind resolves which profile the identity lists appointments through:
// doctors act as doctors, everyone else as patients.
func (i Identity) ProfileKind() ProfileKind {
	if i.HasRole(RoleDoctor) {
		return ProfileKindDoctor
	}
	return ProfileKindPatient
}

// Doctor is a read-only doctor profile owned by the person directory
type Doctor struct {
	ID             int64     `json:"id" db:"id"`
	UserID         int64     `json:"user_id" db:"user_id"`
	FirstName      string    `json:"first_name" db:"first_name"`
	LastName       string    `json:"last_name" db:"last_name"`
	Email          string    `json:"email" db:"email"`
	Specialization string    `json:"specialization,omitempty" db:"specialization"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// FullName returns the doctor's display name
func (d *Doctor) FullName() string {
	return joinName(d.FirstName, d.LastName)
}

// Patient is a read-only patient profile owned by the person directory
type Patient struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FullName returns the patient's display name
func (p *Patient) FullName() string {
	return joinName(p.FirstName, p.LastName)
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
