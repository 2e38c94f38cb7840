package auth

import "time"

// Role determines which factor chain a session must pass:
// staff go through the biometric gate, patients through TOTP.
type Role string

const (
	RoleStaff   Role = "staff"
	RolePatient Role = "patient"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStaff || r == RolePatient
}

// Subject is an enrolled person the orchestrator can authenticate.
// It contains facts only, no decisions.
type Subject struct {
	ID            string
	Role          Role
	Name          string
	Email         string
	LicenseNumber string // staff only
	Department    string // staff only
	CreatedAt     time.Time
}
