package credentials

import "time"

type Credential struct {
	ID           string
	SubjectID    string
	PasswordHash string
	HashVersion  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StaffSignup carries the fields an operator provides when registering
// clinical staff. The biometric reference is enrolled separately through
// the matcher.
type StaffSignup struct {
	Name          string
	Email         string
	LicenseNumber string
	Department    string
	Password      string
}
