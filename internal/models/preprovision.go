package models

import "time"

// PreProvisionStatus tracks an imported record through verification and linking.
type PreProvisionStatus string

const (
	PreProvisionImported            PreProvisionStatus = "IMPORTED"
	PreProvisionPendingVerification PreProvisionStatus = "PENDING_VERIFICATION"
	PreProvisionVerified            PreProvisionStatus = "VERIFIED"
	PreProvisionLinked              PreProvisionStatus = "LINKED"
	PreProvisionExpired             PreProvisionStatus = "EXPIRED"
)

// PreProvisionedUser is a university record waiting to be claimed by an identity.
type PreProvisionedUser struct {
	UniversityID        string             `json:"university_id"`
	Email               string             `json:"email"`
	Name                string             `json:"name"`
	Role                Role               `json:"role"`
	Department          *string            `json:"department,omitempty"`
	YearOfStudy         *uint32            `json:"year_of_study,omitempty"`
	CourseCodes         []string           `json:"course_codes"`
	CreatedAt           time.Time          `json:"created_at"`
	LinkedIdentity      *string            `json:"linked_identity,omitempty"`
	IsVerified          bool               `json:"is_verified"`
	VerificationHash    []byte             `json:"-" cbor:"verification_hash,omitempty"`
	VerificationExpires *time.Time         `json:"verification_expires,omitempty"`
	Status              PreProvisionStatus `json:"status"`
}

// UniversityImportRecord is one row of a university roster import.
type UniversityImportRecord struct {
	UniversityID string  `json:"university_id"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	Department   *string `json:"department,omitempty"`
	YearOfStudy  *uint32 `json:"year_of_study,omitempty"`
	CourseCodes  string  `json:"course_codes"`
}

// ImportStats reports the outcome of a roster import.
type ImportStats struct {
	TotalImported    int       `json:"total_imported"`
	StudentsImported int       `json:"students_imported"`
	StaffImported    int       `json:"staff_imported"`
	Errors           []string  `json:"errors"`
	Timestamp        time.Time `json:"timestamp"`
}

// PreProvisionStatistics counts records by progress.
type PreProvisionStatistics struct {
	Total    int `json:"total"`
	Students int `json:"students"`
	Staff    int `json:"staff"`
	Verified int `json:"verified"`
	Linked   int `json:"linked"`
}

// VerificationTicket is returned once when a verification code is issued.
type VerificationTicket struct {
	UniversityID string    `json:"university_id"`
	Email        string    `json:"email"`
	Code         string    `json:"code"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// LinkingStatus reports where a university record is in the linking flow.
type LinkingStatus struct {
	UniversityID string             `json:"university_id"`
	Status       PreProvisionStatus `json:"status"`
	IsVerified   bool               `json:"is_verified"`
}

// UniversityIDStatus is the public answer to a university id lookup.
type UniversityIDStatus struct {
	UniversityID string             `json:"university_id"`
	Status       PreProvisionStatus `json:"status"`
	Message      string             `json:"message"`
}
