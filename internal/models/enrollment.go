package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment request.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentPending  EnrollmentStatus = "PENDING"
	EnrollmentApproved EnrollmentStatus = "APPROVED"
	EnrollmentRejected EnrollmentStatus = "REJECTED"
)

// Enrollment captures a student's request to join a formation.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	FormationID string           `db:"formation_id" json:"formation_id"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	DecidedBy   *string          `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt   *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// EnrollmentDetail enriches Enrollment with student and formation info.
type EnrollmentDetail struct {
	Enrollment
	StudentName    string  `db:"student_name" json:"student_name"`
	StudentEmail   string  `db:"student_email" json:"student_email"`
	FormationTitle string  `db:"formation_title" json:"formation_title"`
	FormationPrice float64 `db:"formation_price" json:"formation_price"`
	FormateurID    string  `db:"formateur_id" json:"formateur_id"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID   string
	FormationID string
	FormateurID string
	Status      EnrollmentStatus
	Page        int
	PageSize    int
	SortOrder   string
}

// EnrollmentDecision is returned after approving or rejecting an enrollment.
type EnrollmentDecision struct {
	Enrollment Enrollment `json:"enrollment"`
	Invoice    *Invoice   `json:"invoice,omitempty"`
}
