package models

import "time"

// Audit actions recorded by the platform.
const (
	AuditActionLogin              = "LOGIN"
	AuditActionLogout             = "LOGOUT"
	AuditActionRegister           = "REGISTER"
	AuditActionPasswordChange     = "PASSWORD_CHANGE"
	AuditActionUserCreate         = "USER_CREATE"
	AuditActionUserDelete         = "USER_DELETE"
	AuditActionFormateurStatus    = "FORMATEUR_STATUS"
	AuditActionFormationDelete    = "FORMATION_DELETE"
	AuditActionFormationPublish   = "FORMATION_PUBLISH"
	AuditActionFormationWrite     = "FORMATION_WRITE"
	AuditActionContentWrite       = "CONTENT_WRITE"
	AuditActionEnrollmentApprove  = "ENROLLMENT_APPROVE"
	AuditActionEnrollmentReject   = "ENROLLMENT_REJECT"
	AuditActionCourseFinalize     = "COURSE_FINALIZE"
	AuditActionInvoiceIssued      = "INVOICE_ISSUED"
	AuditActionInvoiceDownloadURL = "INVOICE_DOWNLOAD_URL"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter scopes audit log listings.
type AuditFilter struct {
	UserID   string
	Action   string
	Resource string
	Page     int
	PageSize int
}
