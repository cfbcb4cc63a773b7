package models

import "time"

// Invoice bills an approved enrollment. PDFURL is empty until rendering completes.
type Invoice struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	Number       string    `db:"number" json:"number"`
	Amount       float64   `db:"amount" json:"amount"`
	PDFURL       *string   `db:"pdf_url" json:"pdf_url,omitempty"`
	IssuedAt     time.Time `db:"issued_at" json:"issued_at"`
}

// InvoiceDetail joins the invoice with the parties it concerns.
type InvoiceDetail struct {
	Invoice
	StudentID      string        `db:"student_id" json:"student_id"`
	StudentName    string        `db:"student_name" json:"student_name"`
	StudentEmail   string        `db:"student_email" json:"student_email"`
	FormationID    string        `db:"formation_id" json:"formation_id"`
	FormationTitle string        `db:"formation_title" json:"formation_title"`
	FormationType  FormationType `db:"formation_type" json:"formation_type"`
	FormateurID    string        `db:"formateur_id" json:"formateur_id"`
	FormateurName  string        `db:"formateur_name" json:"formateur_name"`
}

// InvoiceDownload is a short-lived signed link to an invoice document.
type InvoiceDownload struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
