package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/formation-lms-api/internal/models"
)

const invoiceDetailSelect = `SELECT i.id, i.enrollment_id, i.number, i.amount, i.pdf_url, i.issued_at,
    e.student_id, s.name AS student_name, s.email AS student_email,
    f.id AS formation_id, f.title AS formation_title, f.type AS formation_type,
    f.formateur_id, t.name AS formateur_name
FROM invoices i
JOIN enrollments e ON e.id = i.enrollment_id
JOIN users s ON s.id = e.student_id
JOIN formations f ON f.id = e.formation_id
JOIN users t ON t.id = f.formateur_id`

// InvoiceRepository persists invoices.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs the repository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create inserts an invoice using exec, typically the approval transaction.
func (r *InvoiceRepository) Create(ctx context.Context, exec sqlx.ExtContext, invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	if invoice.IssuedAt.IsZero() {
		invoice.IssuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO invoices (id, enrollment_id, number, amount, pdf_url, issued_at) VALUES (:id, :enrollment_id, :number, :amount, :pdf_url, :issued_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, invoice); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// FindByID returns an invoice with its parties.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	return getOne[models.InvoiceDetail](ctx, r.db, "find invoice",
		invoiceDetailSelect + ` WHERE i.id = $1`, id)
}

// ListByStudent returns a page of a student's invoices, newest first.
func (r *InvoiceRepository) ListByStudent(ctx context.Context, studentID string, page, pageSize int) ([]models.InvoiceDetail, int, error) {
	_, size, offset := normalizePage(page, pageSize)
	query := fmt.Sprintf("%s WHERE e.student_id = $1 ORDER BY i.issued_at DESC LIMIT %d OFFSET %d", invoiceDetailSelect, size, offset)
	var invoices []models.InvoiceDetail
	if err := r.db.SelectContext(ctx, &invoices, query, studentID); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	const countQuery = `SELECT COUNT(*) FROM invoices i JOIN enrollments e ON e.id = i.enrollment_id WHERE e.student_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, studentID); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

// UpdatePDF records the public URL of the rendered document.
func (r *InvoiceRepository) UpdatePDF(ctx context.Context, id, url string) error {
	return execOne(ctx, r.db, "update invoice pdf", `UPDATE invoices SET pdf_url = $2 WHERE id = $1`, id, url)
}
