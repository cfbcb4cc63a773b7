package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/formation-lms-api/internal/models"
)

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.formation_id, e.status, e.decided_by, e.decided_at, e.created_at,
    u.name AS student_name, u.email AS student_email,
    f.title AS formation_title, f.price AS formation_price, f.formateur_id
FROM enrollments e
JOIN users u ON u.id = e.student_id
JOIN formations f ON f.id = e.formation_id`

// EnrollmentRepository manages enrollment persistence.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create inserts a pending enrollment. A second request for the same pair yields ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentPending
	}
	const query = `INSERT INTO enrollments (id, student_id, formation_id, status, created_at) VALUES (:id, :student_id, :formation_id, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindByID returns an enrollment with student and formation details.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return getOne[models.EnrollmentDetail](ctx, r.db, "find enrollment",
		enrollmentDetailSelect + ` WHERE e.id = $1`, id)
}

// List returns enrollments matching the filter with total count.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	where := &whereBuilder{}
	if filter.StudentID != "" {
		where.add("e.student_id = ?", filter.StudentID)
	}
	if filter.FormationID != "" {
		where.add("e.formation_id = ?", filter.FormationID)
	}
	if filter.FormateurID != "" {
		where.add("f.formateur_id = ?", filter.FormateurID)
	}
	if filter.Status != "" {
		where.add("e.status = ?", filter.Status)
	}
	whereSQL := ` WHERE 1=1` + where.clause()
	_, pageSize, offset := normalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("%s%s ORDER BY e.created_at %s LIMIT %d OFFSET %d", enrollmentDetailSelect, whereSQL, normalizeOrder(filter.SortOrder), pageSize, offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, listQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM enrollments e JOIN formations f ON f.id = e.formation_id` + whereSQL
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// Decide moves a PENDING enrollment to status. It returns sql.ErrNoRows when the
// enrollment is missing or no longer pending.
func (r *EnrollmentRepository) Decide(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus, decidedBy string, at time.Time) error {
	const query = `UPDATE enrollments SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1 AND status = 'PENDING'`
	return execOne(ctx, pick(r.db, exec), "decide enrollment", query, id, status, decidedBy, at)
}

// HasApproved reports whether a student holds an approved enrollment in a formation.
func (r *EnrollmentRepository) HasApproved(ctx context.Context, studentID, formationID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND formation_id = $2 AND status = 'APPROVED')`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, studentID, formationID); err != nil {
		return false, fmt.Errorf("check approved enrollment: %w", err)
	}
	return ok, nil
}
