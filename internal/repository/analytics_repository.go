package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/formation-lms-api/internal/models"
)

// AnalyticsRepository exposes read-only aggregations for dashboards.
// Methods taking formateurID scope to that formateur's formations when it is non-empty.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// UsersByRole counts users per role.
func (r *AnalyticsRepository) UsersByRole(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT role AS key, COUNT(*) AS count FROM users GROUP BY role`
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	return rows, nil
}

// PendingFormateurs counts formateurs awaiting review.
func (r *AnalyticsRepository) PendingFormateurs(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE role = 'FORMATEUR' AND formateur_status = 'PENDING'`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count pending formateurs: %w", err)
	}
	return count, nil
}

// FormationCounts returns the total and published formation counts.
func (r *AnalyticsRepository) FormationCounts(ctx context.Context, formateurID string) (total int, published int, err error) {
	query := `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE published) AS published FROM formations`
	var args []interface{}
	if formateurID != "" {
		query += ` WHERE formateur_id = $1`
		args = append(args, formateurID)
	}
	var row struct {
		Total     int `db:"total"`
		Published int `db:"published"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return 0, 0, fmt.Errorf("count formations: %w", err)
	}
	return row.Total, row.Published, nil
}

// EnrollmentsByStatus counts enrollments per status.
func (r *AnalyticsRepository) EnrollmentsByStatus(ctx context.Context, formateurID string) ([]models.StatusCount, error) {
	query := `SELECT e.status AS key, COUNT(*) AS count FROM enrollments e`
	var args []interface{}
	if formateurID != "" {
		query += ` JOIN formations f ON f.id = e.formation_id WHERE f.formateur_id = $1`
		args = append(args, formateurID)
	}
	query += ` GROUP BY e.status`
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count enrollments by status: %w", err)
	}
	return rows, nil
}

// TotalRevenue sums invoice amounts.
func (r *AnalyticsRepository) TotalRevenue(ctx context.Context, formateurID string) (float64, error) {
	query := `SELECT COALESCE(SUM(i.amount), 0) FROM invoices i`
	var args []interface{}
	if formateurID != "" {
		query += ` JOIN enrollments e ON e.id = i.enrollment_id JOIN formations f ON f.id = e.formation_id WHERE f.formateur_id = $1`
		args = append(args, formateurID)
	}
	var total float64
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("sum revenue: %w", err)
	}
	return total, nil
}

// PassedFormationResults counts completed formations.
func (r *AnalyticsRepository) PassedFormationResults(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM formation_results WHERE passed = TRUE`); err != nil {
		return 0, fmt.Errorf("count passed formation results: %w", err)
	}
	return count, nil
}

// InvoicesBetween returns invoice amounts issued in [from, to).
func (r *AnalyticsRepository) InvoicesBetween(ctx context.Context, from, to time.Time) ([]models.InvoiceAmount, error) {
	const query = `SELECT amount, issued_at FROM invoices WHERE issued_at >= $1 AND issued_at < $2`
	var rows []models.InvoiceAmount
	if err := r.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("list invoices for revenue: %w", err)
	}
	return rows, nil
}

// TopFormations ranks formations by approved enrollments then revenue.
func (r *AnalyticsRepository) TopFormations(ctx context.Context, limit int) ([]models.TopFormation, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	const query = `SELECT f.id AS formation_id, f.title, u.name AS formateur_name,
    COUNT(e.id) FILTER (WHERE e.status = 'APPROVED') AS approved_enrollments,
    COALESCE(SUM(i.amount), 0) AS revenue
FROM formations f
JOIN users u ON u.id = f.formateur_id
LEFT JOIN enrollments e ON e.formation_id = f.id
LEFT JOIN invoices i ON i.enrollment_id = e.id
GROUP BY f.id, f.title, u.name
ORDER BY approved_enrollments DESC, revenue DESC, f.title ASC
LIMIT $1`
	rows := []models.TopFormation{}
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("top formations: %w", err)
	}
	return rows, nil
}
