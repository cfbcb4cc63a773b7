package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/pkg/database"
)

const formationColumns = `f.id, f.title, f.description, f.price, f.type, f.published, f.formateur_id, f.location, f.start_date, f.end_date, f.created_at, f.updated_at`

// FormationRepository persists formations.
type FormationRepository struct {
	db *sqlx.DB
}

// NewFormationRepository constructs the repository.
func NewFormationRepository(db *sqlx.DB) *FormationRepository {
	return &FormationRepository{db: db}
}

// Create inserts a formation.
func (r *FormationRepository) Create(ctx context.Context, formation *models.Formation) error {
	if formation.ID == "" {
		formation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	formation.CreatedAt = now
	formation.UpdatedAt = now

	const query = `INSERT INTO formations (id, title, description, price, type, published, formateur_id, location, start_date, end_date, created_at, updated_at)
VALUES (:id, :title, :description, :price, :type, :published, :formateur_id, :location, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, formation); err != nil {
		return fmt.Errorf("create formation: %w", err)
	}
	return nil
}

// FindByID returns a formation by id.
func (r *FormationRepository) FindByID(ctx context.Context, id string) (*models.Formation, error) {
	return getOne[models.Formation](ctx, r.db, "find formation",
		`SELECT ` + formationColumns + ` FROM formations f WHERE f.id = $1`, id)
}

// FindDetail returns a formation with its owner name. Courses are loaded separately.
func (r *FormationRepository) FindDetail(ctx context.Context, id string) (*models.FormationDetail, error) {
	return getOne[models.FormationDetail](ctx, r.db, "find formation detail",
		`SELECT ` + formationColumns + `, u.name AS formateur_name FROM formations f JOIN users u ON u.id = f.formateur_id WHERE f.id = $1`, id)
}

// List returns formations matching the filter with total count.
func (r *FormationRepository) List(ctx context.Context, filter models.FormationFilter) ([]models.FormationDetail, int, error) {
	where := &whereBuilder{}
	if filter.FormateurID != "" {
		where.add("f.formateur_id = ?", filter.FormateurID)
	}
	if filter.Published != nil {
		where.add("f.published = ?", *filter.Published)
	}
	if filter.Type != "" {
		where.add("f.type = ?", filter.Type)
	}
	if filter.Search != "" {
		where.add("(LOWER(f.title) LIKE ? OR LOWER(f.description) LIKE ?)", "%"+strings.ToLower(filter.Search)+"%")
	}
	baseQuery := `FROM formations f JOIN users u ON u.id = f.formateur_id WHERE 1=1` + where.clause()

	sorts := map[string]string{
		"created_at": "f.created_at",
		"title":      "f.title",
		"price":      "f.price",
		"start_date": "f.start_date",
	}
	sortBy, ok := sorts[filter.SortBy]
	if !ok {
		sortBy = "f.created_at"
	}
	_, pageSize, offset := normalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf("SELECT %s, u.name AS formateur_name %s ORDER BY %s %s LIMIT %d OFFSET %d", formationColumns, baseQuery, sortBy, normalizeOrder(filter.SortOrder), pageSize, offset)
	var formations []models.FormationDetail
	if err := r.db.SelectContext(ctx, &formations, listQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list formations: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count formations: %w", err)
	}
	return formations, total, nil
}

// Update overwrites the editable fields of a formation.
func (r *FormationRepository) Update(ctx context.Context, formation *models.Formation) error {
	formation.UpdatedAt = time.Now().UTC()
	const query = `UPDATE formations SET title = :title, description = :description, price = :price, type = :type, location = :location, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id AND published = FALSE`
	res, err := r.db.NamedExecContext(ctx, query, formation)
	return affected("update formation", res, err)
}

// MarkPublished flips an unpublished formation to published when it has
// courses and every one of them is published. It returns sql.ErrNoRows when
// that no longer holds at write time.
func (r *FormationRepository) MarkPublished(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockFormation(ctx, tx, lockFormationForUpdate, id); err != nil {
			return err
		}
		const query = `UPDATE formations SET published = TRUE, updated_at = $2
WHERE id = $1 AND published = FALSE
  AND EXISTS (SELECT 1 FROM courses WHERE formation_id = $1)
  AND NOT EXISTS (SELECT 1 FROM courses WHERE formation_id = $1 AND published = FALSE)`
		return execOne(ctx, tx, "publish formation", query, id, time.Now().UTC())
	})
}

// Course writes share-lock their formation row and publishing takes it
// exclusively, so the two serialize.
const (
	lockFormationForUpdate = `SELECT id FROM formations WHERE id = $1 FOR UPDATE`
	lockFormationForShare  = `SELECT id FROM formations WHERE id = $1 FOR SHARE`
	lockCourseFormation    = `SELECT f.id FROM formations f JOIN courses c ON c.formation_id = f.id WHERE c.id = $1 FOR SHARE OF f`
)

func lockFormation(ctx context.Context, q sqlx.QueryerContext, query, id string) error {
	var locked string
	err := sqlx.GetContext(ctx, q, &locked, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return sql.ErrNoRows
	case err != nil:
		return fmt.Errorf("lock formation: %w", err)
	}
	return nil
}

// ListIDsByFormateur returns the ids of every formation owned by a formateur.
func (r *FormationRepository) ListIDsByFormateur(ctx context.Context, exec sqlx.ExtContext, formateurID string) ([]string, error) {
	const query = `SELECT id FROM formations WHERE formateur_id = $1`
	var ids []string
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &ids, query, formateurID); err != nil {
		return nil, fmt.Errorf("list formation ids: %w", err)
	}
	return ids, nil
}
