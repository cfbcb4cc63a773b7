package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/pkg/database"
)

const courseColumns = `id, formation_id, title, published, created_at, updated_at`

// CourseContentCount tallies what a course contains.
type CourseContentCount struct {
	Lessons int `db:"lessons"`
	Quizzes int `db:"quizzes"`
}

// CourseRepository persists courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a course into an unpublished formation. It returns
// sql.ErrNoRows when the formation is missing or already published.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, formation_id, title, published, created_at, updated_at)
SELECT :id, :formation_id, :title, :published, :created_at, :updated_at
WHERE EXISTS (SELECT 1 FROM formations WHERE id = :formation_id AND published = FALSE)`
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockFormation(ctx, tx, lockFormationForShare, course.FormationID); err != nil {
			return err
		}
		res, err := tx.NamedExecContext(ctx, query, course)
		return affected("create course", res, err)
	})
}

// FindByID returns a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return getOne[models.Course](ctx, r.db, "find course",
		`SELECT ` + courseColumns + ` FROM courses WHERE id = $1`, id)
}

// ListByFormation returns the courses of a formation in creation order.
func (r *CourseRepository) ListByFormation(ctx context.Context, exec sqlx.ExtContext, formationID string, publishedOnly bool) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE formation_id = $1`
	if publishedOnly {
		query += ` AND published = TRUE`
	}
	query += ` ORDER BY created_at ASC`
	var courses []models.Course
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &courses, query, formationID); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// UpdateTitle renames an unpublished course.
func (r *CourseRepository) UpdateTitle(ctx context.Context, id, title string) error {
	const query = `UPDATE courses SET title = $2, updated_at = $3 WHERE id = $1 AND published = FALSE`
	return execOne(ctx, r.db, "update course", query, id, title, time.Now().UTC())
}

// SetPublished changes the published flag of a course whose formation is
// still unpublished. It returns sql.ErrNoRows otherwise.
func (r *CourseRepository) SetPublished(ctx context.Context, id string, published bool) error {
	const query = `UPDATE courses SET published = $2, updated_at = $3
WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM formations f WHERE f.id = courses.formation_id AND f.published)`
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockFormation(ctx, tx, lockCourseFormation, id); err != nil {
			return err
		}
		return execOne(ctx, tx, "set course published", query, id, published, time.Now().UTC())
	})
}

// CountContent returns the number of lessons and quizzes belonging to a course.
func (r *CourseRepository) CountContent(ctx context.Context, courseID string) (CourseContentCount, error) {
	const query = `SELECT
    (SELECT COUNT(*) FROM lessons WHERE course_id = $1) AS lessons,
    (SELECT COUNT(*) FROM quizzes WHERE course_id = $1) AS quizzes`
	var count CourseContentCount
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return CourseContentCount{}, fmt.Errorf("count course content: %w", err)
	}
	return count, nil
}
