package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/formation-lms-api/internal/models"
)

// GradingRepository persists quiz submissions and course/formation results.
type GradingRepository struct {
	db *sqlx.DB
}

// NewGradingRepository constructs the repository.
func NewGradingRepository(db *sqlx.DB) *GradingRepository {
	return &GradingRepository{db: db}
}

// ReplaceSubmission drops the student's previous submission for the quiz and stores sub.
func (r *GradingRepository) ReplaceSubmission(ctx context.Context, exec sqlx.ExtContext, sub *models.QuizSubmission) error {
	target := pick(r.db, exec)
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}

	const deleteAnswers = `DELETE FROM submission_answers WHERE submission_id IN (SELECT id FROM quiz_submissions WHERE quiz_id = $1 AND student_id = $2)`
	if _, err := target.ExecContext(ctx, deleteAnswers, sub.QuizID, sub.StudentID); err != nil {
		return fmt.Errorf("delete previous answers: %w", err)
	}
	const deleteSubmission = `DELETE FROM quiz_submissions WHERE quiz_id = $1 AND student_id = $2`
	if _, err := target.ExecContext(ctx, deleteSubmission, sub.QuizID, sub.StudentID); err != nil {
		return fmt.Errorf("delete previous submission: %w", err)
	}

	const insertSubmission = `INSERT INTO quiz_submissions (id, quiz_id, student_id, correct_count, total_count, submitted_at) VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := target.ExecContext(ctx, insertSubmission, sub.ID, sub.QuizID, sub.StudentID, sub.CorrectCount, sub.TotalCount, sub.SubmittedAt); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	const insertAnswer = `INSERT INTO submission_answers (submission_id, question_id, choice_id, correct) VALUES ($1, $2, $3, $4)`
	for i := range sub.Answers {
		answer := &sub.Answers[i]
		answer.SubmissionID = sub.ID
		if _, err := target.ExecContext(ctx, insertAnswer, sub.ID, answer.QuestionID, answer.ChoiceID, answer.Correct); err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}
	return nil
}

// CourseProgress counts quizzes, questions and the student's submissions for a course.
func (r *GradingRepository) CourseProgress(ctx context.Context, exec sqlx.ExtContext, courseID, studentID string) (models.CourseProgress, error) {
	const query = `SELECT
    (SELECT COUNT(*) FROM quizzes WHERE course_id = $1) AS quiz_count,
    (SELECT COUNT(*) FROM quiz_submissions s JOIN quizzes q ON q.id = s.quiz_id WHERE q.course_id = $1 AND s.student_id = $2) AS submitted_count,
    (SELECT COUNT(*) FROM questions qu JOIN quizzes q ON q.id = qu.quiz_id WHERE q.course_id = $1) AS question_count,
    (SELECT COALESCE(SUM(s.correct_count), 0) FROM quiz_submissions s JOIN quizzes q ON q.id = s.quiz_id WHERE q.course_id = $1 AND s.student_id = $2) AS correct_count`
	var progress models.CourseProgress
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &progress, query, courseID, studentID); err != nil {
		return models.CourseProgress{}, fmt.Errorf("course progress: %w", err)
	}
	return progress, nil
}

const courseResultColumns = `id, course_id, student_id, score, passed, badge_url, finalized_at`

// CreateCourseResult stores a finalized course. A second finalize yields ErrDuplicate.
func (r *GradingRepository) CreateCourseResult(ctx context.Context, exec sqlx.ExtContext, result *models.CourseResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.FinalizedAt.IsZero() {
		result.FinalizedAt = time.Now().UTC()
	}
	query := `INSERT INTO course_results (` + courseResultColumns + `) VALUES (:id, :course_id, :student_id, :score, :passed, :badge_url, :finalized_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, result); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create course result: %w", err)
	}
	return nil
}

// FindCourseResult returns the student's result for a course.
func (r *GradingRepository) FindCourseResult(ctx context.Context, courseID, studentID string) (*models.CourseResult, error) {
	return getOne[models.CourseResult](ctx, r.db, "find course result",
		`SELECT ` + courseResultColumns + ` FROM course_results WHERE course_id = $1 AND student_id = $2`, courseID, studentID)
}

// ListCourseResultsByFormation returns the student's results for courses of a formation.
func (r *GradingRepository) ListCourseResultsByFormation(ctx context.Context, exec sqlx.ExtContext, formationID, studentID string) ([]models.CourseResult, error) {
	const query = `SELECT cr.id, cr.course_id, cr.student_id, cr.score, cr.passed, cr.badge_url, cr.finalized_at
FROM course_results cr JOIN courses c ON c.id = cr.course_id
WHERE c.formation_id = $1 AND cr.student_id = $2`
	var results []models.CourseResult
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &results, query, formationID, studentID); err != nil {
		return nil, fmt.Errorf("list course results: %w", err)
	}
	return results, nil
}

// ListCourseResultsByStudent returns every course result of a student.
func (r *GradingRepository) ListCourseResultsByStudent(ctx context.Context, studentID string) ([]models.CourseResult, error) {
	query := `SELECT ` + courseResultColumns + ` FROM course_results WHERE student_id = $1 ORDER BY finalized_at DESC`
	results := []models.CourseResult{}
	if err := r.db.SelectContext(ctx, &results, query, studentID); err != nil {
		return nil, fmt.Errorf("list student course results: %w", err)
	}
	return results, nil
}

// UpdateBadgeURL stores the badge document location.
func (r *GradingRepository) UpdateBadgeURL(ctx context.Context, id, url string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE course_results SET badge_url = $2 WHERE id = $1`, id, url); err != nil {
		return fmt.Errorf("update badge url: %w", err)
	}
	return nil
}

const formationResultColumns = `id, formation_id, student_id, score, passed, certificate_url, completed_at`

// CreateFormationResult stores the formation outcome.
func (r *GradingRepository) CreateFormationResult(ctx context.Context, exec sqlx.ExtContext, result *models.FormationResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now().UTC()
	}
	query := `INSERT INTO formation_results (` + formationResultColumns + `) VALUES (:id, :formation_id, :student_id, :score, :passed, :certificate_url, :completed_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, result); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create formation result: %w", err)
	}
	return nil
}

// FindFormationResult returns the student's result for a formation.
func (r *GradingRepository) FindFormationResult(ctx context.Context, formationID, studentID string) (*models.FormationResult, error) {
	return getOne[models.FormationResult](ctx, r.db, "find formation result",
		`SELECT ` + formationResultColumns + ` FROM formation_results WHERE formation_id = $1 AND student_id = $2`, formationID, studentID)
}

// ListFormationResultsByStudent returns every formation result of a student.
func (r *GradingRepository) ListFormationResultsByStudent(ctx context.Context, studentID string) ([]models.FormationResult, error) {
	query := `SELECT ` + formationResultColumns + ` FROM formation_results WHERE student_id = $1 ORDER BY completed_at DESC`
	results := []models.FormationResult{}
	if err := r.db.SelectContext(ctx, &results, query, studentID); err != nil {
		return nil, fmt.Errorf("list student formation results: %w", err)
	}
	return results, nil
}

// UpdateCertificateURL stores the certificate document location.
func (r *GradingRepository) UpdateCertificateURL(ctx context.Context, id, url string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE formation_results SET certificate_url = $2 WHERE id = $1`, id, url); err != nil {
		return fmt.Errorf("update certificate url: %w", err)
	}
	return nil
}
