package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CascadeRepository removes entity trees in foreign key order.
// Every method expects to run inside a caller provided transaction and returns
// the public URLs of stored files that become orphaned once it commits.
type CascadeRepository struct {
	db *sqlx.DB
}

// NewCascadeRepository constructs the repository.
func NewCascadeRepository(db *sqlx.DB) *CascadeRepository {
	return &CascadeRepository{db: db}
}

type step struct {
	name  string
	query string
}

func (r *CascadeRepository) run(ctx context.Context, exec sqlx.ExtContext, arg interface{}, steps []step) error {
	for _, s := range steps {
		if _, err := exec.ExecContext(ctx, s.query, arg); err != nil {
			return fmt.Errorf("delete %s: %w", s.name, err)
		}
	}
	return nil
}

func (r *CascadeRepository) files(ctx context.Context, exec sqlx.ExtContext, query string, arg interface{}) ([]string, error) {
	var urls []string
	if err := sqlx.SelectContext(ctx, exec, &urls, query, arg); err != nil {
		return nil, fmt.Errorf("collect stored files: %w", err)
	}
	return urls, nil
}

func quizSteps(quizScope string) []step {
	return []step{
		{"submission answers", `DELETE FROM submission_answers WHERE submission_id IN (SELECT id FROM quiz_submissions WHERE quiz_id IN (` + quizScope + `))`},
		{"quiz submissions", `DELETE FROM quiz_submissions WHERE quiz_id IN (` + quizScope + `)`},
		{"choices", `DELETE FROM choices WHERE question_id IN (SELECT id FROM questions WHERE quiz_id IN (` + quizScope + `))`},
		{"questions", `DELETE FROM questions WHERE quiz_id IN (` + quizScope + `)`},
	}
}

func courseSteps(courseScope string) []step {
	quizScope := `SELECT id FROM quizzes WHERE course_id IN (` + courseScope + `)`
	steps := quizSteps(quizScope)
	return append(steps,
		step{"quizzes", `DELETE FROM quizzes WHERE course_id IN (` + courseScope + `)`},
		step{"lessons", `DELETE FROM lessons WHERE course_id IN (` + courseScope + `)`},
		step{"course results", `DELETE FROM course_results WHERE course_id IN (` + courseScope + `)`},
	)
}

// courseFilesQuery only returns lesson files uploaded for that lesson; linked
// documents belong to someone else.
func courseFilesQuery(courseScope string) string {
	return `SELECT pdf_url FROM lessons WHERE pdf_url LIKE '%/lessons/' || id::text || '.pdf' AND course_id IN (` + courseScope + `)
UNION ALL SELECT badge_url FROM course_results WHERE badge_url IS NOT NULL AND course_id IN (` + courseScope + `)`
}

// DeleteQuiz removes a quiz with its questions, choices and submissions.
func (r *CascadeRepository) DeleteQuiz(ctx context.Context, exec sqlx.ExtContext, quizID string) error {
	exec = pick(r.db, exec)
	if err := r.run(ctx, exec, quizID, quizSteps(`SELECT $1::uuid`)); err != nil {
		return err
	}
	return deleteRoot(ctx, exec, "quiz", `DELETE FROM quizzes WHERE id = $1`, quizID)
}

// DeleteCourse removes a course and everything beneath it.
func (r *CascadeRepository) DeleteCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]string, error) {
	exec = pick(r.db, exec)
	const scope = `SELECT $1::uuid`
	urls, err := r.files(ctx, exec, courseFilesQuery(scope), courseID)
	if err != nil {
		return nil, err
	}
	if err := r.run(ctx, exec, courseID, courseSteps(scope)); err != nil {
		return nil, err
	}
	if err := deleteRoot(ctx, exec, "course", `DELETE FROM courses WHERE id = $1`, courseID); err != nil {
		return nil, err
	}
	return urls, nil
}

// DeleteFormation removes a formation, its courses, enrollments, invoices and results.
func (r *CascadeRepository) DeleteFormation(ctx context.Context, exec sqlx.ExtContext, formationID string) ([]string, error) {
	exec = pick(r.db, exec)
	const scope = `SELECT id FROM courses WHERE formation_id = $1`
	filesQuery := courseFilesQuery(scope) + `
UNION ALL SELECT certificate_url FROM formation_results WHERE certificate_url IS NOT NULL AND formation_id = $1
UNION ALL SELECT pdf_url FROM invoices WHERE pdf_url IS NOT NULL AND enrollment_id IN (SELECT id FROM enrollments WHERE formation_id = $1)`
	urls, err := r.files(ctx, exec, filesQuery, formationID)
	if err != nil {
		return nil, err
	}

	steps := append(courseSteps(scope),
		step{"courses", `DELETE FROM courses WHERE formation_id = $1`},
		step{"formation results", `DELETE FROM formation_results WHERE formation_id = $1`},
		step{"invoices", `DELETE FROM invoices WHERE enrollment_id IN (SELECT id FROM enrollments WHERE formation_id = $1)`},
		step{"enrollments", `DELETE FROM enrollments WHERE formation_id = $1`},
	)
	if err := r.run(ctx, exec, formationID, steps); err != nil {
		return nil, err
	}
	if err := deleteRoot(ctx, exec, "formation", `DELETE FROM formations WHERE id = $1`, formationID); err != nil {
		return nil, err
	}
	return urls, nil
}

// DeleteStudentData removes everything a student produced: grading artifacts, invoices and enrollments.
func (r *CascadeRepository) DeleteStudentData(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]string, error) {
	exec = pick(r.db, exec)
	const filesQuery = `SELECT badge_url FROM course_results WHERE badge_url IS NOT NULL AND student_id = $1
UNION ALL SELECT certificate_url FROM formation_results WHERE certificate_url IS NOT NULL AND student_id = $1
UNION ALL SELECT pdf_url FROM invoices WHERE pdf_url IS NOT NULL AND enrollment_id IN (SELECT id FROM enrollments WHERE student_id = $1)`
	urls, err := r.files(ctx, exec, filesQuery, studentID)
	if err != nil {
		return nil, err
	}
	steps := []step{
		{"submission answers", `DELETE FROM submission_answers WHERE submission_id IN (SELECT id FROM quiz_submissions WHERE student_id = $1)`},
		{"quiz submissions", `DELETE FROM quiz_submissions WHERE student_id = $1`},
		{"course results", `DELETE FROM course_results WHERE student_id = $1`},
		{"formation results", `DELETE FROM formation_results WHERE student_id = $1`},
		{"invoices", `DELETE FROM invoices WHERE enrollment_id IN (SELECT id FROM enrollments WHERE student_id = $1)`},
		{"enrollments", `DELETE FROM enrollments WHERE student_id = $1`},
	}
	if err := r.run(ctx, exec, studentID, steps); err != nil {
		return nil, err
	}
	return urls, nil
}

// DeleteUser removes the user row and its sessions. Owned content must be removed first.
func (r *CascadeRepository) DeleteUser(ctx context.Context, exec sqlx.ExtContext, userID string) error {
	exec = pick(r.db, exec)
	if err := r.run(ctx, exec, userID, []step{{"refresh tokens", `DELETE FROM refresh_tokens WHERE user_id = $1`}}); err != nil {
		return err
	}
	return deleteRoot(ctx, exec, "user", `DELETE FROM users WHERE id = $1`, userID)
}

func deleteRoot(ctx context.Context, exec sqlx.ExtContext, name, query string, id string) error {
	return execOne(ctx, exec, "delete "+name, query, id)
}
