package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascadeDeleteFormationOrder(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCascadeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT pdf_url FROM lessons").WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"pdf_url"}).AddRow("/static/lessons/a.pdf").AddRow("/static/invoices/i.pdf"))
	for _, table := range []string{
		"submission_answers", "quiz_submissions", "choices", "questions", "quizzes",
		"lessons", "course_results", "courses", "formation_results", "invoices", "enrollments",
	} {
		mock.ExpectExec("DELETE FROM " + table + " WHERE").WithArgs("f1").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec("DELETE FROM formations WHERE id = \\$1").WithArgs("f1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	urls, err := repo.DeleteFormation(context.Background(), tx, "f1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, []string{"/static/lessons/a.pdf", "/static/invoices/i.pdf"}, urls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCascadeDeleteFormationMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCascadeRepository(db)

	mock.ExpectQuery("SELECT pdf_url FROM lessons").WillReturnRows(sqlmock.NewRows([]string{"pdf_url"}))
	for i := 0; i < 11; i++ {
		mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec("DELETE FROM formations").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.DeleteFormation(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCascadeDeleteCourseStopsOnError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCascadeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT pdf_url FROM lessons WHERE pdf_url LIKE '%/lessons/' || id::text || '.pdf' AND course_id IN`)).
		WillReturnRows(sqlmock.NewRows([]string{"pdf_url"}))
	mock.ExpectExec("DELETE FROM submission_answers").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM quiz_submissions").WillReturnError(errors.New("fk violation"))

	_, err := repo.DeleteCourse(context.Background(), nil, "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete quiz submissions")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCascadeDeleteQuiz(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCascadeRepository(db)

	for _, table := range []string{"submission_answers", "quiz_submissions", "choices", "questions"} {
		mock.ExpectExec("DELETE FROM " + table).WithArgs("q1").WillReturnResult(sqlmock.NewResult(0, 2))
	}
	mock.ExpectExec("DELETE FROM quizzes WHERE id = \\$1").WithArgs("q1").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteQuiz(context.Background(), nil, "q1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCascadeDeleteStudentAndUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCascadeRepository(db)

	mock.ExpectQuery("SELECT badge_url FROM course_results").WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"badge_url"}).AddRow("/static/badges/b.pdf"))
	for _, table := range []string{"submission_answers", "quiz_submissions", "course_results", "formation_results", "invoices", "enrollments"} {
		mock.ExpectExec("DELETE FROM " + table).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec("DELETE FROM refresh_tokens").WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM users").WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 1))

	urls, err := repo.DeleteStudentData(context.Background(), nil, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"/static/badges/b.pdf"}, urls)
	require.NoError(t, repo.DeleteUser(context.Background(), nil, "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
