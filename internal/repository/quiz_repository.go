package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/formation-lms-api/internal/models"
)

// QuizRepository persists quizzes along with their questions and choices.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

type choiceRow struct {
	ID         string `db:"id"`
	QuestionID string `db:"question_id"`
	Text       string `db:"text"`
	IsCorrect  bool   `db:"is_correct"`
	Position   int    `db:"position"`
}

// CreateWithQuestions inserts the quiz, its questions and their choices using exec.
// Callers pass a transaction so the whole tree lands atomically.
func (r *QuizRepository) CreateWithQuestions(ctx context.Context, exec sqlx.ExtContext, quiz *models.Quiz) error {
	target := pick(r.db, exec)
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now().UTC()
	}

	const quizQuery = `INSERT INTO quizzes (id, course_id, title, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := target.ExecContext(ctx, quizQuery, quiz.ID, quiz.CourseID, quiz.Title, quiz.CreatedAt); err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}

	const questionQuery = `INSERT INTO questions (id, quiz_id, text, position) VALUES ($1, $2, $3, $4)`
	const choiceQuery = `INSERT INTO choices (id, question_id, text, is_correct, position) VALUES ($1, $2, $3, $4, $5)`
	for qi := range quiz.Questions {
		question := &quiz.Questions[qi]
		if question.ID == "" {
			question.ID = uuid.NewString()
		}
		question.QuizID = quiz.ID
		question.Position = qi + 1
		if _, err := target.ExecContext(ctx, questionQuery, question.ID, quiz.ID, question.Text, question.Position); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		for ci := range question.Choices {
			choice := &question.Choices[ci]
			if choice.ID == "" {
				choice.ID = uuid.NewString()
			}
			choice.QuestionID = question.ID
			choice.Position = ci + 1
			correct := choice.IsCorrect != nil && *choice.IsCorrect
			if _, err := target.ExecContext(ctx, choiceQuery, choice.ID, question.ID, choice.Text, correct, choice.Position); err != nil {
				return fmt.Errorf("insert choice: %w", err)
			}
		}
	}
	return nil
}

// FindByID returns the quiz without questions.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	return getOne[models.Quiz](ctx, r.db, "find quiz",
		`SELECT id, course_id, title, created_at FROM quizzes WHERE id = $1`, id)
}

// FindWithQuestions returns the quiz with ordered questions and choices.
func (r *QuizRepository) FindWithQuestions(ctx context.Context, id string) (*models.Quiz, error) {
	quiz, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	const questionQuery = `SELECT id, quiz_id, text, position FROM questions WHERE quiz_id = $1 ORDER BY position ASC`
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, questionQuery, id); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	const choiceQuery = `SELECT c.id, c.question_id, c.text, c.is_correct, c.position FROM choices c JOIN questions q ON q.id = c.question_id WHERE q.quiz_id = $1 ORDER BY q.position ASC, c.position ASC`
	var choices []choiceRow
	if err := r.db.SelectContext(ctx, &choices, choiceQuery, id); err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}

	byQuestion := make(map[string][]models.Choice, len(questions))
	for _, row := range choices {
		correct := row.IsCorrect
		byQuestion[row.QuestionID] = append(byQuestion[row.QuestionID], models.Choice{
			ID:         row.ID,
			QuestionID: row.QuestionID,
			Text:       row.Text,
			IsCorrect:  &correct,
			Position:   row.Position,
		})
	}
	for i := range questions {
		questions[i].Choices = byQuestion[questions[i].ID]
		if questions[i].Choices == nil {
			questions[i].Choices = []models.Choice{}
		}
	}
	quiz.Questions = questions
	return quiz, nil
}

// ListSummariesByCourse lists the quizzes of a course with question counts.
func (r *QuizRepository) ListSummariesByCourse(ctx context.Context, courseID string) ([]models.QuizSummary, error) {
	const query = `SELECT q.id, q.title, COUNT(qu.id) AS question_count
FROM quizzes q LEFT JOIN questions qu ON qu.quiz_id = q.id
WHERE q.course_id = $1
GROUP BY q.id, q.title, q.created_at
ORDER BY q.created_at ASC`
	summaries := []models.QuizSummary{}
	if err := r.db.SelectContext(ctx, &summaries, query, courseID); err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return summaries, nil
}
