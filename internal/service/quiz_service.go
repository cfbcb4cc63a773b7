package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/pkg/database"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

type quizRepository interface {
	CreateWithQuestions(ctx context.Context, exec sqlx.ExtContext, quiz *models.Quiz) error
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	FindWithQuestions(ctx context.Context, id string) (*models.Quiz, error)
}

type quizCascade interface {
	DeleteQuiz(ctx context.Context, exec sqlx.ExtContext, quizID string) error
}

type submissionStore interface {
	ReplaceSubmission(ctx context.Context, exec sqlx.ExtContext, sub *models.QuizSubmission) error
	FindCourseResult(ctx context.Context, courseID, studentID string) (*models.CourseResult, error)
}

// QuizDeps groups the collaborators of QuizService.
type QuizDeps struct {
	Formations  formationFinder
	Courses     courseFinder
	Quizzes     quizRepository
	Enrollments approvalChecker
	Cascade     quizCascade
	Submissions submissionStore
	Tx          database.TxBeginner
}

// QuizService authors quizzes and records student submissions.
type QuizService struct {
	deps       QuizDeps
	minChoices int
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewQuizService constructs a QuizService. minChoices is the per-question floor.
func NewQuizService(deps QuizDeps, minChoices int, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if minChoices < 2 {
		minChoices = 2
	}
	return &QuizService{deps: deps, minChoices: minChoices, validator: validate, logger: logger}
}

func (s *QuizService) guard() contentGuard {
	return contentGuard{formations: s.deps.Formations, courses: s.deps.Courses, enrollments: s.deps.Enrollments}
}

// Create inserts a quiz with its questions and choices in one transaction.
func (s *QuizService) Create(ctx context.Context, actor Actor, courseID string, req models.CreateQuizRequest) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid quiz payload")
	}
	quiz := &models.Quiz{CourseID: courseID, Title: strings.TrimSpace(req.Title)}
	for i, q := range req.Questions {
		if len(q.Choices) < s.minChoices {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d needs at least %d choices", i+1, s.minChoices))
		}
		question := models.Question{Text: strings.TrimSpace(q.Text)}
		hasCorrect := false
		for _, c := range q.Choices {
			correct := c.IsCorrect
			hasCorrect = hasCorrect || correct
			question.Choices = append(question.Choices, models.Choice{Text: strings.TrimSpace(c.Text), IsCorrect: &correct})
		}
		if !hasCorrect {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d needs a correct choice", i+1))
		}
		quiz.Questions = append(quiz.Questions, question)
	}

	if _, _, err := s.guard().editableCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	err := database.WithTx(ctx, s.deps.Tx, func(tx *sqlx.Tx) error {
		return s.deps.Quizzes.CreateWithQuestions(ctx, tx, quiz)
	})
	if err != nil {
		return nil, internalError(err, "failed to create quiz")
	}
	return quiz, nil
}

// Get returns the quiz with questions. Correct flags are stripped unless the
// actor manages the formation.
func (s *QuizService) Get(ctx context.Context, actor Actor, id string) (*models.Quiz, error) {
	quiz, err := s.deps.Quizzes.FindWithQuestions(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, "failed to load quiz")
	}
	_, formation, err := s.guard().visibleCourse(ctx, actor, quiz.CourseID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(formation) {
		hideAnswers(quiz)
	}
	return quiz, nil
}

// Delete cascades questions, choices and submissions of an editable quiz.
func (s *QuizService) Delete(ctx context.Context, actor Actor, id string) error {
	quiz, err := s.deps.Quizzes.FindByID(ctx, id)
	if err != nil {
		return s.mapErr(err, "failed to load quiz")
	}
	if _, _, err := s.guard().editableCourse(ctx, actor, quiz.CourseID); err != nil {
		return err
	}
	err = database.WithTx(ctx, s.deps.Tx, func(tx *sqlx.Tx) error {
		return s.deps.Cascade.DeleteQuiz(ctx, tx, id)
	})
	if err != nil {
		return s.mapErr(err, "failed to delete quiz")
	}
	return nil
}

// Submit grades the answers and replaces the student's previous submission.
// Unanswered questions count as wrong.
func (s *QuizService) Submit(ctx context.Context, actor Actor, quizID string, req models.SubmitQuizRequest) (*models.SubmitQuizResult, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit quizzes")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid submission payload")
	}
	quiz, err := s.deps.Quizzes.FindWithQuestions(ctx, quizID)
	if err != nil {
		return nil, s.mapErr(err, "failed to load quiz")
	}
	course, _, err := s.guard().visibleCourse(ctx, actor, quiz.CourseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.deps.Submissions.FindCourseResult(ctx, course.ID, actor.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "course already finalized")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to check course result")
	}

	sub, err := grade(quiz, req.Answers)
	if err != nil {
		return nil, err
	}
	sub.StudentID = actor.ID
	err = database.WithTx(ctx, s.deps.Tx, func(tx *sqlx.Tx) error {
		return s.deps.Submissions.ReplaceSubmission(ctx, tx, sub)
	})
	if err != nil {
		return nil, internalError(err, "failed to store submission")
	}
	return &models.SubmitQuizResult{SubmissionID: sub.ID, QuizID: quiz.ID, Correct: sub.CorrectCount, Total: sub.TotalCount}, nil
}

// grade checks that every answer references a question of the quiz and one of
// that question's choices, then counts correct answers.
func grade(quiz *models.Quiz, answers []models.QuizAnswer) (*models.QuizSubmission, error) {
	questions := make(map[string]*models.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		questions[quiz.Questions[i].ID] = &quiz.Questions[i]
	}
	sub := &models.QuizSubmission{QuizID: quiz.ID, TotalCount: len(quiz.Questions)}
	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		question, ok := questions[a.QuestionID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "question "+a.QuestionID+" does not belong to this quiz")
		}
		if seen[a.QuestionID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "question "+a.QuestionID+" answered twice")
		}
		seen[a.QuestionID] = true

		var choice *models.Choice
		for i := range question.Choices {
			if question.Choices[i].ID == a.ChoiceID {
				choice = &question.Choices[i]
				break
			}
		}
		if choice == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "choice "+a.ChoiceID+" does not belong to question "+a.QuestionID)
		}
		correct := choice.IsCorrect != nil && *choice.IsCorrect
		if correct {
			sub.CorrectCount++
		}
		sub.Answers = append(sub.Answers, models.SubmissionAnswer{QuestionID: a.QuestionID, ChoiceID: a.ChoiceID, Correct: correct})
	}
	return sub, nil
}

func hideAnswers(quiz *models.Quiz) {
	for qi := range quiz.Questions {
		for ci := range quiz.Questions[qi].Choices {
			quiz.Questions[qi].Choices[ci].IsCorrect = nil
		}
	}
}

func (s *QuizService) mapErr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
	}
	return internalError(err, message)
}
