package models

import "time"

// Quiz is a multiple choice test belonging to a course.
type Quiz struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	Title     string     `db:"title" json:"title"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Questions []Question `db:"-" json:"questions,omitempty"`
}

// QuizSummary lists a quiz with its question count.
type QuizSummary struct {
	ID            string `db:"id" json:"id"`
	Title         string `db:"title" json:"title"`
	QuestionCount int    `db:"question_count" json:"question_count"`
}

// Question is one prompt of a quiz.
type Question struct {
	ID       string   `db:"id" json:"id"`
	QuizID   string   `db:"quiz_id" json:"quiz_id"`
	Text     string   `db:"text" json:"text"`
	Position int      `db:"position" json:"position"`
	Choices  []Choice `db:"-" json:"choices"`
}

// Choice is a possible answer. IsCorrect is nil when hidden from students.
type Choice struct {
	ID         string `db:"id" json:"id"`
	QuestionID string `db:"question_id" json:"question_id"`
	Text       string `db:"text" json:"text"`
	IsCorrect  *bool  `db:"is_correct" json:"is_correct,omitempty"`
	Position   int    `db:"position" json:"position"`
}

// CreateQuizRequest creates a quiz with its questions in one call.
type CreateQuizRequest struct {
	Title     string                  `json:"title" validate:"required,min=2,max=200"`
	Questions []CreateQuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// CreateQuestionRequest is one question of a new quiz.
type CreateQuestionRequest struct {
	Text    string                `json:"text" validate:"required,min=1,max=1000"`
	Choices []CreateChoiceRequest `json:"choices" validate:"required,dive"`
}

// CreateChoiceRequest is one choice of a new question.
type CreateChoiceRequest struct {
	Text      string `json:"text" validate:"required,min=1,max=500"`
	IsCorrect bool   `json:"is_correct"`
}

// SubmitQuizRequest carries a student's selected choices.
type SubmitQuizRequest struct {
	Answers []QuizAnswer `json:"answers" validate:"required,min=1,dive"`
}

// QuizAnswer selects one choice for one question.
type QuizAnswer struct {
	QuestionID string `json:"question_id" validate:"required"`
	ChoiceID   string `json:"choice_id" validate:"required"`
}

// QuizSubmission is a student's latest answer set for a quiz.
type QuizSubmission struct {
	ID           string             `db:"id" json:"id"`
	QuizID       string             `db:"quiz_id" json:"quiz_id"`
	StudentID    string             `db:"student_id" json:"student_id"`
	CorrectCount int                `db:"correct_count" json:"correct_count"`
	TotalCount   int                `db:"total_count" json:"total_count"`
	SubmittedAt  time.Time          `db:"submitted_at" json:"submitted_at"`
	Answers      []SubmissionAnswer `db:"-" json:"answers,omitempty"`
}

// SubmissionAnswer is one stored answer of a submission.
type SubmissionAnswer struct {
	SubmissionID string `db:"submission_id" json:"-"`
	QuestionID   string `db:"question_id" json:"question_id"`
	ChoiceID     string `db:"choice_id" json:"choice_id"`
	Correct      bool   `db:"correct" json:"-"`
}
