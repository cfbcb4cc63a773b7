package models

import "time"

// CourseResult is written when a student finalizes a course.
type CourseResult struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Score       float64   `db:"score" json:"score"`
	Passed      bool      `db:"passed" json:"passed"`
	BadgeURL    *string   `db:"badge_url" json:"badge_url,omitempty"`
	FinalizedAt time.Time `db:"finalized_at" json:"finalized_at"`
}

// FormationResult is written once every course of a formation has a result.
type FormationResult struct {
	ID             string    `db:"id" json:"id"`
	FormationID    string    `db:"formation_id" json:"formation_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	Score          float64   `db:"score" json:"score"`
	Passed         bool      `db:"passed" json:"passed"`
	CertificateURL *string   `db:"certificate_url" json:"certificate_url,omitempty"`
	CompletedAt    time.Time `db:"completed_at" json:"completed_at"`
}

// SubmitQuizResult reports the outcome of a single quiz submission.
type SubmitQuizResult struct {
	SubmissionID string `json:"submission_id"`
	QuizID       string `json:"quiz_id"`
	Correct      int    `json:"correct"`
	Total        int    `json:"total"`
}

// FinalizeResult is returned when a course is finalized.
type FinalizeResult struct {
	Course    CourseResult     `json:"course_result"`
	Formation *FormationResult `json:"formation_result,omitempty"`
}

// StudentResults lists every result a student holds.
type StudentResults struct {
	Courses    []CourseResult    `json:"courses"`
	Formations []FormationResult `json:"formations"`
}

// CourseProgress aggregates a student's submissions over one course.
type CourseProgress struct {
	QuizCount      int `db:"quiz_count" json:"quiz_count"`
	SubmittedCount int `db:"submitted_count" json:"submitted_count"`
	QuestionCount  int `db:"question_count" json:"question_count"`
	CorrectCount   int `db:"correct_count" json:"correct_count"`
}
