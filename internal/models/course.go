package models

import (
	"io"
	"time"
)

// Course groups lessons and quizzes inside a formation.
type Course struct {
	ID          string    `db:"id" json:"id"`
	FormationID string    `db:"formation_id" json:"formation_id"`
	Title       string    `db:"title" json:"title"`
	Published   bool      `db:"published" json:"published"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail is a course with its content.
type CourseDetail struct {
	Course
	Lessons []Lesson      `json:"lessons"`
	Quizzes []QuizSummary `json:"quizzes"`
}

// CourseRequest is the create/update payload for a course.
type CourseRequest struct {
	Title string `json:"title" validate:"required,min=2,max=200"`
}

// Lesson is a PDF document attached to a course.
type Lesson struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	PDFURL    string    `db:"pdf_url" json:"pdf_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LessonRequest creates a lesson from an already hosted PDF URL.
type LessonRequest struct {
	Title  string `json:"title" validate:"required,min=2,max=200"`
	PDFURL string `json:"pdf_url" validate:"required,url,max=1024"`
}

// UpdateLessonRequest changes a lesson title and optionally its document.
type UpdateLessonRequest struct {
	Title  string  `json:"title" validate:"required,min=2,max=200"`
	PDFURL *string `json:"pdf_url" validate:"omitempty,url,max=1024"`
}

// LessonUpload carries a multipart PDF upload.
type LessonUpload struct {
	Title    string `validate:"required,min=2,max=200"`
	Filename string
	Body     io.Reader
}
