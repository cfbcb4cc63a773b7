package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/formation-lms-api/internal/models"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
	"github.com/noah-isme/formation-lms-api/pkg/upload"
)

type lessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error)
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
}

// LessonDeps groups the collaborators of LessonService.
type LessonDeps struct {
	Formations  formationFinder
	Courses     courseFinder
	Lessons     lessonRepository
	Enrollments approvalChecker
	Files       FileStore
}

// LessonService manages the PDF lessons of a course.
type LessonService struct {
	deps      LessonDeps
	maxBytes  int64
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs a LessonService. maxBytes bounds uploaded PDFs.
func NewLessonService(deps LessonDeps, maxBytes int64, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &LessonService{deps: deps, maxBytes: maxBytes, validator: validate, logger: logger}
}

func (s *LessonService) guard() contentGuard {
	return contentGuard{formations: s.deps.Formations, courses: s.deps.Courses, enrollments: s.deps.Enrollments}
}

// Upload stores a PDF under lessons/<id>.pdf and creates the lesson.
func (s *LessonService) Upload(ctx context.Context, actor Actor, courseID string, in models.LessonUpload) (*models.Lesson, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, validationError(err, "invalid lesson payload")
	}
	if _, _, err := s.guard().editableCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	if in.Body == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson file is required")
	}
	data, err := upload.ReadLimited(in.Body, s.maxBytes)
	if err != nil {
		return nil, uploadError(err)
	}
	if _, err := upload.Detect(data, upload.PDFMIMEs); err != nil {
		return nil, uploadError(err)
	}

	lesson := &models.Lesson{ID: uuid.NewString(), CourseID: courseID, Title: strings.TrimSpace(in.Title)}
	rel := lessonFile(lesson.ID)
	if _, err := s.deps.Files.Save(rel, data); err != nil {
		return nil, internalError(err, "failed to store lesson file")
	}
	lesson.PDFURL = s.deps.Files.PublicURL(rel)
	if err := s.deps.Lessons.Create(ctx, lesson); err != nil {
		removeStoredFiles(s.deps.Files, s.logger, lesson.PDFURL)
		return nil, internalError(err, "failed to create lesson")
	}
	return lesson, nil
}

// CreateFromURL creates a lesson pointing at an already hosted PDF.
func (s *LessonService) CreateFromURL(ctx context.Context, actor Actor, courseID string, req models.LessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid lesson payload")
	}
	if _, _, err := s.guard().editableCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	link, err := hostedURL(req.PDFURL)
	if err != nil {
		return nil, err
	}
	lesson := &models.Lesson{CourseID: courseID, Title: strings.TrimSpace(req.Title), PDFURL: link}
	if err := s.deps.Lessons.Create(ctx, lesson); err != nil {
		return nil, internalError(err, "failed to create lesson")
	}
	return lesson, nil
}

// Get returns a lesson when its course is visible to the actor.
func (s *LessonService) Get(ctx context.Context, actor Actor, id string) (*models.Lesson, error) {
	lesson, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.guard().visibleCourse(ctx, actor, lesson.CourseID); err != nil {
		return nil, err
	}
	return lesson, nil
}

// List returns the lessons of a visible course.
func (s *LessonService) List(ctx context.Context, actor Actor, courseID string) ([]models.Lesson, error) {
	if _, _, err := s.guard().visibleCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	lessons, err := s.deps.Lessons.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, internalError(err, "failed to list lessons")
	}
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	return lessons, nil
}

// Update renames a lesson and optionally points it at another document.
// A replaced stored file is removed.
func (s *LessonService) Update(ctx context.Context, actor Actor, id string, req models.UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid lesson payload")
	}
	lesson, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.guard().editableCourse(ctx, actor, lesson.CourseID); err != nil {
		return nil, err
	}
	previous, uploaded := lesson.PDFURL, s.ownFile(lesson)
	lesson.Title = strings.TrimSpace(req.Title)
	if req.PDFURL != nil {
		link, err := hostedURL(*req.PDFURL)
		if err != nil {
			return nil, err
		}
		lesson.PDFURL = link
	}
	if err := s.deps.Lessons.Update(ctx, lesson); err != nil {
		return nil, s.mapErr(err, "failed to update lesson")
	}
	if previous != lesson.PDFURL {
		removeStoredFiles(s.deps.Files, s.logger, uploaded)
	}
	return lesson, nil
}

// Delete removes a lesson and the document uploaded for it.
func (s *LessonService) Delete(ctx context.Context, actor Actor, id string) error {
	lesson, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if _, _, err := s.guard().editableCourse(ctx, actor, lesson.CourseID); err != nil {
		return err
	}
	if err := s.deps.Lessons.Delete(ctx, id); err != nil {
		return s.mapErr(err, "failed to delete lesson")
	}
	removeStoredFiles(s.deps.Files, s.logger, s.ownFile(lesson))
	return nil
}

func lessonFile(id string) string {
	return "lessons/" + id + ".pdf"
}

// ownFile returns the URL of the file uploaded for lesson, or "" when the
// lesson links to a document it does not own.
func (s *LessonService) ownFile(lesson *models.Lesson) string {
	if s.deps.Files == nil {
		return ""
	}
	if rel, ok := s.deps.Files.RelativeFromURL(lesson.PDFURL); ok && rel == lessonFile(lesson.ID) {
		return lesson.PDFURL
	}
	return ""
}

// hostedURL accepts only absolute http(s) links; local files enter through Upload.
func hostedURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "pdf_url must be an absolute http(s) URL")
	}
	return raw, nil
}

func (s *LessonService) find(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.deps.Lessons.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, "failed to load lesson")
	}
	return lesson, nil
}

func (s *LessonService) mapErr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	return internalError(err, message)
}
