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
	"github.com/noah-isme/formation-lms-api/internal/repository"
	"github.com/noah-isme/formation-lms-api/pkg/database"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	UpdateTitle(ctx context.Context, id, title string) error
	SetPublished(ctx context.Context, id string, published bool) error
	CountContent(ctx context.Context, courseID string) (repository.CourseContentCount, error)
}

type courseLessonLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Lesson, error)
}

type courseQuizLister interface {
	ListSummariesByCourse(ctx context.Context, courseID string) ([]models.QuizSummary, error)
}

type courseCascade interface {
	DeleteCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]string, error)
}

// CourseRules are the publication thresholds of a course.
type CourseRules struct {
	MinLessons int
	MinQuizzes int
}

// CourseDeps groups the collaborators of CourseService.
type CourseDeps struct {
	Formations  formationFinder
	Courses     courseRepository
	Lessons     courseLessonLister
	Quizzes     courseQuizLister
	Enrollments approvalChecker
	Cascade     courseCascade
	Tx          database.TxBeginner
	Files       FileStore
}

// CourseService manages courses beneath a formation.
type CourseService struct {
	deps      CourseDeps
	rules     CourseRules
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(deps CourseDeps, rules CourseRules, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if rules.MinLessons <= 0 {
		rules.MinLessons = 1
	}
	if rules.MinQuizzes <= 0 {
		rules.MinQuizzes = 3
	}
	return &CourseService{deps: deps, rules: rules, validator: validate, logger: logger}
}

func (s *CourseService) guard() contentGuard {
	return contentGuard{formations: s.deps.Formations, courses: s.deps.Courses, enrollments: s.deps.Enrollments}
}

// Create adds a course to an unpublished formation owned by the actor.
func (s *CourseService) Create(ctx context.Context, actor Actor, formationID string, req models.CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	formation, err := s.guard().ownedFormation(ctx, actor, formationID)
	if err != nil {
		return nil, err
	}
	if formation.Published {
		return nil, errFormationPublished
	}
	course := &models.Course{FormationID: formationID, Title: strings.TrimSpace(req.Title)}
	if err := s.deps.Courses.Create(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errFormationPublished
		}
		return nil, internalError(err, "failed to create course")
	}
	return course, nil
}

// Get returns a course with its lessons and quizzes.
func (s *CourseService) Get(ctx context.Context, actor Actor, id string) (*models.CourseDetail, error) {
	course, _, err := s.guard().visibleCourse(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	lessons, err := s.deps.Lessons.ListByCourse(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load lessons")
	}
	quizzes, err := s.deps.Quizzes.ListSummariesByCourse(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to load quizzes")
	}
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	if quizzes == nil {
		quizzes = []models.QuizSummary{}
	}
	return &models.CourseDetail{Course: *course, Lessons: lessons, Quizzes: quizzes}, nil
}

// Update renames a course while it and its formation are unpublished.
func (s *CourseService) Update(ctx context.Context, actor Actor, id string, req models.CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	course, _, err := s.guard().editableCourse(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	course.Title = strings.TrimSpace(req.Title)
	if err := s.deps.Courses.UpdateTitle(ctx, id, course.Title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errCoursePublished
		}
		return nil, internalError(err, "failed to update course")
	}
	return course, nil
}

// Delete cascades lessons, quizzes and results of an editable course.
func (s *CourseService) Delete(ctx context.Context, actor Actor, id string) error {
	if _, _, err := s.guard().editableCourse(ctx, actor, id); err != nil {
		return err
	}
	var urls []string
	err := database.WithTx(ctx, s.deps.Tx, func(tx *sqlx.Tx) error {
		var txErr error
		urls, txErr = s.deps.Cascade.DeleteCourse(ctx, tx, id)
		return txErr
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return internalError(err, "failed to delete course")
	}
	removeStoredFiles(s.deps.Files, s.logger, urls...)
	return nil
}

// Publish requires the minimum lesson and quiz counts.
func (s *CourseService) Publish(ctx context.Context, actor Actor, id string) (*models.Course, error) {
	course, formation, err := s.guard().ownedCourse(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if formation.Published {
		return nil, errFormationPublished
	}
	if course.Published {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "course is already published")
	}
	count, err := s.deps.Courses.CountContent(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to count course content")
	}
	if count.Lessons < s.rules.MinLessons {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("course needs at least %d lesson(s)", s.rules.MinLessons))
	}
	if count.Quizzes < s.rules.MinQuizzes {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("course needs at least %d quizzes", s.rules.MinQuizzes))
	}
	if err := s.deps.Courses.SetPublished(ctx, id, true); err != nil {
		return nil, s.publishErr(err, "failed to publish course")
	}
	course.Published = true
	return course, nil
}

// Unpublish reopens a course for editing while its formation is unpublished.
func (s *CourseService) Unpublish(ctx context.Context, actor Actor, id string) (*models.Course, error) {
	course, formation, err := s.guard().ownedCourse(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if formation.Published {
		return nil, errFormationPublished
	}
	if !course.Published {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "course is not published")
	}
	if err := s.deps.Courses.SetPublished(ctx, id, false); err != nil {
		return nil, s.publishErr(err, "failed to unpublish course")
	}
	course.Published = false
	return course, nil
}

// publishErr maps a flag write refused because the formation got published
// in the meantime.
func (s *CourseService) publishErr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errFormationPublished
	}
	return internalError(err, message)
}
