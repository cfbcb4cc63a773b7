package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/repository"
	"github.com/noah-isme/formation-lms-api/pkg/database"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
	"github.com/noah-isme/formation-lms-api/pkg/export"
)

type gradingRepository interface {
	CourseProgress(ctx context.Context, exec sqlx.ExtContext, courseID, studentID string) (models.CourseProgress, error)
	CreateCourseResult(ctx context.Context, exec sqlx.ExtContext, result *models.CourseResult) error
	FindCourseResult(ctx context.Context, courseID, studentID string) (*models.CourseResult, error)
	ListCourseResultsByFormation(ctx context.Context, exec sqlx.ExtContext, formationID, studentID string) ([]models.CourseResult, error)
	ListCourseResultsByStudent(ctx context.Context, studentID string) ([]models.CourseResult, error)
	UpdateBadgeURL(ctx context.Context, id, url string) error
	CreateFormationResult(ctx context.Context, exec sqlx.ExtContext, result *models.FormationResult) error
	FindFormationResult(ctx context.Context, formationID, studentID string) (*models.FormationResult, error)
	ListFormationResultsByStudent(ctx context.Context, studentID string) ([]models.FormationResult, error)
	UpdateCertificateURL(ctx context.Context, id, url string) error
}

type gradingFormations interface {
	formationFinder
	FindDetail(ctx context.Context, id string) (*models.FormationDetail, error)
}

type gradingCourses interface {
	courseFinder
	ListByFormation(ctx context.Context, exec sqlx.ExtContext, formationID string, publishedOnly bool) ([]models.Course, error)
}

// AchievementRenderer draws badge and certificate documents.
type AchievementRenderer interface {
	CourseBadge(doc export.AchievementDocument) ([]byte, error)
	FormationCertificate(doc export.AchievementDocument) ([]byte, error)
}

type documentRecorder interface {
	RecordDocument(kind string, err error)
}

// GradingDeps groups the collaborators of GradingService.
type GradingDeps struct {
	Formations  gradingFormations
	Courses     gradingCourses
	Users       authorLookup
	Enrollments approvalChecker
	Grading     gradingRepository
	Audit       auditWriter
	Tx          database.TxBeginner
	Files       FileStore
	Renderer    AchievementRenderer
	Metrics     documentRecorder
	Cache       *CacheService
}

// GradingService finalizes courses and awards badges and certificates.
type GradingService struct {
	deps          GradingDeps
	passThreshold float64
	logger        *zap.Logger
	now           func() time.Time
}

// NewGradingService constructs a GradingService. passThreshold is a percentage.
func NewGradingService(deps GradingDeps, passThreshold float64, logger *zap.Logger) *GradingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if passThreshold <= 0 || passThreshold > 100 {
		passThreshold = 50
	}
	return &GradingService{deps: deps, passThreshold: passThreshold, logger: logger, now: time.Now}
}

func (s *GradingService) guard() contentGuard {
	return contentGuard{formations: s.deps.Formations, courses: s.deps.Courses, enrollments: s.deps.Enrollments}
}

// Finalize scores every quiz of a course for the student. When it is the last
// course of the formation to be finalized, the formation result is written in
// the same transaction.
func (s *GradingService) Finalize(ctx context.Context, actor Actor, courseID string, meta AuditMeta) (*models.FinalizeResult, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can finalize courses")
	}
	course, formation, err := s.guard().visibleCourse(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := &models.FinalizeResult{}
	err = database.WithTx(ctx, s.deps.Tx, func(tx *sqlx.Tx) error {
		progress, err := s.deps.Grading.CourseProgress(ctx, tx, course.ID, actor.ID)
		if err != nil {
			return err
		}
		if progress.QuizCount == 0 {
			return appErrors.Clone(appErrors.ErrInvalidState, "course has no quiz")
		}
		if progress.SubmittedCount < progress.QuizCount {
			return appErrors.Clone(appErrors.ErrInvalidState, "every quiz of the course must be submitted before finalizing")
		}
		score := percentage(progress.CorrectCount, progress.QuestionCount)
		result.Course = models.CourseResult{
			CourseID:    course.ID,
			StudentID:   actor.ID,
			Score:       score,
			Passed:      score >= s.passThreshold,
			FinalizedAt: now,
		}
		if err := s.deps.Grading.CreateCourseResult(ctx, tx, &result.Course); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrInvalidState, "course already finalized")
			}
			return err
		}

		courses, err := s.deps.Courses.ListByFormation(ctx, tx, formation.ID, true)
		if err != nil {
			return err
		}
		results, err := s.deps.Grading.ListCourseResultsByFormation(ctx, tx, formation.ID, actor.ID)
		if err != nil {
			return err
		}
		done := make(map[string]models.CourseResult, len(results))
		for _, r := range results {
			done[r.CourseID] = r
		}
		total, passed := 0.0, true
		for _, c := range courses {
			r, ok := done[c.ID]
			if !ok {
				return nil
			}
			total += r.Score
			passed = passed && r.Passed
		}
		if len(courses) == 0 {
			return nil
		}
		result.Formation = &models.FormationResult{
			FormationID: formation.ID,
			StudentID:   actor.ID,
			Score:       round2(total / float64(len(courses))),
			Passed:      passed,
			CompletedAt: now,
		}
		if err := s.deps.Grading.CreateFormationResult(ctx, tx, result.Formation); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				result.Formation = nil
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		if appErr := appErrors.FromError(err); appErr.Code != appErrors.ErrInternal.Code {
			return nil, err
		}
		return nil, internalError(err, "failed to finalize course")
	}

	recordAudit(ctx, s.deps.Audit, s.logger, meta, models.AuditActionCourseFinalize, "course", course.ID, map[string]interface{}{
		"score":  result.Course.Score,
		"passed": result.Course.Passed,
	})
	s.deps.Cache.InvalidateAnalytics(ctx)
	s.award(ctx, actor.ID, course, result)
	return result, nil
}

// award renders the badge and certificate after commit. Failures leave the
// result without a document URL.
func (s *GradingService) award(ctx context.Context, studentID string, course *models.Course, result *models.FinalizeResult) {
	if !result.Course.Passed && (result.Formation == nil || !result.Formation.Passed) {
		return
	}
	doc := export.AchievementDocument{CourseTitle: course.Title, AwardedAt: result.Course.FinalizedAt}
	if student, err := s.deps.Users.FindByID(ctx, studentID); err == nil {
		doc.StudentName = student.Name
	}
	if detail, err := s.deps.Formations.FindDetail(ctx, course.FormationID); err == nil {
		doc.FormationTitle = detail.Title
		doc.FormateurName = detail.FormateurName
	}

	if result.Course.Passed {
		badge := doc
		badge.Score = result.Course.Score
		badge.Reference = result.Course.ID
		if url, ok := s.store("badge", "badges/"+result.Course.ID+".pdf", func() ([]byte, error) {
			return s.deps.Renderer.CourseBadge(badge)
		}); ok {
			if err := s.deps.Grading.UpdateBadgeURL(ctx, result.Course.ID, url); err != nil {
				s.logger.Warn("failed to record badge url", zap.String("course_result_id", result.Course.ID), zap.Error(err))
			} else {
				result.Course.BadgeURL = &url
			}
		}
	}
	if result.Formation != nil && result.Formation.Passed {
		cert := doc
		cert.CourseTitle = ""
		cert.Score = result.Formation.Score
		cert.Reference = result.Formation.ID
		cert.AwardedAt = result.Formation.CompletedAt
		if url, ok := s.store("certificate", "certificates/"+result.Formation.ID+".pdf", func() ([]byte, error) {
			return s.deps.Renderer.FormationCertificate(cert)
		}); ok {
			if err := s.deps.Grading.UpdateCertificateURL(ctx, result.Formation.ID, url); err != nil {
				s.logger.Warn("failed to record certificate url", zap.String("formation_result_id", result.Formation.ID), zap.Error(err))
			} else {
				result.Formation.CertificateURL = &url
			}
		}
	}
}

func (s *GradingService) store(kind, rel string, render func() ([]byte, error)) (string, bool) {
	if s.deps.Renderer == nil || s.deps.Files == nil {
		return "", false
	}
	data, err := render()
	if err == nil {
		_, err = s.deps.Files.Save(rel, data)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordDocument(kind, err)
	}
	if err != nil {
		s.logger.Warn("failed to produce document", zap.String("kind", kind), zap.String("path", rel), zap.Error(err))
		return "", false
	}
	return s.deps.Files.PublicURL(rel), true
}

// CourseResult returns the student's result for one course.
func (s *GradingService) CourseResult(ctx context.Context, actor Actor, courseID string) (*models.CourseResult, error) {
	result, err := s.deps.Grading.FindCourseResult(ctx, courseID, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course result not found")
		}
		return nil, internalError(err, "failed to load course result")
	}
	return result, nil
}

// FormationResult returns the student's result for one formation.
func (s *GradingService) FormationResult(ctx context.Context, actor Actor, formationID string) (*models.FormationResult, error) {
	result, err := s.deps.Grading.FindFormationResult(ctx, formationID, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "formation result not found")
		}
		return nil, internalError(err, "failed to load formation result")
	}
	return result, nil
}

// StudentResults lists every course and formation result of the actor.
func (s *GradingService) StudentResults(ctx context.Context, actor Actor) (*models.StudentResults, error) {
	courses, err := s.deps.Grading.ListCourseResultsByStudent(ctx, actor.ID)
	if err != nil {
		return nil, internalError(err, "failed to list course results")
	}
	formations, err := s.deps.Grading.ListFormationResultsByStudent(ctx, actor.ID)
	if err != nil {
		return nil, internalError(err, "failed to list formation results")
	}
	if courses == nil {
		courses = []models.CourseResult{}
	}
	if formations == nil {
		formations = []models.FormationResult{}
	}
	return &models.StudentResults{Courses: courses, Formations: formations}, nil
}

func percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
