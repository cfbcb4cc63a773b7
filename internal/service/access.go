package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/formation-lms-api/internal/models"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

// Actor is the authenticated caller as seen by services.
type Actor struct {
	ID   string
	Role models.UserRole
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// Owns reports whether the actor is the formateur owning the formation.
func (a Actor) Owns(f *models.Formation) bool {
	return f != nil && a.Role == models.RoleFormateur && f.FormateurID == a.ID
}

// CanManage reports whether the actor may see unpublished content of the formation.
func (a Actor) CanManage(f *models.Formation) bool { return a.IsAdmin() || a.Owns(f) }

type formationFinder interface {
	FindByID(ctx context.Context, id string) (*models.Formation, error)
}

type courseFinder interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type approvalChecker interface {
	HasApproved(ctx context.Context, studentID, formationID string) (bool, error)
}

// contentGuard resolves the formation behind a piece of content and enforces
// ownership, visibility and the structural lock on published content.
type contentGuard struct {
	formations  formationFinder
	courses     courseFinder
	enrollments approvalChecker
}

var (
	errFormationPublished = appErrors.Clone(appErrors.ErrInvalidState, "formation is published and cannot be modified")
	errCoursePublished    = appErrors.Clone(appErrors.ErrInvalidState, "course is published and cannot be modified")
)

func (g contentGuard) formation(ctx context.Context, id string) (*models.Formation, error) {
	formation, err := g.formations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "formation not found")
		}
		return nil, internalError(err, "failed to load formation")
	}
	return formation, nil
}

func (g contentGuard) course(ctx context.Context, id string) (*models.Course, *models.Formation, error) {
	course, err := g.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, internalError(err, "failed to load course")
	}
	formation, err := g.formation(ctx, course.FormationID)
	if err != nil {
		return nil, nil, err
	}
	return course, formation, nil
}

// ownedFormation loads a formation the actor owns.
func (g contentGuard) ownedFormation(ctx context.Context, actor Actor, id string) (*models.Formation, error) {
	formation, err := g.formation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(formation) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "formation belongs to another formateur")
	}
	return formation, nil
}

// ownedCourse loads a course whose formation the actor owns.
func (g contentGuard) ownedCourse(ctx context.Context, actor Actor, id string) (*models.Course, *models.Formation, error) {
	course, formation, err := g.course(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !actor.Owns(formation) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another formateur")
	}
	return course, formation, nil
}

// editableCourse is ownedCourse plus the structural lock: neither the course
// nor its formation may be published.
func (g contentGuard) editableCourse(ctx context.Context, actor Actor, id string) (*models.Course, *models.Formation, error) {
	course, formation, err := g.ownedCourse(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if formation.Published {
		return nil, nil, errFormationPublished
	}
	if course.Published {
		return nil, nil, errCoursePublished
	}
	return course, formation, nil
}

// visibleCourse loads a course the actor may read: owner and admin always,
// students only for published courses of formations they are approved in.
func (g contentGuard) visibleCourse(ctx context.Context, actor Actor, id string) (*models.Course, *models.Formation, error) {
	course, formation, err := g.course(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if actor.CanManage(formation) {
		return course, formation, nil
	}
	if actor.Role != models.RoleStudent || !course.Published || !formation.Published {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if err := g.requireApproved(ctx, actor.ID, formation.ID); err != nil {
		return nil, nil, err
	}
	return course, formation, nil
}

func (g contentGuard) requireApproved(ctx context.Context, studentID, formationID string) error {
	ok, err := g.enrollments.HasApproved(ctx, studentID, formationID)
	if err != nil {
		return internalError(err, "failed to check enrollment")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "approved enrollment required")
	}
	return nil
}
