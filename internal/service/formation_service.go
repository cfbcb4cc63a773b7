package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/pkg/database"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

type formationRepository interface {
	Create(ctx context.Context, formation *models.Formation) error
	FindByID(ctx context.Context, id string) (*models.Formation, error)
	FindDetail(ctx context.Context, id string) (*models.FormationDetail, error)
	List(ctx context.Context, filter models.FormationFilter) ([]models.FormationDetail, int, error)
	Update(ctx context.Context, formation *models.Formation) error
	MarkPublished(ctx context.Context, id string) error
}

type formationCourseLister interface {
	ListByFormation(ctx context.Context, exec sqlx.ExtContext, formationID string, publishedOnly bool) ([]models.Course, error)
}

type formationCascade interface {
	DeleteFormation(ctx context.Context, exec sqlx.ExtContext, formationID string) ([]string, error)
}

type authorLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// FormationDeps groups the collaborators of FormationService.
type FormationDeps struct {
	Formations formationRepository
	Courses    formationCourseLister
	Users      authorLookup
	Cascade    formationCascade
	Audit      auditWriter
	Tx         database.TxBeginner
	Files      FileStore
	Cache      *CacheService
}

// FormationService implements the formation catalogue and authoring workflow.
type FormationService struct {
	deps      FormationDeps
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFormationService constructs a FormationService.
func NewFormationService(deps FormationDeps, validate *validator.Validate, logger *zap.Logger) *FormationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FormationService{deps: deps, validator: validate, logger: logger}
}

func (s *FormationService) guard() contentGuard {
	return contentGuard{formations: s.deps.Formations}
}

// Create stores a new unpublished formation owned by an approved formateur.
func (s *FormationService) Create(ctx context.Context, actor Actor, req models.FormationRequest) (*models.Formation, error) {
	if err := requireApprovedAuthor(ctx, s.deps.Users, actor); err != nil {
		return nil, err
	}
	formation := &models.Formation{FormateurID: actor.ID}
	if err := s.apply(formation, req); err != nil {
		return nil, err
	}
	if err := s.deps.Formations.Create(ctx, formation); err != nil {
		return nil, internalError(err, "failed to create formation")
	}
	s.deps.Cache.InvalidateAnalytics(ctx)
	return formation, nil
}

// Catalog lists published formations for anyone.
func (s *FormationService) Catalog(ctx context.Context, filter models.FormationFilter) ([]models.FormationDetail, *models.Pagination, error) {
	published := true
	filter.Published = &published
	filter.FormateurID = ""
	return s.list(ctx, filter)
}

// Mine lists every formation the formateur owns regardless of state.
func (s *FormationService) Mine(ctx context.Context, actor Actor, filter models.FormationFilter) ([]models.FormationDetail, *models.Pagination, error) {
	filter.FormateurID = actor.ID
	return s.list(ctx, filter)
}

func (s *FormationService) list(ctx context.Context, filter models.FormationFilter) ([]models.FormationDetail, *models.Pagination, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	items, total, err := s.deps.Formations.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list formations")
	}
	if items == nil {
		items = []models.FormationDetail{}
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a formation with its courses. Unpublished formations are only
// visible to their owner and admins; students see published courses only.
func (s *FormationService) Get(ctx context.Context, actor Actor, id string) (*models.FormationDetail, error) {
	detail, err := s.deps.Formations.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "formation not found")
		}
		return nil, internalError(err, "failed to load formation")
	}
	manager := actor.CanManage(&detail.Formation)
	if !detail.Published && !manager {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "formation not found")
	}
	courses, err := s.deps.Courses.ListByFormation(ctx, nil, id, !manager)
	if err != nil {
		return nil, internalError(err, "failed to load courses")
	}
	if courses == nil {
		courses = []models.Course{}
	}
	detail.Courses = courses
	return detail, nil
}

// Update rewrites an unpublished formation owned by the actor.
func (s *FormationService) Update(ctx context.Context, actor Actor, id string, req models.FormationRequest) (*models.Formation, error) {
	formation, err := s.guard().ownedFormation(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if formation.Published {
		return nil, errFormationPublished
	}
	if err := s.apply(formation, req); err != nil {
		return nil, err
	}
	if err := s.deps.Formations.Update(ctx, formation); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errFormationPublished
		}
		return nil, internalError(err, "failed to update formation")
	}
	return formation, nil
}

// Publish makes a formation visible in the catalogue. Every course must be published.
func (s *FormationService) Publish(ctx context.Context, actor Actor, id string, meta AuditMeta) (*models.Formation, error) {
	formation, err := s.guard().ownedFormation(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if formation.Published {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "formation is already published")
	}
	courses, err := s.deps.Courses.ListByFormation(ctx, nil, id, false)
	if err != nil {
		return nil, internalError(err, "failed to load courses")
	}
	if len(courses) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "formation has no course")
	}
	var drafts []string
	for _, c := range courses {
		if !c.Published {
			drafts = append(drafts, c.Title)
		}
	}
	if len(drafts) > 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "unpublished courses: "+strings.Join(drafts, ", "))
	}
	if err := s.deps.Formations.MarkPublished(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "formation changed while publishing: every course must be published")
		}
		return nil, internalError(err, "failed to publish formation")
	}
	formation.Published = true

	meta.ActorID = actor.ID
	recordAudit(ctx, s.deps.Audit, s.logger, meta, models.AuditActionFormationPublish, "formations", id, nil)
	s.deps.Cache.InvalidateAnalytics(ctx)
	return formation, nil
}

// Delete cascades a formation inside one transaction. Owners may only delete
// unpublished formations; admins may delete any.
func (s *FormationService) Delete(ctx context.Context, actor Actor, id string, meta AuditMeta) error {
	formation, err := s.guard().formation(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		if !actor.Owns(formation) {
			return appErrors.Clone(appErrors.ErrForbidden, "formation belongs to another formateur")
		}
		if formation.Published {
			return errFormationPublished
		}
	}

	var urls []string
	err = database.WithTx(ctx, s.deps.Tx, func(tx *sqlx.Tx) error {
		var txErr error
		urls, txErr = s.deps.Cascade.DeleteFormation(ctx, tx, id)
		return txErr
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "formation not found")
		}
		return internalError(err, "failed to delete formation")
	}
	removeStoredFiles(s.deps.Files, s.logger, urls...)

	meta.ActorID = actor.ID
	recordAudit(ctx, s.deps.Audit, s.logger, meta, models.AuditActionFormationDelete, "formations", id,
		map[string]interface{}{"title": formation.Title, "published": formation.Published})
	s.deps.Cache.InvalidateAnalytics(ctx)
	return nil
}

// apply validates req and copies it onto formation. ONLINE formations carry
// no location or schedule.
func (s *FormationService) apply(formation *models.Formation, req models.FormationRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid formation payload")
	}
	formation.Title = strings.TrimSpace(req.Title)
	formation.Description = req.Description
	formation.Price = req.Price
	formation.Type = req.Type

	if req.Type == models.FormationOnline {
		formation.Location, formation.StartDate, formation.EndDate = nil, nil, nil
		return nil
	}
	if req.Location == nil || strings.TrimSpace(*req.Location) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "presentiel formation requires a location")
	}
	if req.StartDate == nil || req.EndDate == nil {
		return appErrors.Clone(appErrors.ErrValidation, "presentiel formation requires start and end dates")
	}
	if req.EndDate.Before(*req.StartDate) {
		return appErrors.Clone(appErrors.ErrValidation, "end date must not precede start date")
	}
	location := strings.TrimSpace(*req.Location)
	formation.Location = &location
	formation.StartDate, formation.EndDate = req.StartDate, req.EndDate
	return nil
}

// requireApprovedAuthor loads the actor fresh so status changes apply before the token expires.
func requireApprovedAuthor(ctx context.Context, users authorLookup, actor Actor) error {
	if actor.Role != models.RoleFormateur {
		return appErrors.Clone(appErrors.ErrForbidden, "only formateurs can author formations")
	}
	user, err := users.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return internalError(err, "failed to load account")
	}
	if user.IsApprovedFormateur() {
		return nil
	}
	if user.FormateurStatus != nil && *user.FormateurStatus == models.FormateurRejected {
		return appErrors.ErrAccountRejected
	}
	return appErrors.ErrAccountPending
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
