package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/repository"
	"github.com/noah-isme/formation-lms-api/pkg/database"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	Decide(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus, decidedBy string, at time.Time) error
}

type invoiceCreator interface {
	Create(ctx context.Context, exec sqlx.ExtContext, invoice *models.Invoice) error
}

// InvoiceScheduler queues rendering of an issued invoice document.
type InvoiceScheduler interface {
	Schedule(ctx context.Context, invoiceID string)
}

// EnrollmentDeps groups the collaborators of EnrollmentService.
type EnrollmentDeps struct {
	Formations  formationFinder
	Enrollments enrollmentRepository
	Invoices    invoiceCreator
	Scheduler   InvoiceScheduler
	Audit       auditWriter
	Tx          database.TxBeginner
	Cache       *CacheService
}

// EnrollmentService handles enrollment requests and their approval.
type EnrollmentService struct {
	deps   EnrollmentDeps
	logger *zap.Logger
	now    func() time.Time
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(deps EnrollmentDeps, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{deps: deps, logger: logger, now: time.Now}
}

// Enroll files a PENDING request for a published formation.
func (s *EnrollmentService) Enroll(ctx context.Context, actor Actor, formationID string) (*models.Enrollment, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can enroll")
	}
	formation, err := contentGuard{formations: s.deps.Formations}.formation(ctx, formationID)
	if err != nil {
		return nil, err
	}
	if !formation.Published {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "formation is not published")
	}
	enrollment := &models.Enrollment{StudentID: actor.ID, FormationID: formationID, Status: models.EnrollmentPending}
	if err := s.deps.Enrollments.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "already enrolled in this formation")
		}
		return nil, internalError(err, "failed to create enrollment")
	}
	s.deps.Cache.InvalidateAnalytics(ctx)
	return enrollment, nil
}

// ListMine returns the actor's own enrollments.
func (s *EnrollmentService) ListMine(ctx context.Context, actor Actor, page, pageSize int) ([]models.EnrollmentDetail, *models.Pagination, error) {
	return s.list(ctx, models.EnrollmentFilter{StudentID: actor.ID, Page: page, PageSize: pageSize})
}

// ListForFormateur returns enrollments on formations the actor owns.
func (s *EnrollmentService) ListForFormateur(ctx context.Context, actor Actor, status models.EnrollmentStatus, page, pageSize int) ([]models.EnrollmentDetail, *models.Pagination, error) {
	return s.list(ctx, models.EnrollmentFilter{FormateurID: actor.ID, Status: status, Page: page, PageSize: pageSize})
}

// ListAll returns every enrollment matching filter.
func (s *EnrollmentService) ListAll(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	return s.list(ctx, filter)
}

func (s *EnrollmentService) list(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	switch filter.Status {
	case "", models.EnrollmentPending, models.EnrollmentApproved, models.EnrollmentRejected:
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment status")
	}
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	items, total, err := s.deps.Enrollments.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list enrollments")
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Approve accepts a pending enrollment and issues its invoice atomically.
func (s *EnrollmentService) Approve(ctx context.Context, actor Actor, id string, meta AuditMeta) (*models.EnrollmentDecision, error) {
	return s.decide(ctx, actor, id, models.EnrollmentApproved, meta)
}

// Reject declines a pending enrollment.
func (s *EnrollmentService) Reject(ctx context.Context, actor Actor, id string, meta AuditMeta) (*models.EnrollmentDecision, error) {
	return s.decide(ctx, actor, id, models.EnrollmentRejected, meta)
}

func (s *EnrollmentService) decide(ctx context.Context, actor Actor, id string, status models.EnrollmentStatus, meta AuditMeta) (*models.EnrollmentDecision, error) {
	detail, err := s.deps.Enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, internalError(err, "failed to load enrollment")
	}
	if !actor.IsAdmin() && !(actor.Role == models.RoleFormateur && detail.FormateurID == actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not own this formation")
	}
	errNotPending := appErrors.Clone(appErrors.ErrInvalidState, "enrollment is not pending")
	if detail.Status != models.EnrollmentPending {
		return nil, errNotPending
	}

	now := s.now().UTC()
	var invoice *models.Invoice
	err = database.WithTx(ctx, s.deps.Tx, func(tx *sqlx.Tx) error {
		if err := s.deps.Enrollments.Decide(ctx, tx, id, status, actor.ID, now); err != nil {
			return err
		}
		if status != models.EnrollmentApproved {
			return nil
		}
		invoice = &models.Invoice{
			EnrollmentID: id,
			Number:       invoiceNumber(now),
			Amount:       detail.FormationPrice,
			IssuedAt:     now,
		}
		return s.deps.Invoices.Create(ctx, tx, invoice)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotPending
		}
		return nil, internalError(err, "failed to record enrollment decision")
	}

	enrollment := detail.Enrollment
	enrollment.Status = status
	enrollment.DecidedBy = &actor.ID
	enrollment.DecidedAt = &now

	action := models.AuditActionEnrollmentReject
	if status == models.EnrollmentApproved {
		action = models.AuditActionEnrollmentApprove
	}
	recordAudit(ctx, s.deps.Audit, s.logger, meta, action, "enrollment", id, map[string]interface{}{
		"status":       status,
		"student_id":   detail.StudentID,
		"formation_id": detail.FormationID,
	})
	if invoice != nil {
		recordAudit(ctx, s.deps.Audit, s.logger, meta, models.AuditActionInvoiceIssued, "invoice", invoice.ID, map[string]interface{}{
			"number": invoice.Number,
			"amount": invoice.Amount,
		})
		if s.deps.Scheduler != nil {
			s.deps.Scheduler.Schedule(ctx, invoice.ID)
		}
	}
	s.deps.Cache.InvalidateAnalytics(ctx)
	return &models.EnrollmentDecision{Enrollment: enrollment, Invoice: invoice}, nil
}

// invoiceNumber formats INV-YYYYMM-<8 hex>.
func invoiceNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", at.Format("200601"), suffix)
}
