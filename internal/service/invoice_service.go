package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/formation-lms-api/internal/models"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
	"github.com/noah-isme/formation-lms-api/pkg/export"
	"github.com/noah-isme/formation-lms-api/pkg/jobs"
	"github.com/noah-isme/formation-lms-api/pkg/storage"
)

// InvoicePDFJob is the queue job type rendering an invoice document.
const InvoicePDFJob = "invoice.pdf"

type invoiceRepository interface {
	FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error)
	ListByStudent(ctx context.Context, studentID string, page, pageSize int) ([]models.InvoiceDetail, int, error)
	UpdatePDF(ctx context.Context, id, url string) error
}

// InvoiceRenderer draws an invoice document.
type InvoiceRenderer interface {
	Invoice(doc export.InvoiceDocument) ([]byte, error)
}

// URLSigner issues and verifies download tokens.
type URLSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string) (resourceID, relPath string, expiresAt time.Time, err error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// InvoiceDeps groups the collaborators of InvoiceService. Files must point at
// private storage since invoices are only served through signed links.
type InvoiceDeps struct {
	Invoices invoiceRepository
	Files    FileStore
	Renderer InvoiceRenderer
	Signer   URLSigner
	Queue    jobEnqueuer
	Audit    auditWriter
	Metrics  documentRecorder
}

// InvoiceService renders and serves invoice documents.
type InvoiceService struct {
	deps         InvoiceDeps
	downloadPath string
	currency     string
	logger       *zap.Logger
}

// NewInvoiceService constructs an InvoiceService. downloadPath is the public
// route streaming a signed invoice, for example /api/v1/invoices/download.
func NewInvoiceService(deps InvoiceDeps, downloadPath string, logger *zap.Logger) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{deps: deps, downloadPath: downloadPath, currency: "EUR", logger: logger}
}

// UseQueue attaches the worker queue once it has been started with HandleJob
// registered.
func (s *InvoiceService) UseQueue(queue jobEnqueuer) {
	s.deps.Queue = queue
}

func invoicePath(id string) string { return "invoices/" + id + ".pdf" }

// Schedule queues the PDF for rendering, falling back to inline rendering
// when no queue is configured or it refuses the job.
func (s *InvoiceService) Schedule(ctx context.Context, invoiceID string) {
	if s.deps.Queue != nil {
		err := s.deps.Queue.Enqueue(jobs.Job{ID: invoiceID, Type: InvoicePDFJob, Payload: invoiceID})
		if err == nil {
			return
		}
		s.logger.Warn("invoice job not queued, rendering inline", zap.String("invoice_id", invoiceID), zap.Error(err))
	}
	if err := s.Render(ctx, invoiceID); err != nil {
		s.logger.Warn("failed to render invoice", zap.String("invoice_id", invoiceID), zap.Error(err))
	}
}

// HandleJob is the queue handler for InvoicePDFJob.
func (s *InvoiceService) HandleJob(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok || id == "" {
		return fmt.Errorf("invoice job %s: invalid payload", job.ID)
	}
	return s.Render(ctx, id)
}

// Render draws the invoice, stores it and records its path.
func (s *InvoiceService) Render(ctx context.Context, invoiceID string) error {
	detail, err := s.deps.Invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("load invoice %s: %w", invoiceID, err)
	}
	_, err = s.render(ctx, detail)
	return err
}

func (s *InvoiceService) render(ctx context.Context, detail *models.InvoiceDetail) (string, error) {
	rel := invoicePath(detail.ID)
	data, err := s.deps.Renderer.Invoice(export.InvoiceDocument{
		Number:         detail.Number,
		IssuedAt:       detail.IssuedAt,
		StudentName:    detail.StudentName,
		StudentEmail:   detail.StudentEmail,
		FormationTitle: detail.FormationTitle,
		FormationType:  string(detail.FormationType),
		FormateurName:  detail.FormateurName,
		Amount:         detail.Amount,
		Currency:       s.currency,
	})
	if err == nil {
		_, err = s.deps.Files.Save(rel, data)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordDocument("invoice", err)
	}
	if err != nil {
		return "", fmt.Errorf("render invoice %s: %w", detail.ID, err)
	}
	if err := s.deps.Invoices.UpdatePDF(ctx, detail.ID, rel); err != nil {
		return "", fmt.Errorf("record invoice pdf %s: %w", detail.ID, err)
	}
	return rel, nil
}

// Get returns an invoice visible to the actor.
func (s *InvoiceService) Get(ctx context.Context, actor Actor, id string) (*models.InvoiceDetail, error) {
	detail, err := s.deps.Invoices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, internalError(err, "failed to load invoice")
	}
	if !canSeeInvoice(actor, detail) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invoice belongs to another account")
	}
	return detail, nil
}

func canSeeInvoice(actor Actor, detail *models.InvoiceDetail) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.Role == models.RoleStudent:
		return detail.StudentID == actor.ID
	case actor.Role == models.RoleFormateur:
		return detail.FormateurID == actor.ID
	}
	return false
}

// ListMine returns the invoices billed to the actor.
func (s *InvoiceService) ListMine(ctx context.Context, actor Actor, page, pageSize int) ([]models.InvoiceDetail, *models.Pagination, error) {
	page, pageSize = normalizePage(page, pageSize)
	items, total, err := s.deps.Invoices.ListByStudent(ctx, actor.ID, page, pageSize)
	if err != nil {
		return nil, nil, internalError(err, "failed to list invoices")
	}
	if items == nil {
		items = []models.InvoiceDetail{}
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// DownloadURL issues a short-lived signed link to the invoice PDF.
func (s *InvoiceService) DownloadURL(ctx context.Context, actor Actor, id string, meta AuditMeta) (*models.InvoiceDownload, error) {
	detail, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.deps.Signer.Generate(detail.ID, invoicePath(detail.ID))
	if err != nil {
		return nil, internalError(err, "failed to sign download url")
	}
	recordAudit(ctx, s.deps.Audit, s.logger, meta, models.AuditActionInvoiceDownloadURL, "invoice", detail.ID, map[string]interface{}{
		"expires_at": expiresAt,
	})
	return &models.InvoiceDownload{URL: s.downloadPath + "?token=" + url.QueryEscape(token), ExpiresAt: expiresAt}, nil
}

// Open verifies a download token and returns the invoice file, rendering it
// first when it is missing from storage. The caller closes the file.
func (s *InvoiceService) Open(ctx context.Context, token string) (*os.File, string, error) {
	id, rel, _, err := s.deps.Signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "download link expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	if rel != invoicePath(id) {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	detail, err := s.deps.Invoices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, "", internalError(err, "failed to load invoice")
	}
	if !s.deps.Files.Exists(rel) {
		if _, err := s.render(ctx, detail); err != nil {
			return nil, "", internalError(err, "failed to render invoice")
		}
	}
	file, err := s.deps.Files.Open(rel)
	if err != nil {
		return nil, "", internalError(err, "failed to open invoice")
	}
	return file, detail.Number + ".pdf", nil
}
