package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/service"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
	"github.com/noah-isme/formation-lms-api/pkg/response"
)

type invoiceService interface {
	Get(ctx context.Context, actor service.Actor, id string) (*models.InvoiceDetail, error)
	ListMine(ctx context.Context, actor service.Actor, page, pageSize int) ([]models.InvoiceDetail, *models.Pagination, error)
	DownloadURL(ctx context.Context, actor service.Actor, id string, meta service.AuditMeta) (*models.InvoiceDownload, error)
	Open(ctx context.Context, token string) (*os.File, string, error)
}

// InvoiceHandler serves invoices and their signed downloads.
type InvoiceHandler struct {
	service invoiceService
}

// NewInvoiceHandler constructs an InvoiceHandler.
func NewInvoiceHandler(svc invoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: svc}
}

// Mine godoc
// @Summary List own invoices
// @Tags Invoices
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students/me/invoices [get]
func (h *InvoiceHandler) Mine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	items, pagination, err := h.service.ListMine(c.Request.Context(), actor, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get invoice
// @Tags Invoices
// @Produce json
// @Security BearerAuth
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	invoice, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, invoice)
}

// DownloadURL godoc
// @Summary Sign invoice download
// @Tags Invoices
// @Produce json
// @Security BearerAuth
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /invoices/{id}/download-url [get]
func (h *InvoiceHandler) DownloadURL(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	link, err := h.service.DownloadURL(c.Request.Context(), actor, c.Param("id"), auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

// Download godoc
// @Summary Download invoice PDF
// @Description Streams the invoice for a valid signed token
// @Tags Invoices
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /invoices/download [get]
func (h *InvoiceHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, name, err := h.service.Open(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read invoice"))
		return
	}
	response.Stream(c, name, "application/pdf", info.Size(), file)
}
