package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/service"
	"github.com/noah-isme/formation-lms-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, actor service.Actor, formationID string) (*models.Enrollment, error)
	ListMine(ctx context.Context, actor service.Actor, page, pageSize int) ([]models.EnrollmentDetail, *models.Pagination, error)
	ListForFormateur(ctx context.Context, actor service.Actor, status models.EnrollmentStatus, page, pageSize int) ([]models.EnrollmentDetail, *models.Pagination, error)
	Approve(ctx context.Context, actor service.Actor, id string, meta service.AuditMeta) (*models.EnrollmentDecision, error)
	Reject(ctx context.Context, actor service.Actor, id string, meta service.AuditMeta) (*models.EnrollmentDecision, error)
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Enroll godoc
// @Summary Request enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Formation ID"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /formations/{id}/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Mine godoc
// @Summary List own enrollments
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students/me/enrollments [get]
func (h *EnrollmentHandler) Mine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	items, pagination, err := h.enrollments.ListMine(c.Request.Context(), actor, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Formateur godoc
// @Summary List enrollments on own formations
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /formateur/enrollments [get]
func (h *EnrollmentHandler) Formateur(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	status := models.EnrollmentStatus(strings.ToUpper(c.Query("status")))
	items, pagination, err := h.enrollments.ListForFormateur(c.Request.Context(), actor, status, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Approve godoc
// @Summary Approve enrollment
// @Description Issues the invoice and schedules its PDF
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enrollments/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	h.decide(c, h.enrollments.Approve)
}

// Reject godoc
// @Summary Reject enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enrollments/{id}/reject [post]
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	h.decide(c, h.enrollments.Reject)
}

func (h *EnrollmentHandler) decide(c *gin.Context, fn func(context.Context, service.Actor, string, service.AuditMeta) (*models.EnrollmentDecision, error)) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	decision, err := fn(c.Request.Context(), actor, c.Param("id"), auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, decision)
}
