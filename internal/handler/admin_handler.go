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

type adminService interface {
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error)
	CreateUser(ctx context.Context, req models.CreateUserRequest, meta service.AuditMeta) (*models.User, error)
	UpdateFormateurStatus(ctx context.Context, id string, req models.UpdateFormateurStatusRequest, meta service.AuditMeta) (*models.User, error)
	DeleteUser(ctx context.Context, actor service.Actor, id string, meta service.AuditMeta) error
	AuditLogs(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error)
}

type formationRemover interface {
	Delete(ctx context.Context, actor service.Actor, id string, meta service.AuditMeta) error
}

type enrollmentLister interface {
	ListAll(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
}

// AdminHandler exposes account administration endpoints.
type AdminHandler struct {
	admin       adminService
	formations  formationRemover
	enrollments enrollmentLister
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(admin adminService, formations formationRemover, enrollments enrollmentLister) *AdminHandler {
	return &AdminHandler{admin: admin, formations: formations, enrollments: enrollments}
}

// ListUsers godoc
// @Summary List users
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "ADMIN, FORMATEUR or STUDENT"
// @Param formateurStatus query string false "PENDING, APPROVED or REJECTED"
// @Param search query string false "Name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var filter models.UserFilter
	filter.Page, filter.PageSize = pageParams(c)
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	if role := c.Query("role"); role != "" {
		r := models.UserRole(strings.ToUpper(role))
		filter.Role = &r
	}
	if status := c.Query("formateurStatus"); status != "" {
		s := models.FormateurStatus(strings.ToUpper(status))
		filter.FormateurStatus = &s
	}

	users, pagination, err := h.admin.ListUsers(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// CreateUser godoc
// @Summary Create user
// @Description Create an account of any role, ADMIN included
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/users [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if !bindJSON(c, &req, "invalid user payload") {
		return
	}
	user, err := h.admin.CreateUser(c.Request.Context(), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// UpdateFormateurStatus godoc
// @Summary Review formateur
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body models.UpdateFormateurStatusRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/formateurs/{id}/status [patch]
func (h *AdminHandler) UpdateFormateurStatus(c *gin.Context) {
	var req models.UpdateFormateurStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	user, err := h.admin.UpdateFormateurStatus(c.Request.Context(), c.Param("id"), req, auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// DeleteUser godoc
// @Summary Delete user
// @Description Cascades owned formations or learning records
// @Tags Admin
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.admin.DeleteUser(c.Request.Context(), actor, c.Param("id"), auditMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteFormation godoc
// @Summary Delete any formation
// @Tags Admin
// @Security BearerAuth
// @Param id path string true "Formation ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/formations/{id} [delete]
func (h *AdminHandler) DeleteFormation(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.formations.Delete(c.Request.Context(), actor, c.Param("id"), auditMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListEnrollments godoc
// @Summary List all enrollments
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param formationId query string false "Formation filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments [get]
func (h *AdminHandler) ListEnrollments(c *gin.Context) {
	formationID, ok := idQuery(c, "formationId")
	if !ok {
		return
	}
	filter := models.EnrollmentFilter{
		FormationID: formationID,
		Status:      models.EnrollmentStatus(strings.ToUpper(c.Query("status"))),
		SortOrder:   c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.enrollments.ListAll(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// AuditLogs godoc
// @Summary List audit logs
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param userId query string false "Actor filter"
// @Param action query string false "Action filter"
// @Param resource query string false "Resource filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/audit-logs [get]
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	userID, ok := idQuery(c, "userId")
	if !ok {
		return
	}
	filter := models.AuditFilter{
		UserID:   userID,
		Action:   strings.ToUpper(c.Query("action")),
		Resource: c.Query("resource"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	logs, pagination, err := h.admin.AuditLogs(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
