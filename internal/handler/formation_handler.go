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

type formationService interface {
	Create(ctx context.Context, actor service.Actor, req models.FormationRequest) (*models.Formation, error)
	Catalog(ctx context.Context, filter models.FormationFilter) ([]models.FormationDetail, *models.Pagination, error)
	Mine(ctx context.Context, actor service.Actor, filter models.FormationFilter) ([]models.FormationDetail, *models.Pagination, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.FormationDetail, error)
	Update(ctx context.Context, actor service.Actor, id string, req models.FormationRequest) (*models.Formation, error)
	Publish(ctx context.Context, actor service.Actor, id string, meta service.AuditMeta) (*models.Formation, error)
	Delete(ctx context.Context, actor service.Actor, id string, meta service.AuditMeta) error
}

// FormationHandler serves the catalogue and formateur authoring endpoints.
type FormationHandler struct {
	service formationService
}

// NewFormationHandler constructs a FormationHandler.
func NewFormationHandler(svc formationService) *FormationHandler {
	return &FormationHandler{service: svc}
}

func formationFilter(c *gin.Context) models.FormationFilter {
	filter := models.FormationFilter{
		Type:      models.FormationType(strings.ToUpper(c.Query("type"))),
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	return filter
}

// Create godoc
// @Summary Create formation
// @Description Approved formateurs only; PRESENTIEL requires location and dates
// @Tags Formations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.FormationRequest true "Formation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /formations [post]
func (h *FormationHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.FormationRequest
	if !bindJSON(c, &req, "invalid formation payload") {
		return
	}
	formation, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, formation)
}

// Catalog godoc
// @Summary Browse formations
// @Tags Formations
// @Produce json
// @Param type query string false "ONLINE or PRESENTIEL"
// @Param search query string false "Title search"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /formations [get]
func (h *FormationHandler) Catalog(c *gin.Context) {
	items, pagination, err := h.service.Catalog(c.Request.Context(), formationFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Mine godoc
// @Summary List own formations
// @Tags Formations
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /formateur/formations [get]
func (h *FormationHandler) Mine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.Mine(c.Request.Context(), actor, formationFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get formation
// @Description Unpublished formations are visible to their owner and admins only
// @Tags Formations
// @Produce json
// @Param id path string true "Formation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /formations/{id} [get]
func (h *FormationHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), optionalActor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Update godoc
// @Summary Update formation
// @Tags Formations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Formation ID"
// @Param payload body models.FormationRequest true "Formation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /formations/{id} [put]
func (h *FormationHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.FormationRequest
	if !bindJSON(c, &req, "invalid formation payload") {
		return
	}
	formation, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, formation)
}

// Publish godoc
// @Summary Publish formation
// @Description Requires at least one course and every course published
// @Tags Formations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Formation ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /formations/{id}/publish [post]
func (h *FormationHandler) Publish(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	formation, err := h.service.Publish(c.Request.Context(), actor, c.Param("id"), auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, formation)
}

// Delete godoc
// @Summary Delete formation
// @Tags Formations
// @Security BearerAuth
// @Param id path string true "Formation ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /formations/{id} [delete]
func (h *FormationHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id"), auditMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
