package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/service"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
	"github.com/noah-isme/formation-lms-api/pkg/response"
)

type analyticsService interface {
	Overview(ctx context.Context) (*models.AdminOverview, bool, error)
	Revenue(ctx context.Context, year int) (*models.MonthlyRevenue, bool, error)
	TopFormations(ctx context.Context, limit int) ([]models.TopFormation, bool, error)
	Formateur(ctx context.Context, actor service.Actor) (*models.FormateurAnalytics, bool, error)
	ExportRevenue(ctx context.Context, year int, format string) (*models.RevenueExport, error)
	SystemMetrics() models.SystemMetrics
}

// AnalyticsHandler exposes dashboard-ready analytics endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Overview godoc
// @Summary Platform overview
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	overview, hit, err := h.analytics.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, overview, hit)
}

// Revenue godoc
// @Summary Monthly revenue
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param year query int false "Year, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/analytics/revenue [get]
func (h *AnalyticsHandler) Revenue(c *gin.Context) {
	year, ok := yearParam(c)
	if !ok {
		return
	}
	revenue, hit, err := h.analytics.Revenue(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, revenue, hit)
}

// TopFormations godoc
// @Summary Top formations
// @Description Ranked by approved enrollments
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of formations, default 5"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/analytics/top-formations [get]
func (h *AnalyticsHandler) TopFormations(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a number"))
			return
		}
		limit = parsed
	}
	top, hit, err := h.analytics.TopFormations(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, top, hit)
}

// ExportRevenue godoc
// @Summary Export monthly revenue
// @Tags Analytics
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param year query int false "Year"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/analytics/revenue/export [get]
func (h *AnalyticsHandler) ExportRevenue(c *gin.Context) {
	year, ok := yearParam(c)
	if !ok {
		return
	}
	out, err := h.analytics.ExportRevenue(c.Request.Context(), year, c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, out.Filename, out.ContentType, out.Data)
}

// System godoc
// @Summary System metrics snapshot
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.OK(c, h.analytics.SystemMetrics())
}

// Formateur godoc
// @Summary Own formation analytics
// @Tags Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /formateur/analytics [get]
func (h *AnalyticsHandler) Formateur(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	out, hit, err := h.analytics.Formateur(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, out, hit)
}

func yearParam(c *gin.Context) (int, bool) {
	raw := c.Query("year")
	if raw == "" {
		return 0, true
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be a number"))
		return 0, false
	}
	return year, true
}
