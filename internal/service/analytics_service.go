package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/formation-lms-api/internal/models"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
	"github.com/noah-isme/formation-lms-api/pkg/export"
)

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	UsersByRole(ctx context.Context) ([]models.StatusCount, error)
	PendingFormateurs(ctx context.Context) (int, error)
	FormationCounts(ctx context.Context, formateurID string) (int, int, error)
	EnrollmentsByStatus(ctx context.Context, formateurID string) ([]models.StatusCount, error)
	TotalRevenue(ctx context.Context, formateurID string) (float64, error)
	PassedFormationResults(ctx context.Context) (int, error)
	InvoicesBetween(ctx context.Context, from, to time.Time) ([]models.InvoiceAmount, error)
	TopFormations(ctx context.Context, limit int) ([]models.TopFormation, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// Revenue export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// AnalyticsService provides read-optimised access to analytics datasets with cache integration.
type AnalyticsService struct {
	repo     AnalyticsRepository
	cache    *CacheService
	metrics  *MetricsService
	csv      csvRenderer
	pdf      pdfRenderer
	currency string
	logger   *zap.Logger
	now      func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		repo:     repo,
		cache:    cache,
		metrics:  metrics,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		currency: "EUR",
		logger:   logger,
		now:      time.Now,
	}
}

// cached serves key through the cache, timing load as query on a miss. The
// boolean reports a cache hit.
func (s *AnalyticsService) cached(ctx context.Context, key, query string, dest interface{}, load func() error) (bool, error) {
	hit, err := s.cache.Remember(ctx, key, dest, func() error {
		start := time.Now()
		defer func() { s.metrics.ObserveDBQuery(query, time.Since(start)) }()
		return load()
	})
	if err != nil {
		return false, internalError(err, "failed to compute analytics")
	}
	return hit, nil
}

// Overview returns platform wide counters.
func (s *AnalyticsService) Overview(ctx context.Context) (*models.AdminOverview, bool, error) {
	var out models.AdminOverview
	hit, err := s.cached(ctx, analyticsCacheKey("overview"), "analytics_overview", &out, func() error {
		roles, err := s.repo.UsersByRole(ctx)
		if err != nil {
			return err
		}
		pending, err := s.repo.PendingFormateurs(ctx)
		if err != nil {
			return err
		}
		total, published, err := s.repo.FormationCounts(ctx, "")
		if err != nil {
			return err
		}
		statuses, err := s.repo.EnrollmentsByStatus(ctx, "")
		if err != nil {
			return err
		}
		revenue, err := s.repo.TotalRevenue(ctx, "")
		if err != nil {
			return err
		}
		completed, err := s.repo.PassedFormationResults(ctx)
		if err != nil {
			return err
		}
		byStatus := countMap(statuses, string(models.EnrollmentPending), string(models.EnrollmentApproved), string(models.EnrollmentRejected))
		out = models.AdminOverview{
			UsersByRole:         countMap(roles, string(models.RoleAdmin), string(models.RoleFormateur), string(models.RoleStudent)),
			PendingFormateurs:   pending,
			FormationsTotal:     total,
			FormationsPublished: published,
			EnrollmentsByStatus: byStatus,
			TotalRevenue:        round2(revenue),
			CompletedFormations: completed,
			CompletionRate:      percentage(completed, byStatus[string(models.EnrollmentApproved)]),
			GeneratedAt:         s.now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, hit, nil
}

// Revenue buckets the invoices of year into January..December. Zero means
// the current year.
func (s *AnalyticsService) Revenue(ctx context.Context, year int) (*models.MonthlyRevenue, bool, error) {
	if year == 0 {
		year = s.now().UTC().Year()
	}
	if year < 2000 || year > 2100 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "year must be between 2000 and 2100")
	}
	var out models.MonthlyRevenue
	hit, err := s.cached(ctx, analyticsCacheKey("revenue", strconv.Itoa(year)), "analytics_revenue", &out, func() error {
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		rows, err := s.repo.InvoicesBetween(ctx, from, from.AddDate(1, 0, 0))
		if err != nil {
			return err
		}
		out = bucketRevenue(year, rows)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, hit, nil
}

func bucketRevenue(year int, rows []models.InvoiceAmount) models.MonthlyRevenue {
	out := models.MonthlyRevenue{Year: year}
	for _, row := range rows {
		at := row.IssuedAt.UTC()
		if at.Year() != year {
			continue
		}
		out.Months[at.Month()-1] += row.Amount
		out.Total += row.Amount
	}
	for i := range out.Months {
		out.Months[i] = round2(out.Months[i])
	}
	out.Total = round2(out.Total)
	return out
}

// TopFormations ranks formations by approved enrollments.
func (s *AnalyticsService) TopFormations(ctx context.Context, limit int) ([]models.TopFormation, bool, error) {
	if limit <= 0 {
		limit = 5
	}
	if limit > 50 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "limit must not exceed 50")
	}
	out := []models.TopFormation{}
	hit, err := s.cached(ctx, analyticsCacheKey("top", strconv.Itoa(limit)), "analytics_top_formations", &out, func() error {
		rows, err := s.repo.TopFormations(ctx, limit)
		if err != nil {
			return err
		}
		if rows != nil {
			out = rows
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, hit, nil
}

// Formateur summarises the actor's own formations.
func (s *AnalyticsService) Formateur(ctx context.Context, actor Actor) (*models.FormateurAnalytics, bool, error) {
	var out models.FormateurAnalytics
	hit, err := s.cached(ctx, analyticsCacheKey("formateur", actor.ID), "analytics_formateur", &out, func() error {
		total, published, err := s.repo.FormationCounts(ctx, actor.ID)
		if err != nil {
			return err
		}
		statuses, err := s.repo.EnrollmentsByStatus(ctx, actor.ID)
		if err != nil {
			return err
		}
		revenue, err := s.repo.TotalRevenue(ctx, actor.ID)
		if err != nil {
			return err
		}
		out = models.FormateurAnalytics{
			FormationsTotal:     total,
			FormationsPublished: published,
			EnrollmentsByStatus: countMap(statuses, string(models.EnrollmentPending), string(models.EnrollmentApproved), string(models.EnrollmentRejected)),
			Revenue:             round2(revenue),
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &out, hit, nil
}

// ExportRevenue renders the monthly revenue of year as CSV or PDF.
func (s *AnalyticsService) ExportRevenue(ctx context.Context, year int, format string) (*models.RevenueExport, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	revenue, _, err := s.Revenue(ctx, year)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers:        []string{"Month", "Revenue"},
		NumericColumns: []string{"Revenue"},
		Footer:         map[string]string{"Month": "Total", "Revenue": fmt.Sprintf("%.2f", revenue.Total)},
	}
	for i, amount := range revenue.Months {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Month":   time.Month(i + 1).String(),
			"Revenue": fmt.Sprintf("%.2f", amount),
		})
	}

	name := fmt.Sprintf("revenue-%d.%s", revenue.Year, format)
	if format == ExportFormatPDF {
		data, err := s.pdf.Render(dataset, fmt.Sprintf("Revenue %d", revenue.Year), "Amounts in "+s.currency)
		if err != nil {
			return nil, internalError(err, "failed to render revenue report")
		}
		return &models.RevenueExport{Filename: name, ContentType: "application/pdf", Data: data}, nil
	}
	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, internalError(err, "failed to render revenue report")
	}
	return &models.RevenueExport{Filename: name, ContentType: "text/csv", Data: data}, nil
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{GeneratedAt: s.now().UTC()}
	}
	return s.metrics.Snapshot()
}

// countMap turns GROUP BY rows into a map seeded with zero for every key in keys.
func countMap(rows []models.StatusCount, keys ...string) map[string]int {
	out := make(map[string]int, len(keys))
	for _, k := range keys {
		out[k] = 0
	}
	for _, row := range rows {
		out[row.Key] += row.Count
	}
	return out
}
