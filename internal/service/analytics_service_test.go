package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/formation-lms-api/internal/models"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

type mockAnalyticsRepo struct {
	roles         []models.StatusCount
	statuses      []models.StatusCount
	invoices      []models.InvoiceAmount
	top           []models.TopFormation
	revenue       float64
	completed     int
	calls         int
	lastFormateur string
	err           error
}

func (m *mockAnalyticsRepo) UsersByRole(ctx context.Context) ([]models.StatusCount, error) {
	m.calls++
	return m.roles, m.err
}

func (m *mockAnalyticsRepo) PendingFormateurs(ctx context.Context) (int, error) {
	return 2, m.err
}

func (m *mockAnalyticsRepo) FormationCounts(ctx context.Context, formateurID string) (int, int, error) {
	m.lastFormateur = formateurID
	return 4, 3, m.err
}

func (m *mockAnalyticsRepo) EnrollmentsByStatus(ctx context.Context, formateurID string) ([]models.StatusCount, error) {
	return m.statuses, m.err
}

func (m *mockAnalyticsRepo) TotalRevenue(ctx context.Context, formateurID string) (float64, error) {
	return m.revenue, m.err
}

func (m *mockAnalyticsRepo) PassedFormationResults(ctx context.Context) (int, error) {
	return m.completed, m.err
}

func (m *mockAnalyticsRepo) InvoicesBetween(ctx context.Context, from, to time.Time) ([]models.InvoiceAmount, error) {
	m.calls++
	return m.invoices, m.err
}

func (m *mockAnalyticsRepo) TopFormations(ctx context.Context, limit int) ([]models.TopFormation, error) {
	m.calls++
	return m.top, m.err
}

type stubCacheRepo struct {
	store   map[string][]byte
	deleted []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.store == nil {
		return appErrors.ErrCacheMiss
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.deleted = append(s.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

func newRecordingCache() (*CacheService, *stubCacheRepo) {
	repo := &stubCacheRepo{}
	return NewCacheService(repo, nil, time.Minute, zap.NewNop(), true), repo
}

func TestAnalyticsServiceOverviewCaching(t *testing.T) {
	repo := &mockAnalyticsRepo{
		roles:     []models.StatusCount{{Key: "STUDENT", Count: 10}, {Key: "FORMATEUR", Count: 3}},
		statuses:  []models.StatusCount{{Key: "APPROVED", Count: 8}, {Key: "PENDING", Count: 1}},
		revenue:   1234.5,
		completed: 2,
	}
	cacheRepo := &stubCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewAnalyticsService(repo, cacheSvc, nil, zap.NewNop())
	ctx := context.Background()

	overview, hit, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 10, overview.UsersByRole["STUDENT"])
	assert.Equal(t, 0, overview.UsersByRole["ADMIN"])
	assert.Equal(t, 0, overview.EnrollmentsByStatus["REJECTED"])
	assert.Equal(t, 25.0, overview.CompletionRate)
	assert.Equal(t, 3, overview.FormationsPublished)

	cached, hit, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, overview.CompletionRate, cached.CompletionRate)

	cacheSvc.InvalidateAnalytics(ctx)
	_, hit, err = svc.Overview(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"analytics:*"}, cacheRepo.deleted)
}

func TestAnalyticsServiceCompletionRateWithoutApprovals(t *testing.T) {
	repo := &mockAnalyticsRepo{completed: 0}
	svc := NewAnalyticsService(repo, nil, nil, nil)

	overview, _, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Zero(t, overview.CompletionRate)
}

func TestAnalyticsServiceRevenueBuckets(t *testing.T) {
	repo := &mockAnalyticsRepo{invoices: []models.InvoiceAmount{
		{Amount: 100, IssuedAt: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		{Amount: 50.25, IssuedAt: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)},
		{Amount: 300, IssuedAt: time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)},
	}}
	svc := NewAnalyticsService(repo, nil, nil, nil)

	revenue, hit, err := svc.Revenue(context.Background(), 2024)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2024, revenue.Year)
	assert.Equal(t, 150.25, revenue.Months[0])
	assert.Equal(t, 300.0, revenue.Months[11])
	assert.Zero(t, revenue.Months[5])
	assert.Equal(t, 450.25, revenue.Total)

	_, _, err = svc.Revenue(context.Background(), 1990)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAnalyticsServiceRevenueDefaultsToCurrentYear(t *testing.T) {
	svc := NewAnalyticsService(&mockAnalyticsRepo{}, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC) }

	revenue, _, err := svc.Revenue(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2025, revenue.Year)
}

func TestAnalyticsServiceExportRevenue(t *testing.T) {
	repo := &mockAnalyticsRepo{invoices: []models.InvoiceAmount{{Amount: 120, IssuedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}}}
	svc := NewAnalyticsService(repo, nil, nil, nil)

	csvOut, err := svc.ExportRevenue(context.Background(), 2024, "csv")
	require.NoError(t, err)
	assert.Equal(t, "revenue-2024.csv", csvOut.Filename)
	lines := strings.Split(strings.TrimSpace(string(csvOut.Data)), "\n")
	require.Len(t, lines, 14)
	assert.Contains(t, lines[3], "March")
	assert.Contains(t, lines[3], "120.00")

	pdfOut, err := svc.ExportRevenue(context.Background(), 2024, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdfOut.ContentType)
	assert.True(t, strings.HasPrefix(string(pdfOut.Data), "%PDF"))

	_, err = svc.ExportRevenue(context.Background(), 2024, "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAnalyticsServiceFormateurScopedToActor(t *testing.T) {
	repo := &mockAnalyticsRepo{revenue: 99.999}
	svc := NewAnalyticsService(repo, nil, nil, nil)

	out, _, err := svc.Formateur(context.Background(), ownerActor)
	require.NoError(t, err)
	assert.Equal(t, "t1", repo.lastFormateur)
	assert.Equal(t, 100.0, out.Revenue)
	assert.Equal(t, 4, out.FormationsTotal)
}

func TestAnalyticsServiceTopFormations(t *testing.T) {
	repo := &mockAnalyticsRepo{}
	svc := NewAnalyticsService(repo, nil, nil, nil)

	top, _, err := svc.TopFormations(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, top)

	_, _, err = svc.TopFormations(context.Background(), 500)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAnalyticsServiceErrorPassthrough(t *testing.T) {
	repo := &mockAnalyticsRepo{err: assert.AnError}
	cacheSvc := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	svc := NewAnalyticsService(repo, cacheSvc, nil, zap.NewNop())

	_, _, err := svc.Overview(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAnalyticsServiceSystemMetrics(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordDocument("invoice", nil)
	svc := NewAnalyticsService(&mockAnalyticsRepo{}, nil, metrics, nil)

	snapshot := svc.SystemMetrics()
	assert.Equal(t, uint64(1), snapshot.DocumentsRendered)
}
