package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

func TestAnalyticsFormationCountsScoped(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM formations WHERE formateur_id = $1")).WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "published"}).AddRow(4, 1))

	total, published, err := repo.FormationCounts(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Equal(t, 1, published)
}

func TestAnalyticsEnrollmentsByStatusGlobal(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT e.status AS key, COUNT(*) AS count FROM enrollments e GROUP BY e.status")).
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("PENDING", 2).AddRow("APPROVED", 5))

	rows, err := repo.EnrollmentsByStatus(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestAnalyticsInvoicesBetween(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	mock.ExpectQuery("FROM invoices WHERE issued_at >= \\$1").WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "issued_at"}).AddRow(100.0, from.AddDate(0, 2, 3)))

	rows, err := repo.InvoicesBetween(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, time.March, rows[0].IssuedAt.Month())
}

func TestAnalyticsTopFormationsClampsLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery("ORDER BY approved_enrollments DESC").WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"formation_id", "title", "formateur_name", "approved_enrollments", "revenue"}).AddRow("f1", "Go", "Tom", 3, 300.0))

	rows, err := repo.TopFormations(context.Background(), 500)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 300.0, rows[0].Revenue)
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "lms:", nil)
	var dest map[string]int
	err := repo.Get(context.Background(), "k", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(context.Background(), "k", 1, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
	assert.NoError(t, repo.Ping(context.Background()))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	repo := NewCacheRepository(client, "lms:", nil)
	defer repo.Close()

	var dest map[string]int
	err := repo.Get(context.Background(), "k", &dest)
	require.Error(t, err)
	assert.False(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.Contains(t, err.Error(), `cache get "k"`)
	assert.Error(t, repo.Set(context.Background(), "k", 1, time.Minute))
	assert.Error(t, repo.DeleteByPattern(context.Background(), "analytics:*"))
	assert.Error(t, repo.Ping(context.Background()))
}
