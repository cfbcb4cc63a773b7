package response

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formation-lms-api/internal/models"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

func serve(h gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestJSONEnvelope(t *testing.T) {
	rec := serve(func(c *gin.Context) {
		JSON(c, http.StatusOK, []string{"f1"}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, map[string]interface{}{"cache_hit": true})
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"data":["f1"],"pagination":{"page":1,"page_size":20,"total_count":1},"meta":{"cache_hit":true}}`, rec.Body.String())
}

func TestErrorHidesCause(t *testing.T) {
	rec := serve(func(c *gin.Context) {
		Error(c, assert.AnError)
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), appErrors.ErrInternal.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestErrorCarriesFields(t *testing.T) {
	rec := serve(func(c *gin.Context) {
		appErr := appErrors.Clone(appErrors.ErrValidation, "invalid formation payload")
		appErr.Fields = map[string]string{"location": "is required"}
		Error(c, appErr)
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fields":{"location":"is required"}`)
}

func TestAttachmentAndStream(t *testing.T) {
	rec := serve(func(c *gin.Context) {
		Attachment(c, "revenue 2024.csv", "text/csv", []byte("Month,Revenue\n"))
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="revenue 2024.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Month,Revenue\n", rec.Body.String())

	rec = serve(func(c *gin.Context) {
		Stream(c, "INV-202403-ABCDEF01.pdf", "application/pdf", 5, strings.NewReader("%PDF-"))
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=INV-202403-ABCDEF01.pdf", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
