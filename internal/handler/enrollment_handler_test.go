package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/service"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

type enrollmentServiceStub struct {
	status   models.EnrollmentStatus
	page     int
	size     int
	decided  []string
	lastMeta service.AuditMeta
}

func (s *enrollmentServiceStub) Enroll(ctx context.Context, actor service.Actor, formationID string) (*models.Enrollment, error) {
	if formationID == "taken" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "already enrolled")
	}
	return &models.Enrollment{ID: "e1", StudentID: actor.ID, FormationID: formationID, Status: models.EnrollmentPending}, nil
}

func (s *enrollmentServiceStub) ListMine(ctx context.Context, actor service.Actor, page, pageSize int) ([]models.EnrollmentDetail, *models.Pagination, error) {
	s.page, s.size = page, pageSize
	return []models.EnrollmentDetail{}, &models.Pagination{Page: page, PageSize: pageSize}, nil
}

func (s *enrollmentServiceStub) ListForFormateur(ctx context.Context, actor service.Actor, status models.EnrollmentStatus, page, pageSize int) ([]models.EnrollmentDetail, *models.Pagination, error) {
	s.status = status
	return []models.EnrollmentDetail{}, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: 0}, nil
}

func (s *enrollmentServiceStub) Approve(ctx context.Context, actor service.Actor, id string, meta service.AuditMeta) (*models.EnrollmentDecision, error) {
	s.decided = append(s.decided, "approve:"+id)
	s.lastMeta = meta
	return &models.EnrollmentDecision{
		Enrollment: models.Enrollment{ID: id, Status: models.EnrollmentApproved},
		Invoice:    &models.Invoice{ID: "i1", EnrollmentID: id, Number: "INV-1"},
	}, nil
}

func (s *enrollmentServiceStub) Reject(ctx context.Context, actor service.Actor, id string, meta service.AuditMeta) (*models.EnrollmentDecision, error) {
	s.decided = append(s.decided, "reject:"+id)
	return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment is not pending")
}

func newEnrollmentRouter() (*enrollmentServiceStub, http.Handler) {
	svc := &enrollmentServiceStub{}
	h := NewEnrollmentHandler(svc)
	r := newTestRouter()
	r.POST("/formations/:id/enroll", h.Enroll)
	r.GET("/students/me/enrollments", h.Mine)
	r.GET("/formateur/enrollments", h.Formateur)
	r.POST("/enrollments/:id/approve", h.Approve)
	r.POST("/enrollments/:id/reject", h.Reject)
	return svc, r
}

func TestEnrollmentHandlerEnroll(t *testing.T) {
	_, router := newEnrollmentRouter()

	req, _ := http.NewRequest(http.MethodPost, "/formations/f1/enroll", nil)
	req.Header.Set("X-Test-Role", string(models.RoleStudent))
	req.Header.Set("X-Test-User", "s1")
	resp := performRequest(router, req)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"PENDING"`)

	req, _ = http.NewRequest(http.MethodPost, "/formations/taken/enroll", nil)
	req.Header.Set("X-Test-Role", string(models.RoleStudent))
	resp = performRequest(router, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "already enrolled")
}

func TestEnrollmentHandlerListsParseQuery(t *testing.T) {
	svc, router := newEnrollmentRouter()

	req, _ := http.NewRequest(http.MethodGet, "/formateur/enrollments?status=pending&page=2&limit=5", nil)
	req.Header.Set("X-Test-Role", string(models.RoleFormateur))
	resp := performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, models.EnrollmentPending, svc.status)
	assert.Contains(t, resp.Body.String(), `"pagination"`)

	req, _ = http.NewRequest(http.MethodGet, "/students/me/enrollments?page=3&limit=7", nil)
	req.Header.Set("X-Test-Role", string(models.RoleStudent))
	resp = performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 3, svc.page)
	assert.Equal(t, 7, svc.size)
}

func TestEnrollmentHandlerDecisions(t *testing.T) {
	svc, router := newEnrollmentRouter()

	req, _ := http.NewRequest(http.MethodPost, "/enrollments/e1/approve", nil)
	req.Header.Set("X-Test-Role", string(models.RoleFormateur))
	req.Header.Set("X-Test-User", "t1")
	resp := performRequest(router, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"number":"INV-1"`)
	assert.Equal(t, "t1", svc.lastMeta.ActorID)

	req, _ = http.NewRequest(http.MethodPost, "/enrollments/e1/reject", nil)
	req.Header.Set("X-Test-Role", string(models.RoleFormateur))
	resp = performRequest(router, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "INVALID_STATE")
	assert.Equal(t, []string{"approve:e1", "reject:e1"}, svc.decided)

	req, _ = http.NewRequest(http.MethodPost, "/enrollments/e2/approve", nil)
	resp = performRequest(router, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Len(t, svc.decided, 2)
}
