package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/service"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
)

type lessonServiceStub struct {
	uploaded   []byte
	upload     models.LessonUpload
	linked     *models.LessonRequest
	lastCourse string
}

func (s *lessonServiceStub) Upload(ctx context.Context, actor service.Actor, courseID string, in models.LessonUpload) (*models.Lesson, error) {
	s.lastCourse = courseID
	s.upload = in
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	s.uploaded = data
	return &models.Lesson{ID: "l1", CourseID: courseID, Title: in.Title, PDFURL: "/static/lessons/l1.pdf"}, nil
}

func (s *lessonServiceStub) CreateFromURL(ctx context.Context, actor service.Actor, courseID string, req models.LessonRequest) (*models.Lesson, error) {
	s.lastCourse = courseID
	s.linked = &req
	return &models.Lesson{ID: "l2", CourseID: courseID, Title: req.Title, PDFURL: req.PDFURL}, nil
}

func (s *lessonServiceStub) Get(ctx context.Context, actor service.Actor, id string) (*models.Lesson, error) {
	if id == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	return &models.Lesson{ID: id}, nil
}

func (s *lessonServiceStub) List(ctx context.Context, actor service.Actor, courseID string) ([]models.Lesson, error) {
	return []models.Lesson{{ID: "l1", CourseID: courseID}}, nil
}

func (s *lessonServiceStub) Update(ctx context.Context, actor service.Actor, id string, req models.UpdateLessonRequest) (*models.Lesson, error) {
	return &models.Lesson{ID: id, Title: req.Title}, nil
}

func (s *lessonServiceStub) Delete(ctx context.Context, actor service.Actor, id string) error {
	return nil
}

func newLessonRouter(svc *lessonServiceStub) http.Handler {
	h := NewLessonHandler(svc)
	r := newTestRouter()
	r.POST("/courses/:id/lessons", h.Create)
	r.GET("/lessons/:id", h.Get)
	r.DELETE("/lessons/:id", h.Delete)
	return r
}

func TestLessonHandlerCreateMultipart(t *testing.T) {
	svc := &lessonServiceStub{}
	router := newLessonRouter(svc)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("title", "  Intro  "))
	part, err := writer.CreateFormFile("file", "intro.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 body"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, _ := http.NewRequest(http.MethodPost, "/courses/c1/lessons", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Test-Role", string(models.RoleFormateur))
	resp := performRequest(router, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "c1", svc.lastCourse)
	assert.Equal(t, "Intro", svc.upload.Title)
	assert.Equal(t, "intro.pdf", svc.upload.Filename)
	assert.Equal(t, "%PDF-1.4 body", string(svc.uploaded))
	assert.Nil(t, svc.linked)
}

func TestLessonHandlerCreateMultipartWithoutFile(t *testing.T) {
	router := newLessonRouter(&lessonServiceStub{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("title", "Intro"))
	require.NoError(t, writer.Close())

	req, _ := http.NewRequest(http.MethodPost, "/courses/c1/lessons", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Test-Role", string(models.RoleFormateur))
	resp := performRequest(router, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestLessonHandlerCreateFromJSON(t *testing.T) {
	svc := &lessonServiceStub{}
	router := newLessonRouter(svc)

	req, _ := http.NewRequest(http.MethodPost, "/courses/c1/lessons", bytes.NewBufferString(`{"title":"Slides","pdf_url":"https://cdn.example.com/slides.pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Role", string(models.RoleAdmin))
	resp := performRequest(router, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.NotNil(t, svc.linked)
	assert.Equal(t, "https://cdn.example.com/slides.pdf", svc.linked.PDFURL)
	assert.Nil(t, svc.upload.Body)
}

func TestLessonHandlerErrors(t *testing.T) {
	router := newLessonRouter(&lessonServiceStub{})

	req, _ := http.NewRequest(http.MethodPost, "/courses/c1/lessons", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	req, _ = http.NewRequest(http.MethodGet, "/lessons/missing", nil)
	req.Header.Set("X-Test-Role", string(models.RoleStudent))
	resp = performRequest(router, req)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	req, _ = http.NewRequest(http.MethodDelete, "/lessons/l1", nil)
	req.Header.Set("X-Test-Role", string(models.RoleFormateur))
	resp = performRequest(router, req)
	assert.Equal(t, http.StatusNoContent, resp.Code)
}
