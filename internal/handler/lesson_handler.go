package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/service"
	appErrors "github.com/noah-isme/formation-lms-api/pkg/errors"
	"github.com/noah-isme/formation-lms-api/pkg/response"
)

type lessonService interface {
	Upload(ctx context.Context, actor service.Actor, courseID string, in models.LessonUpload) (*models.Lesson, error)
	CreateFromURL(ctx context.Context, actor service.Actor, courseID string, req models.LessonRequest) (*models.Lesson, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.Lesson, error)
	List(ctx context.Context, actor service.Actor, courseID string) ([]models.Lesson, error)
	Update(ctx context.Context, actor service.Actor, id string, req models.UpdateLessonRequest) (*models.Lesson, error)
	Delete(ctx context.Context, actor service.Actor, id string) error
}

// LessonHandler serves course lessons.
type LessonHandler struct {
	service lessonService
}

// NewLessonHandler constructs a LessonHandler.
func NewLessonHandler(svc lessonService) *LessonHandler {
	return &LessonHandler{service: svc}
}

// Create godoc
// @Summary Add lesson
// @Description Multipart upload of a PDF, or JSON with an already hosted pdf_url
// @Tags Lessons
// @Accept mpfd,json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param title formData string false "Lesson title"
// @Param file formData file false "PDF document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses/{id}/lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req models.LessonRequest
		if !bindJSON(c, &req, "invalid lesson payload") {
			return
		}
		lesson, err := h.service.CreateFromURL(c.Request.Context(), actor, c.Param("id"), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, lesson)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	lesson, err := h.service.Upload(c.Request.Context(), actor, c.Param("id"), models.LessonUpload{
		Title:    strings.TrimSpace(c.PostForm("title")),
		Filename: fileHeader.Filename,
		Body:     src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// List godoc
// @Summary List lessons of a course
// @Tags Lessons
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	lessons, err := h.service.List(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lessons)
}

// Get godoc
// @Summary Get lesson
// @Tags Lessons
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	lesson, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lesson)
}

// Update godoc
// @Summary Update lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lesson ID"
// @Param payload body models.UpdateLessonRequest true "Lesson payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /lessons/{id} [put]
func (h *LessonHandler) Update(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.UpdateLessonRequest
	if !bindJSON(c, &req, "invalid lesson payload") {
		return
	}
	lesson, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lesson)
}

// Delete godoc
// @Summary Delete lesson
// @Tags Lessons
// @Security BearerAuth
// @Param id path string true "Lesson ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /lessons/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
