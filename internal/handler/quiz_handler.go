package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/formation-lms-api/internal/models"
	"github.com/noah-isme/formation-lms-api/internal/service"
	"github.com/noah-isme/formation-lms-api/pkg/response"
)

type quizService interface {
	Create(ctx context.Context, actor service.Actor, courseID string, req models.CreateQuizRequest) (*models.Quiz, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.Quiz, error)
	Delete(ctx context.Context, actor service.Actor, id string) error
	Submit(ctx context.Context, actor service.Actor, quizID string, req models.SubmitQuizRequest) (*models.SubmitQuizResult, error)
}

type gradingService interface {
	Finalize(ctx context.Context, actor service.Actor, courseID string, meta service.AuditMeta) (*models.FinalizeResult, error)
	CourseResult(ctx context.Context, actor service.Actor, courseID string) (*models.CourseResult, error)
	FormationResult(ctx context.Context, actor service.Actor, formationID string) (*models.FormationResult, error)
	StudentResults(ctx context.Context, actor service.Actor) (*models.StudentResults, error)
}

// QuizHandler serves quiz authoring, submissions and results.
type QuizHandler struct {
	quizzes quizService
	grading gradingService
}

// NewQuizHandler constructs a QuizHandler.
func NewQuizHandler(quizzes quizService, grading gradingService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes, grading: grading}
}

// Create godoc
// @Summary Create quiz
// @Description Questions need at least two choices and one correct choice
// @Tags Quizzes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body models.CreateQuizRequest true "Quiz payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses/{id}/quizzes [post]
func (h *QuizHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.CreateQuizRequest
	if !bindJSON(c, &req, "invalid quiz payload") {
		return
	}
	quiz, err := h.quizzes.Create(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quiz)
}

// Get godoc
// @Summary Get quiz
// @Description Correct answers are hidden from students
// @Tags Quizzes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /quizzes/{id} [get]
func (h *QuizHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	quiz, err := h.quizzes.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, quiz)
}

// Delete godoc
// @Summary Delete quiz
// @Tags Quizzes
// @Security BearerAuth
// @Param id path string true "Quiz ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /quizzes/{id} [delete]
func (h *QuizHandler) Delete(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	if err := h.quizzes.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit answers
// @Description Replaces any previous submission for the quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Quiz ID"
// @Param payload body models.SubmitQuizRequest true "Answers"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /quizzes/{id}/submit [post]
func (h *QuizHandler) Submit(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.SubmitQuizRequest
	if !bindJSON(c, &req, "invalid submission payload") {
		return
	}
	result, err := h.quizzes.Submit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Finalize godoc
// @Summary Finalize course
// @Description Locks answers, scores the course and awards badge or certificate
// @Tags Results
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses/{id}/finalize [post]
func (h *QuizHandler) Finalize(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	result, err := h.grading.Finalize(c.Request.Context(), actor, c.Param("id"), auditMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// CourseResult godoc
// @Summary Get course result
// @Tags Results
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/result [get]
func (h *QuizHandler) CourseResult(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	result, err := h.grading.CourseResult(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// FormationResult godoc
// @Summary Get formation result
// @Tags Results
// @Produce json
// @Security BearerAuth
// @Param id path string true "Formation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /formations/{id}/result [get]
func (h *QuizHandler) FormationResult(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	result, err := h.grading.FormationResult(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// MyResults godoc
// @Summary List own results
// @Tags Results
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /students/me/results [get]
func (h *QuizHandler) MyResults(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	results, err := h.grading.StudentResults(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, results)
}
