package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// ExamHandler exposes exam timetable endpoints.
type ExamHandler struct {
	exams *service.ExamService
}

// NewExamHandler constructs the handler.
func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// List godoc
// @Summary List exams
// @Tags Exams
// @Produce json
// @Param search query string false "Search by name"
// @Param classId query string false "Exams of a class"
// @Param status query string false "scheduled, ongoing, completed or cancelled"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	filter := models.ExamFilter{
		ListQuery: listQuery(c),
		ClassID:   strings.TrimSpace(c.Query("classId")),
		Status:    strings.ToLower(strings.TrimSpace(c.Query("status"))),
	}
	page, err := h.exams.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondPage(c, page)
}

// Get godoc
// @Summary Get exam with resolved references
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) Get(c *gin.Context) {
	view, hit, err := h.exams.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body dto.ExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /exams [post]
func (h *ExamHandler) Create(c *gin.Context) {
	var req dto.ExamRequest
	if !bindJSON(c, &req, "invalid exam payload") {
		return
	}
	result, err := h.exams.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWrite(c, http.StatusCreated, result.Exam, result.Conflicts)
}

// Update godoc
// @Summary Replace exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body dto.ExamRequest true "Exam payload"
// @Success 200 {object} response.Envelope
// @Router /exams/{id} [put]
func (h *ExamHandler) Update(c *gin.Context) {
	var req dto.ExamRequest
	if !bindJSON(c, &req, "invalid exam payload") {
		return
	}
	result, err := h.exams.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWrite(c, http.StatusOK, result.Exam, result.Conflicts)
}

// Delete godoc
// @Summary Delete exam
// @Tags Exams
// @Param id path string true "Exam ID"
// @Success 204
// @Router /exams/{id} [delete]
func (h *ExamHandler) Delete(c *gin.Context) {
	if err := h.exams.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Validate godoc
// @Summary Dry-run an exam write
// @Tags Exams
// @Accept json
// @Produce json
// @Param id query string false "Stored exam to validate an update against"
// @Param payload body dto.ExamRequest true "Exam payload"
// @Success 200 {object} response.Envelope
// @Router /exams/validate [post]
func (h *ExamHandler) Validate(c *gin.Context) {
	var req dto.ExamRequest
	if !bindJSON(c, &req, "invalid exam payload") {
		return
	}
	report, err := h.exams.Validate(c.Request.Context(), strings.TrimSpace(c.Query("id")), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Conflicts godoc
// @Summary Double-bookings involving a stored exam
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/conflicts [get]
func (h *ExamHandler) Conflicts(c *gin.Context) {
	conflicts, err := h.exams.Conflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if conflicts == nil {
		conflicts = []models.ConflictWarning{}
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}
