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

// ClassHandler exposes class and weekly timetable endpoints.
type ClassHandler struct {
	classes  *service.ClassService
	exporter *service.TimetableExportService
}

// NewClassHandler constructs the handler.
func NewClassHandler(classes *service.ClassService, exporter *service.TimetableExportService) *ClassHandler {
	return &ClassHandler{classes: classes, exporter: exporter}
}

// List godoc
// @Summary List classes
// @Tags Classes
// @Produce json
// @Param search query string false "Search by name/classroom"
// @Param status query string false "active, completed or cancelled"
// @Param teacherId query string false "Classes taught by the teacher"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field (name,start_date,created_at)"
// @Param order query string false "Sort order (asc/desc)"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	filter := models.ClassFilter{
		ListQuery: listQuery(c),
		Status:    strings.ToLower(strings.TrimSpace(c.Query("status"))),
		TeacherID: strings.TrimSpace(c.Query("teacherId")),
	}
	page, err := h.classes.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondPage(c, page)
}

// Get godoc
// @Summary Get class with resolved references
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	view, hit, err := h.classes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create class
// @Description Conflict warnings are returned in meta.conflicts unless rejectOnConflict is set.
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body dto.ClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	var req dto.ClassRequest
	if !bindJSON(c, &req, "invalid class payload") {
		return
	}
	result, err := h.classes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWrite(c, http.StatusCreated, result.Class, result.Conflicts)
}

// Update godoc
// @Summary Replace class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body dto.ClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	var req dto.ClassRequest
	if !bindJSON(c, &req, "invalid class payload") {
		return
	}
	result, err := h.classes.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWrite(c, http.StatusOK, result.Class, result.Conflicts)
}

// Delete godoc
// @Summary Delete class and its weekly schedule
// @Tags Classes
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	if err := h.classes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Validate godoc
// @Summary Dry-run a class write
// @Tags Classes
// @Accept json
// @Produce json
// @Param id query string false "Stored class to validate an update against"
// @Param payload body dto.ClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/validate [post]
func (h *ClassHandler) Validate(c *gin.Context) {
	var req dto.ClassRequest
	if !bindJSON(c, &req, "invalid class payload") {
		return
	}
	report, err := h.classes.Validate(c.Request.Context(), strings.TrimSpace(c.Query("id")), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Conflicts godoc
// @Summary Double-bookings involving a stored class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/conflicts [get]
func (h *ClassHandler) Conflicts(c *gin.Context) {
	conflicts, err := h.classes.Conflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if conflicts == nil {
		conflicts = []models.ConflictWarning{}
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}

// Export godoc
// @Summary Download the weekly timetable
// @Tags Classes
// @Produce text/csv,application/pdf,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Class ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Router /classes/{id}/timetable/export [get]
func (h *ClassHandler) Export(c *gin.Context) {
	file, err := h.exporter.ExportClass(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Data)
}
