package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// AuditHandler triggers dangling-reference audits on demand.
type AuditHandler struct {
	audits *service.ReferenceAuditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(audits *service.ReferenceAuditService) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// References godoc
// @Summary Report schedule references to deleted entities
// @Tags Audit
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /audit/references [post]
func (h *AuditHandler) References(c *gin.Context) {
	report, err := h.audits.RunFull(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
