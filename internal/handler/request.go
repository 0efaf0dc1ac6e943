package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

// listQuery reads page, limit, search, sort and order. Unparseable numbers are left at
// zero and normalised by the service.
func listQuery(c *gin.Context) models.ListQuery {
	query := models.ListQuery{
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		query.Page = page
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		query.Limit = limit
	}
	return query
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func respondPage[T any](c *gin.Context, page models.Page[T]) {
	response.Page(c, page, middleware.ExtractMeta(c))
}

func respondWrite[T any](c *gin.Context, status int, data T, conflicts []models.ConflictWarning) {
	middleware.SetConflicts(c, conflicts)
	response.JSON(c, status, data, nil, middleware.ExtractMeta(c))
}
