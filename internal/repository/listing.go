package repository

import (
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchPattern builds a case-insensitive substring pattern with LIKE wildcards escaped.
func searchPattern(search string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(search))) + "%"
}

// searchClause matches the placeholder against every column with LOWER(col) LIKE.
func searchClause(placeholder int, columns ...string) string {
	parts := make([]string, len(columns))
	for i, column := range columns {
		parts[i] = fmt.Sprintf(`LOWER(%s) LIKE $%d ESCAPE '\'`, column, placeholder)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// orderClause resolves a requested sort against an allow-list.
func orderClause(query models.ListQuery, allowed map[string]string, fallback string) string {
	column, ok := allowed[query.SortBy]
	if !ok {
		column = fallback
	}
	order := strings.ToUpper(query.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id ASC", column, order)
}

// pageClause renders LIMIT/OFFSET. The offset saturates instead of overflowing so a huge page
// still reads as past the end.
func pageClause(query models.ListQuery) string {
	limit := int64(query.Limit)
	if limit <= 0 {
		limit = 20
	}
	page := int64(query.Page)
	if page < 1 {
		page = 1
	}
	offset := int64(math.MaxInt64)
	if page-1 <= math.MaxInt64/limit {
		offset = (page - 1) * limit
	}
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}
