package service

import (
	"database/sql"
	"errors"
	"math"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// maxPage bounds the requested page so page*limit stays far from int overflow.
const maxPage = math.MaxInt32

// ScheduleOptions tunes list paging and the default conflict policy.
type ScheduleOptions struct {
	DefaultPageSize  int
	MaxPageSize      int
	RejectOnConflict bool
}

// ScheduleOptionsFromConfig maps application config onto service options.
func ScheduleOptionsFromConfig(cfg config.ScheduleConfig) ScheduleOptions {
	return ScheduleOptions{
		DefaultPageSize:  cfg.DefaultPageSize,
		MaxPageSize:      cfg.MaxPageSize,
		RejectOnConflict: cfg.RejectOnConflict,
	}
}

// normalize bounds page and limit. Pages past the end are allowed and come back empty.
func (o ScheduleOptions) normalize(query models.ListQuery) models.ListQuery {
	def := o.DefaultPageSize
	if def <= 0 {
		def = 20
	}
	max := o.MaxPageSize
	if max < def {
		max = def
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Page > maxPage {
		query.Page = maxPage
	}
	if query.Limit <= 0 {
		query.Limit = def
	}
	if query.Limit > max {
		query.Limit = max
	}
	query.Search = strings.TrimSpace(query.Search)
	return query
}

// rejectConflicts resolves the per-request override against the configured default.
func (o ScheduleOptions) rejectConflicts(override *bool) bool {
	if override != nil {
		return *override
	}
	return o.RejectOnConflict
}

// referenceAuditor schedules a dangling-reference check after a referenced entity is deleted.
type referenceAuditor interface {
	Enqueue(kind models.RefKind, id string)
}

func trimmed(value string) string {
	return strings.TrimSpace(value)
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func fieldKinds(errs appErrors.FieldErrors) []string {
	kinds := make([]string, len(errs))
	for i, fe := range errs {
		kinds[i] = string(fe.Kind)
	}
	return kinds
}

func conflictError(entity string, conflicts []models.ConflictWarning) *appErrors.Error {
	err := appErrors.Clone(appErrors.ErrConflict, entity+" schedule has double-bookings")
	err.Meta = map[string]interface{}{"conflicts": conflicts}
	err.Err = &models.ScheduleConflictError{Conflicts: conflicts}
	return err
}
