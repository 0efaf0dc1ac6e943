package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

type classViewer interface {
	Get(ctx context.Context, id string) (*dto.ClassView, bool, error)
}

// ExportFile is a rendered timetable ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// TimetableExportService renders a class's weekly timetable as a printable file.
type TimetableExportService struct {
	classes   classViewer
	renderers map[export.Format]export.Renderer
	logger    *zap.Logger
}

// NewTimetableExportService constructs the export service. A nil renderer map uses the defaults.
func NewTimetableExportService(classes classViewer, renderers map[export.Format]export.Renderer, logger *zap.Logger) *TimetableExportService {
	if renderers == nil {
		renderers = export.Renderers()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableExportService{classes: classes, renderers: renderers, logger: logger}
}

// ExportClass renders the resolved weekly schedule of a class in the requested format.
func (s *TimetableExportService) ExportClass(ctx context.Context, classID, format string) (*ExportFile, error) {
	fmtKind, err := export.ParseFormat(format)
	if err != nil {
		fields := appErrors.FieldErrors{}
		fields.Add("format", appErrors.KindInvalidValue, "format must be one of csv, pdf, xlsx")
		return nil, appErrors.Invalid(fields, "unsupported export format")
	}
	renderer, ok := s.renderers[fmtKind]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("no renderer for %s", fmtKind))
	}

	view, _, err := s.classes.Get(ctx, classID)
	if err != nil {
		return nil, err
	}

	data, err := renderer.Render(timetableDataset(*view))
	if err != nil {
		s.logger.Error("failed to render timetable", zap.String("class_id", classID), zap.String("format", string(fmtKind)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("timetable-%s.%s", slug(view.Name, view.ID), fmtKind),
		ContentType: fmtKind.ContentType(),
		Data:        data,
	}, nil
}

// timetableDataset lays entries out by weekday and start time. Only the printout is
// sorted; the stored schedule keeps its order.
func timetableDataset(view dto.ClassView) export.Dataset {
	entries := append([]dto.ScheduleEntryView(nil), view.WeeklySchedule...)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Day != entries[j].Day {
			return entries[i].Day.Index() < entries[j].Day.Index()
		}
		return entries[i].StartTime < entries[j].StartTime
	})

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			string(entry.Day),
			entry.StartTime,
			entry.EndTime,
			entry.Subject.Name,
			entry.Teacher.Name,
			view.Classroom,
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("%s (%s)", view.Name, view.Classroom),
		Headers: []string{"Day", "Start", "End", "Subject", "Teacher", "Room"},
		Rows:    rows,
	}
}

func slug(name, fallback string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return fallback
	}
	return out
}
