package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

// classRequestRefs lists every id a class payload references, with field paths.
// Blank ids are left to the validator.
func classRequestRefs(id string, req dto.ClassRequest) []Ref {
	var refs []Ref
	for i, teacherID := range req.Teacher {
		refs = appendRef(refs, models.RefTeacher, fmt.Sprintf("teacher[%d]", i), teacherID)
	}
	for i, subjectID := range req.Subjects {
		refs = appendRef(refs, models.RefSubject, fmt.Sprintf("subjects[%d]", i), subjectID)
	}
	for i, entry := range req.WeeklySchedule {
		prefix := fmt.Sprintf("weeklySchedule[%d].", i)
		refs = appendRef(refs, models.RefSubject, prefix+"subject", entry.Subject)
		refs = appendRef(refs, models.RefTeacher, prefix+"teacher", entry.Teacher)
		classID := trimmed(entry.Class)
		if classID != "" && classID != id {
			refs = appendRef(refs, models.RefClass, prefix+"class", classID)
		}
	}
	return refs
}

// examRequestRefs lists every id an exam payload references, with field paths.
func examRequestRefs(req dto.ExamRequest) []Ref {
	refs := appendRef(nil, models.RefClass, "class", req.Class)
	for i, entry := range req.Subjects {
		prefix := fmt.Sprintf("subjects[%d].", i)
		refs = appendRef(refs, models.RefSubject, prefix+"subject", entry.Subject)
		refs = appendRef(refs, models.RefTeacher, prefix+"teacher", entry.Teacher)
	}
	return refs
}

func classRefs(class models.Class) []Ref {
	var refs []Ref
	for i, id := range class.TeacherIDs {
		refs = appendRef(refs, models.RefTeacher, fmt.Sprintf("teacher[%d]", i), id)
	}
	for i, id := range class.SubjectIDs {
		refs = appendRef(refs, models.RefSubject, fmt.Sprintf("subjects[%d]", i), id)
	}
	for i, entry := range class.WeeklySchedule {
		prefix := fmt.Sprintf("weeklySchedule[%d].", i)
		refs = appendRef(refs, models.RefSubject, prefix+"subject", entry.SubjectID)
		refs = appendRef(refs, models.RefTeacher, prefix+"teacher", entry.TeacherID)
		refs = appendRef(refs, models.RefClass, prefix+"class", entry.ClassID)
	}
	return refs
}

func examRefs(exam models.Exam) []Ref {
	refs := appendRef(nil, models.RefClass, "class", exam.ClassID)
	for i, entry := range exam.Subjects {
		prefix := fmt.Sprintf("subjects[%d].", i)
		refs = appendRef(refs, models.RefSubject, prefix+"subject", entry.SubjectID)
		refs = appendRef(refs, models.RefTeacher, prefix+"teacher", entry.TeacherID)
	}
	return refs
}

func appendRef(refs []Ref, kind models.RefKind, field, id string) []Ref {
	id = trimmed(id)
	if id == "" {
		return refs
	}
	return append(refs, Ref{Kind: kind, Field: field, ID: id})
}

// classView expands a stored class. Entry order is the stored order.
func classView(class models.Class, refs Summaries) dto.ClassView {
	view := dto.ClassView{
		ID:             class.ID,
		Name:           class.Name,
		Teacher:        refs.GetAll(models.RefTeacher, class.TeacherIDs),
		Subjects:       refs.GetAll(models.RefSubject, class.SubjectIDs),
		StartDate:      class.StartDate.Format(timetable.DateLayout),
		EndDate:        class.EndDate.Format(timetable.DateLayout),
		Classroom:      class.Classroom,
		MaxStudents:    class.MaxStudents,
		Status:         class.Status,
		WeeklySchedule: make([]dto.ScheduleEntryView, 0, len(class.WeeklySchedule)),
		CreatedAt:      formatTimestamp(class.CreatedAt),
		UpdatedAt:      formatTimestamp(class.UpdatedAt),
	}
	for _, entry := range class.WeeklySchedule {
		view.WeeklySchedule = append(view.WeeklySchedule, entryView(entry, refs))
	}
	return view
}

func entryView(entry models.ScheduleEntry, refs Summaries) dto.ScheduleEntryView {
	view := dto.ScheduleEntryView{
		ID:        entry.ID,
		Day:       entry.Day,
		StartTime: entry.StartTime,
		EndTime:   entry.EndTime,
		Subject:   refs.Get(models.RefSubject, entry.SubjectID),
		Teacher:   refs.Get(models.RefTeacher, entry.TeacherID),
	}
	if entry.ClassID != "" {
		class := refs.Get(models.RefClass, entry.ClassID)
		view.Class = &class
	}
	return view
}

func examView(exam models.Exam, refs Summaries) dto.ExamView {
	view := dto.ExamView{
		ID:        exam.ID,
		Name:      exam.Name,
		StartDate: exam.StartDate.Format(timetable.DateLayout),
		EndDate:   exam.EndDate.Format(timetable.DateLayout),
		Class:     refs.Get(models.RefClass, exam.ClassID),
		Subjects:  make([]dto.ExamSubjectView, 0, len(exam.Subjects)),
		Status:    exam.Status,
		CreatedAt: formatTimestamp(exam.CreatedAt),
		UpdatedAt: formatTimestamp(exam.UpdatedAt),
	}
	for _, entry := range exam.Subjects {
		view.Subjects = append(view.Subjects, dto.ExamSubjectView{
			ID:        entry.ID,
			Subject:   refs.Get(models.RefSubject, entry.SubjectID),
			Teacher:   refs.Get(models.RefTeacher, entry.TeacherID),
			StartTime: entry.StartTime,
			EndTime:   entry.EndTime,
			MaxMarks:  entry.MaxMarks,
			ExamDate:  entry.ExamDate,
		})
	}
	return view
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
