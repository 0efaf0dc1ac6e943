// Package timetable holds the pure schedule rules: field validation, ordering
// invariants and double-booking detection. Nothing here performs I/O.
package timetable

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Validator checks class and exam payloads and returns every failure at once.
// It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// NewValidator constructs a Validator with the clock and weekday tags registered.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return IsClock(fl.Field().String())
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseWeekday(fl.Field().String())
		return ok
	})
	return &Validator{validate: v}
}

// IsClock reports whether value is a zero-padded 24-hour HH:MM time.
func IsClock(value string) bool {
	return clockPattern.MatchString(value)
}

// TimeBefore compares two HH:MM values. Fixed-width zero-padded times order lexicographically.
func TimeBefore(start, end string) bool {
	return start < end
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
}

// ValidateWeeklyEntry checks a single weekly entry in isolation.
func (v *Validator) ValidateWeeklyEntry(entry dto.WeeklyEntryRequest) appErrors.FieldErrors {
	entry = trimWeekly(entry)
	errs := v.structErrors(entry)
	if entry.Class == "" {
		errs.Add("class", appErrors.KindRequired, "is required")
	}
	checkTimeOrder(&errs, "", "start_time", "end_time", entry.StartTime, entry.EndTime)
	return errs
}

// ValidateClass validates a class payload and normalises it into a model. id is the
// class identity used to default blank entry classes. The returned class is nil
// whenever any failure was recorded.
func (v *Validator) ValidateClass(id string, req dto.ClassRequest) (*models.Class, appErrors.FieldErrors) {
	req = trimClass(req)
	for i := range req.WeeklySchedule {
		if req.WeeklySchedule[i].Class == "" {
			req.WeeklySchedule[i].Class = id
		}
	}

	errs := v.structErrors(req)

	var start, end time.Time
	datesValid := !errs.HasField("start_date") && !errs.HasField("end_date")
	if datesValid {
		start, _ = ParseDate(req.StartDate)
		end, _ = ParseDate(req.EndDate)
		if !start.Before(end) {
			errs.Add("end_date", appErrors.KindDateOrder, "must be after start_date")
		}
	}

	if len(req.WeeklySchedule) == 0 {
		errs.Add("weeklySchedule", appErrors.KindMinEntries, "at least one schedule entry is required")
	}
	for i, entry := range req.WeeklySchedule {
		prefix := fmt.Sprintf("weeklySchedule[%d].", i)
		if entry.Class == "" && !errs.HasField(prefix+"class") {
			errs.Add(prefix+"class", appErrors.KindRequired, "is required")
		}
		if errs.HasField(prefix+"start_time") || errs.HasField(prefix+"end_time") {
			continue
		}
		checkTimeOrder(&errs, prefix, "start_time", "end_time", entry.StartTime, entry.EndTime)
	}

	if len(errs) > 0 {
		return nil, errs
	}

	status := models.ClassStatus(req.Status)
	if status == "" {
		status = models.ClassStatusActive
	}
	class := &models.Class{
		ID:             id,
		Name:           req.Name,
		TeacherIDs:     pq.StringArray(append([]string{}, req.Teacher...)),
		SubjectIDs:     pq.StringArray(append([]string{}, req.Subjects...)),
		StartDate:      start,
		EndDate:        end,
		Classroom:      req.Classroom,
		MaxStudents:    req.MaxStudents,
		Status:         status,
		WeeklySchedule: make(models.ScheduleEntries, 0, len(req.WeeklySchedule)),
	}
	for _, entry := range req.WeeklySchedule {
		day, _ := models.ParseWeekday(entry.Day)
		class.WeeklySchedule = append(class.WeeklySchedule, models.ScheduleEntry{
			ID:        entry.ID,
			Day:       day,
			StartTime: entry.StartTime,
			EndTime:   entry.EndTime,
			SubjectID: entry.Subject,
			TeacherID: entry.Teacher,
			ClassID:   entry.Class,
		})
	}
	return class, nil
}

// ValidateExam validates an exam payload and normalises it into a model. The
// returned exam is nil whenever any failure was recorded.
func (v *Validator) ValidateExam(id string, req dto.ExamRequest) (*models.Exam, appErrors.FieldErrors) {
	req = trimExam(req)
	errs := v.structErrors(req)

	var start, end time.Time
	window := !errs.HasField("startDate") && !errs.HasField("endDate")
	if window {
		start, _ = ParseDate(req.StartDate)
		end, _ = ParseDate(req.EndDate)
		if end.Before(start) {
			errs.Add("endDate", appErrors.KindDateOrder, "must not be before startDate")
			window = false
		}
	}

	if len(req.Subjects) == 0 {
		errs.Add("subjects", appErrors.KindMinEntries, "at least one exam subject is required")
	}
	for i, entry := range req.Subjects {
		prefix := fmt.Sprintf("subjects[%d].", i)
		if !errs.HasField(prefix+"startTime") && !errs.HasField(prefix+"endTime") {
			checkTimeOrder(&errs, prefix, "startTime", "endTime", entry.StartTime, entry.EndTime)
		}
		if window && !errs.HasField(prefix+"examDate") {
			day, _ := ParseDate(entry.ExamDate)
			if day.Before(start) || day.After(end) {
				errs.Add(prefix+"examDate", appErrors.KindOutOfRange,
					fmt.Sprintf("must fall within %s and %s", req.StartDate, req.EndDate))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}

	status := models.ExamStatus(req.Status)
	if status == "" {
		status = models.ExamStatusScheduled
	}
	exam := &models.Exam{
		ID:        id,
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
		ClassID:   req.Class,
		Status:    status,
		Subjects:  make(models.ExamSubjectEntries, 0, len(req.Subjects)),
	}
	for _, entry := range req.Subjects {
		exam.Subjects = append(exam.Subjects, models.ExamSubjectEntry{
			ID:        entry.ID,
			SubjectID: entry.Subject,
			TeacherID: entry.Teacher,
			StartTime: entry.StartTime,
			EndTime:   entry.EndTime,
			MaxMarks:  entry.MaxMarks,
			ExamDate:  entry.ExamDate,
		})
	}
	return exam, nil
}

// Struct runs the tag pass on any payload and converts failures into field errors.
func (v *Validator) Struct(payload interface{}) appErrors.FieldErrors {
	return v.structErrors(payload)
}

func (v *Validator) structErrors(payload interface{}) appErrors.FieldErrors {
	var errs appErrors.FieldErrors
	err := v.validate.Struct(payload)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add("", appErrors.KindInvalidValue, err.Error())
		return errs
	}
	for _, fe := range verrs {
		kind, message := describe(fe)
		errs.Add(fieldPath(fe.Namespace()), kind, message)
	}
	return errs
}

func describe(fe validator.FieldError) (appErrors.FieldErrorKind, string) {
	switch fe.Tag() {
	case "required":
		return appErrors.KindRequired, "is required"
	case "clock":
		return appErrors.KindInvalidFormat, "must be a 24-hour HH:MM time"
	case "datetime":
		return appErrors.KindInvalidFormat, "must be a YYYY-MM-DD date"
	case "email":
		return appErrors.KindInvalidFormat, "must be a valid email address"
	case "weekday":
		return appErrors.KindInvalidValue, "must be a day from Monday to Sunday"
	case "oneof":
		return appErrors.KindInvalidValue, "must be one of: " + fe.Param()
	case "gt":
		return appErrors.KindNotPositive, "must be greater than " + fe.Param()
	case "max":
		return appErrors.KindInvalidValue, "must be at most " + fe.Param() + " characters"
	default:
		return appErrors.KindInvalidValue, "is invalid"
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func checkTimeOrder(errs *appErrors.FieldErrors, prefix, startField, endField, start, end string) {
	if !IsClock(start) || !IsClock(end) {
		return
	}
	if !TimeBefore(start, end) {
		errs.Add(prefix+endField, appErrors.KindTimeOrder, "must be later than "+startField)
	}
}

func trimWeekly(entry dto.WeeklyEntryRequest) dto.WeeklyEntryRequest {
	entry.ID = strings.TrimSpace(entry.ID)
	entry.Day = strings.TrimSpace(entry.Day)
	entry.StartTime = strings.TrimSpace(entry.StartTime)
	entry.EndTime = strings.TrimSpace(entry.EndTime)
	entry.Subject = strings.TrimSpace(entry.Subject)
	entry.Teacher = strings.TrimSpace(entry.Teacher)
	entry.Class = strings.TrimSpace(entry.Class)
	return entry
}

func trimClass(req dto.ClassRequest) dto.ClassRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.StartDate = strings.TrimSpace(req.StartDate)
	req.EndDate = strings.TrimSpace(req.EndDate)
	req.Classroom = strings.TrimSpace(req.Classroom)
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	req.Teacher = trimIDs(req.Teacher)
	req.Subjects = trimIDs(req.Subjects)
	entries := make([]dto.WeeklyEntryRequest, len(req.WeeklySchedule))
	for i, entry := range req.WeeklySchedule {
		entries[i] = trimWeekly(entry)
	}
	req.WeeklySchedule = entries
	return req
}

func trimExam(req dto.ExamRequest) dto.ExamRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.StartDate = strings.TrimSpace(req.StartDate)
	req.EndDate = strings.TrimSpace(req.EndDate)
	req.Class = strings.TrimSpace(req.Class)
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	entries := make([]dto.ExamSubjectRequest, len(req.Subjects))
	for i, entry := range req.Subjects {
		entry.ID = strings.TrimSpace(entry.ID)
		entry.Subject = strings.TrimSpace(entry.Subject)
		entry.Teacher = strings.TrimSpace(entry.Teacher)
		entry.StartTime = strings.TrimSpace(entry.StartTime)
		entry.EndTime = strings.TrimSpace(entry.EndTime)
		entry.ExamDate = strings.TrimSpace(entry.ExamDate)
		entries[i] = entry
	}
	req.Subjects = entries
	return req
}

func trimIDs(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strings.TrimSpace(id)
	}
	return out
}
