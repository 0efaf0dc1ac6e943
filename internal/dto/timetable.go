package dto

import "github.com/noah-isme/sma-timetable-api/internal/models"

// WeeklyEntryRequest is one submitted row of a class's weekly schedule.
type WeeklyEntryRequest struct {
	ID        string `json:"id"`
	Day       string `json:"day" validate:"required,weekday"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
	Subject   string `json:"subject" validate:"required"`
	Teacher   string `json:"teacher" validate:"required"`
	Class     string `json:"class"`
}

// ClassRequest is the create/update payload for a class. Updates replace the whole record.
type ClassRequest struct {
	Name             string               `json:"name" validate:"required"`
	Teacher          []string             `json:"teacher" validate:"omitempty,dive,required"`
	Subjects         []string             `json:"subjects" validate:"omitempty,dive,required"`
	StartDate        string               `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate          string               `json:"end_date" validate:"required,datetime=2006-01-02"`
	Classroom        string               `json:"classroom" validate:"required"`
	MaxStudents      int                  `json:"max_students" validate:"gt=0"`
	Status           string               `json:"status" validate:"omitempty,oneof=active completed cancelled"`
	WeeklySchedule   []WeeklyEntryRequest `json:"weeklySchedule" validate:"dive"`
	RejectOnConflict *bool                `json:"rejectOnConflict,omitempty"`
}

// ExamSubjectRequest is one submitted paper of an exam timetable.
type ExamSubjectRequest struct {
	ID        string  `json:"id"`
	Subject   string  `json:"subject" validate:"required"`
	Teacher   string  `json:"teacher" validate:"required"`
	StartTime string  `json:"startTime" validate:"required,clock"`
	EndTime   string  `json:"endTime" validate:"required,clock"`
	MaxMarks  float64 `json:"maxMarks" validate:"gt=0"`
	ExamDate  string  `json:"examDate" validate:"required,datetime=2006-01-02"`
}

// ExamRequest is the create/update payload for an exam.
type ExamRequest struct {
	Name             string               `json:"name" validate:"required"`
	StartDate        string               `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate          string               `json:"endDate" validate:"required,datetime=2006-01-02"`
	Class            string               `json:"class" validate:"required"`
	Subjects         []ExamSubjectRequest `json:"subjects" validate:"dive"`
	Status           string               `json:"status" validate:"omitempty,oneof=scheduled ongoing completed cancelled"`
	RejectOnConflict *bool                `json:"rejectOnConflict,omitempty"`
}

// ScheduleEntryView is a weekly entry with references expanded.
type ScheduleEntryView struct {
	ID        string             `json:"id"`
	Day       models.Weekday     `json:"day"`
	StartTime string             `json:"start_time"`
	EndTime   string             `json:"end_time"`
	Subject   models.RefSummary  `json:"subject"`
	Teacher   models.RefSummary  `json:"teacher"`
	Class     *models.RefSummary `json:"class,omitempty"`
}

// ClassView is the read shape of a class.
type ClassView struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Teacher        []models.RefSummary `json:"teacher"`
	Subjects       []models.RefSummary `json:"subjects"`
	StartDate      string              `json:"start_date"`
	EndDate        string              `json:"end_date"`
	Classroom      string              `json:"classroom"`
	MaxStudents    int                 `json:"max_students"`
	Status         models.ClassStatus  `json:"status"`
	WeeklySchedule []ScheduleEntryView `json:"weeklySchedule"`
	CreatedAt      string              `json:"created_at"`
	UpdatedAt      string              `json:"updated_at"`
}

// ExamSubjectView is an exam paper with references expanded.
type ExamSubjectView struct {
	ID        string            `json:"id"`
	Subject   models.RefSummary `json:"subject"`
	Teacher   models.RefSummary `json:"teacher"`
	StartTime string            `json:"startTime"`
	EndTime   string            `json:"endTime"`
	MaxMarks  float64           `json:"maxMarks"`
	ExamDate  string            `json:"examDate"`
}

// ExamView is the read shape of an exam.
type ExamView struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	StartDate string            `json:"startDate"`
	EndDate   string            `json:"endDate"`
	Class     models.RefSummary `json:"class"`
	Subjects  []ExamSubjectView `json:"subjects"`
	Status    models.ExamStatus `json:"status"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

// TeacherTimetableEntry is one weekly slot taught by a teacher in some class.
type TeacherTimetableEntry struct {
	Class     models.RefSummary `json:"class"`
	Classroom string            `json:"classroom"`
	ScheduleEntryView
}

// ValidationReport is returned by the dry-run endpoints.
type ValidationReport struct {
	Valid     bool                     `json:"valid"`
	Errors    []FieldErrorView         `json:"errors"`
	Conflicts []models.ConflictWarning `json:"conflicts"`
}

// FieldErrorView mirrors a field error in dry-run responses.
type FieldErrorView struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
