package models

import (
	"database/sql/driver"
	"time"
)

// ExamStatus represents the lifecycle of an exam.
type ExamStatus string

const (
	ExamStatusScheduled ExamStatus = "scheduled"
	ExamStatusOngoing   ExamStatus = "ongoing"
	ExamStatusCompleted ExamStatus = "completed"
	ExamStatusCancelled ExamStatus = "cancelled"
)

// ExamSubjectEntry is one paper of an exam timetable.
type ExamSubjectEntry struct {
	ID        string  `json:"id"`
	SubjectID string  `json:"subject"`
	TeacherID string  `json:"teacher"`
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	MaxMarks  float64 `json:"maxMarks"`
	ExamDate  string  `json:"examDate"`
}

// ExamSubjectEntries is the embedded exam timetable persisted as JSONB.
type ExamSubjectEntries []ExamSubjectEntry

// Value implements driver.Valuer.
func (e ExamSubjectEntries) Value() (driver.Value, error) {
	return marshalJSONColumn(e, ExamSubjectEntries{})
}

// Scan implements sql.Scanner.
func (e *ExamSubjectEntries) Scan(src interface{}) error {
	return scanJSONColumn(src, e)
}

// Exam groups subject papers for a class within a date window.
type Exam struct {
	ID        string             `db:"id" json:"id"`
	Name      string             `db:"name" json:"name"`
	StartDate time.Time          `db:"start_date" json:"startDate"`
	EndDate   time.Time          `db:"end_date" json:"endDate"`
	ClassID   string             `db:"class_id" json:"class"`
	Subjects  ExamSubjectEntries `db:"subjects" json:"subjects"`
	Status    ExamStatus         `db:"status" json:"status"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}

// ExamFilter defines filter criteria for listing exams.
type ExamFilter struct {
	ListQuery
	ClassID string
	Status  string
}
