package models

import (
	"time"

	"github.com/lib/pq"
)

// ClassStatus represents the lifecycle of a class.
type ClassStatus string

const (
	ClassStatusActive    ClassStatus = "active"
	ClassStatusCompleted ClassStatus = "completed"
	ClassStatusCancelled ClassStatus = "cancelled"
)

// Class is a course offering with its own teachers, subjects and recurring weekly schedule.
// The weekly schedule is owned by the class and deleted with it.
type Class struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	TeacherIDs     pq.StringArray  `db:"teacher_ids" json:"teacher"`
	SubjectIDs     pq.StringArray  `db:"subject_ids" json:"subjects"`
	StartDate      time.Time       `db:"start_date" json:"start_date"`
	EndDate        time.Time       `db:"end_date" json:"end_date"`
	Classroom      string          `db:"classroom" json:"classroom"`
	MaxStudents    int             `db:"max_students" json:"max_students"`
	Status         ClassStatus     `db:"status" json:"status"`
	WeeklySchedule ScheduleEntries `db:"weekly_schedule" json:"weeklySchedule"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Summary returns the display reference for the class.
func (c Class) Summary() RefSummary {
	return RefSummary{ID: c.ID, Name: c.Name}
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	ListQuery
	Status    string
	TeacherID string
}
