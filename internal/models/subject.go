package models

import "time"

// Subject represents an academic subject.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Summary returns the display reference for the subject.
func (s Subject) Summary() RefSummary {
	return RefSummary{ID: s.ID, Name: s.Name}
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	ListQuery
}
