package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Weekday identifies a day of a recurring weekly schedule.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// Weekdays lists days in calendar order starting on Monday.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseWeekday accepts full or three-letter day names in any case.
func ParseWeekday(raw string) (Weekday, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", false
	}
	for _, day := range Weekdays {
		full := strings.ToLower(string(day))
		if value == full || value == full[:3] {
			return day, true
		}
	}
	return "", false
}

// Index returns 1 for Monday through 7 for Sunday, 0 when unknown.
func (d Weekday) Index() int {
	for i, day := range Weekdays {
		if day == d {
			return i + 1
		}
	}
	return 0
}

// ScheduleEntry is one row of a class's recurring weekly schedule.
// Subject, teacher and class are weak references by id.
type ScheduleEntry struct {
	ID        string  `json:"id"`
	Day       Weekday `json:"day"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	SubjectID string  `json:"subject"`
	TeacherID string  `json:"teacher"`
	ClassID   string  `json:"class,omitempty"`
}

// ScheduleEntries is the embedded weekly schedule persisted as JSONB.
type ScheduleEntries []ScheduleEntry

// Value implements driver.Valuer.
func (s ScheduleEntries) Value() (driver.Value, error) {
	return marshalJSONColumn(s, ScheduleEntries{})
}

// Scan implements sql.Scanner.
func (s *ScheduleEntries) Scan(src interface{}) error {
	return scanJSONColumn(src, s)
}

// ConflictDimension names the shared resource behind a double-booking.
type ConflictDimension string

const (
	ConflictTeacher ConflictDimension = "TEACHER"
	ConflictClass   ConflictDimension = "CLASS"
	ConflictRoom    ConflictDimension = "ROOM"
)

// ConflictSlot identifies one side of a conflicting pair.
type ConflictSlot struct {
	EntryID   string `json:"entry_id"`
	OwnerID   string `json:"owner_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	TeacherID string `json:"teacher_id"`
	Room      string `json:"room,omitempty"`
}

// ConflictWarning is an advisory double-booking report. It never blocks a save
// unless the caller asks for it.
type ConflictWarning struct {
	Dimension ConflictDimension `json:"dimension"`
	Day       string            `json:"day"`
	First     ConflictSlot      `json:"first"`
	Second    ConflictSlot      `json:"second"`
}

// EntryIDs returns the pair of conflicting entry ids.
func (w ConflictWarning) EntryIDs() [2]string {
	return [2]string{w.First.EntryID, w.Second.EntryID}
}

// ScheduleConflictError is returned when a write is rejected because of double-bookings.
type ScheduleConflictError struct {
	Conflicts []ConflictWarning `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%d schedule conflicts detected", len(e.Conflicts))
}

func marshalJSONColumn(value interface{}, empty interface{}) (driver.Value, error) {
	if value == nil {
		value = empty
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return []byte("[]"), nil
	}
	return raw, nil
}

func scanJSONColumn(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}
