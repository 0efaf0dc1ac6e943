package timetable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Slot is a time range on one day that occupies a teacher, a class and optionally a room.
// Day is a weekday name for weekly schedules or a calendar date for exams.
type Slot struct {
	EntryID   string
	OwnerID   string
	ClassID   string
	Day       string
	StartTime string
	EndTime   string
	TeacherID string
	Room      string
}

func (s Slot) conflictSlot() models.ConflictSlot {
	return models.ConflictSlot{
		EntryID:   s.EntryID,
		OwnerID:   s.OwnerID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		TeacherID: s.TeacherID,
		Room:      s.Room,
	}
}

// DetectConflicts reports every pair of slots on the same day whose half-open ranges
// [start, end) intersect and that share a teacher, a class or a room. Touching
// boundaries do not overlap. Input order does not affect the result.
func DetectConflicts(slots []Slot) []models.ConflictWarning {
	byDay := make(map[string][]Slot)
	days := make([]string, 0)
	for _, slot := range slots {
		if _, ok := byDay[slot.Day]; !ok {
			days = append(days, slot.Day)
		}
		byDay[slot.Day] = append(byDay[slot.Day], slot)
	}
	sort.Slice(days, func(i, j int) bool { return dayLess(days[i], days[j]) })

	warnings := make([]models.ConflictWarning, 0)
	for _, day := range days {
		group := byDay[day]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].StartTime != group[j].StartTime {
				return group[i].StartTime < group[j].StartTime
			}
			if group[i].EndTime != group[j].EndTime {
				return group[i].EndTime < group[j].EndTime
			}
			return group[i].EntryID < group[j].EntryID
		})
		for i := 0; i < len(group); i++ {
			a := group[i]
			for j := i + 1; j < len(group) && group[j].StartTime < a.EndTime; j++ {
				b := group[j]
				dimension, ok := sharedResource(a, b)
				if !ok {
					continue
				}
				warnings = append(warnings, models.ConflictWarning{
					Dimension: dimension,
					Day:       day,
					First:     a.conflictSlot(),
					Second:    b.conflictSlot(),
				})
			}
		}
	}
	return warnings
}

func sharedResource(a, b Slot) (models.ConflictDimension, bool) {
	switch {
	case a.TeacherID != "" && a.TeacherID == b.TeacherID:
		return models.ConflictTeacher, true
	case a.ClassID != "" && a.ClassID == b.ClassID:
		return models.ConflictClass, true
	case sameRoom(a.Room, b.Room):
		return models.ConflictRoom, true
	default:
		return "", false
	}
}

func sameRoom(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// dayLess orders weekday names by calendar position and dates lexicographically.
func dayLess(a, b string) bool {
	ai := models.Weekday(a).Index()
	bi := models.Weekday(b).Index()
	if ai != 0 && bi != 0 {
		return ai < bi
	}
	return a < b
}

// ClassSlots expands a class's weekly schedule. Entries without an id are keyed by
// their position so unsaved payloads still report usable pairs.
func ClassSlots(class models.Class) []Slot {
	slots := make([]Slot, 0, len(class.WeeklySchedule))
	for i, entry := range class.WeeklySchedule {
		entryID := entry.ID
		if entryID == "" {
			entryID = fmt.Sprintf("weeklySchedule[%d]", i)
		}
		classID := entry.ClassID
		if classID == "" {
			classID = class.ID
		}
		slots = append(slots, Slot{
			EntryID:   entryID,
			OwnerID:   class.ID,
			ClassID:   classID,
			Day:       string(entry.Day),
			StartTime: entry.StartTime,
			EndTime:   entry.EndTime,
			TeacherID: entry.TeacherID,
			Room:      class.Classroom,
		})
	}
	return slots
}

// ExamSlots expands an exam's papers keyed by exam date.
func ExamSlots(exam models.Exam) []Slot {
	slots := make([]Slot, 0, len(exam.Subjects))
	for i, entry := range exam.Subjects {
		entryID := entry.ID
		if entryID == "" {
			entryID = fmt.Sprintf("subjects[%d]", i)
		}
		slots = append(slots, Slot{
			EntryID:   entryID,
			OwnerID:   exam.ID,
			ClassID:   exam.ClassID,
			Day:       entry.ExamDate,
			StartTime: entry.StartTime,
			EndTime:   entry.EndTime,
			TeacherID: entry.TeacherID,
		})
	}
	return slots
}

// Involving keeps only warnings that touch at least one slot owned by ownerID.
func Involving(warnings []models.ConflictWarning, ownerID string) []models.ConflictWarning {
	out := make([]models.ConflictWarning, 0, len(warnings))
	for _, w := range warnings {
		if w.First.OwnerID == ownerID || w.Second.OwnerID == ownerID {
			out = append(out, w)
		}
	}
	return out
}
