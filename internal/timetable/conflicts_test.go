package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestDetectConflictsTeacherOverlap(t *testing.T) {
	warnings := DetectConflicts([]Slot{
		{EntryID: "b", OwnerID: "c2", ClassID: "c2", Day: "Monday", StartTime: "09:30", EndTime: "10:30", TeacherID: "T1"},
		{EntryID: "a", OwnerID: "c1", ClassID: "c1", Day: "Monday", StartTime: "09:00", EndTime: "10:00", TeacherID: "T1"},
	})

	require.Len(t, warnings, 1)
	assert.Equal(t, models.ConflictTeacher, warnings[0].Dimension)
	assert.Equal(t, "Monday", warnings[0].Day)
	assert.Equal(t, [2]string{"a", "b"}, warnings[0].EntryIDs())
}

func TestDetectConflictsTouchingBoundary(t *testing.T) {
	warnings := DetectConflicts([]Slot{
		{EntryID: "a", OwnerID: "c1", ClassID: "c1", Day: "Monday", StartTime: "09:00", EndTime: "10:00", TeacherID: "T1"},
		{EntryID: "b", OwnerID: "c1", ClassID: "c1", Day: "Monday", StartTime: "10:00", EndTime: "11:00", TeacherID: "T1"},
	})
	assert.Empty(t, warnings)
}

func TestDetectConflictsDimensions(t *testing.T) {
	cases := []struct {
		name string
		a    Slot
		b    Slot
		want models.ConflictDimension
	}{
		{
			name: "same class different teachers",
			a:    Slot{EntryID: "a", ClassID: "c1", Day: "Friday", StartTime: "08:00", EndTime: "09:00", TeacherID: "T1"},
			b:    Slot{EntryID: "b", ClassID: "c1", Day: "Friday", StartTime: "08:30", EndTime: "09:30", TeacherID: "T2"},
			want: models.ConflictClass,
		},
		{
			name: "shared room",
			a:    Slot{EntryID: "a", ClassID: "c1", Day: "Friday", StartTime: "08:00", EndTime: "09:00", TeacherID: "T1", Room: "Lab 1"},
			b:    Slot{EntryID: "b", ClassID: "c2", Day: "Friday", StartTime: "08:00", EndTime: "09:00", TeacherID: "T2", Room: "lab 1 "},
			want: models.ConflictRoom,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			warnings := DetectConflicts([]Slot{tc.a, tc.b})
			require.Len(t, warnings, 1)
			assert.Equal(t, tc.want, warnings[0].Dimension)
		})
	}
}

func TestDetectConflictsIgnoresOtherDaysAndResources(t *testing.T) {
	warnings := DetectConflicts([]Slot{
		{EntryID: "a", ClassID: "c1", Day: "Monday", StartTime: "09:00", EndTime: "10:00", TeacherID: "T1", Room: "R1"},
		{EntryID: "b", ClassID: "c1", Day: "Tuesday", StartTime: "09:00", EndTime: "10:00", TeacherID: "T1", Room: "R1"},
		{EntryID: "c", ClassID: "c2", Day: "Monday", StartTime: "09:00", EndTime: "10:00", TeacherID: "T2", Room: "R2"},
	})
	assert.Empty(t, warnings)
}

func TestDetectConflictsLongSlotCoversSeveral(t *testing.T) {
	warnings := DetectConflicts([]Slot{
		{EntryID: "long", Day: "Wednesday", StartTime: "08:00", EndTime: "12:00", TeacherID: "T1"},
		{EntryID: "x", Day: "Wednesday", StartTime: "08:30", EndTime: "09:00", TeacherID: "T2"},
		{EntryID: "y", Day: "Wednesday", StartTime: "10:00", EndTime: "11:00", TeacherID: "T1"},
		{EntryID: "z", Day: "Wednesday", StartTime: "11:30", EndTime: "12:30", TeacherID: "T1"},
	})

	require.Len(t, warnings, 2)
	assert.Equal(t, [2]string{"long", "y"}, warnings[0].EntryIDs())
	assert.Equal(t, [2]string{"long", "z"}, warnings[1].EntryIDs())
}

func TestDetectConflictsOrdersDays(t *testing.T) {
	slot := func(id, day string) Slot {
		return Slot{EntryID: id, Day: day, StartTime: "09:00", EndTime: "10:00", TeacherID: "T1"}
	}
	warnings := DetectConflicts([]Slot{
		slot("f1", "Friday"), slot("f2", "Friday"),
		slot("m1", "Monday"), slot("m2", "Monday"),
	})
	require.Len(t, warnings, 2)
	assert.Equal(t, "Monday", warnings[0].Day)
	assert.Equal(t, "Friday", warnings[1].Day)
}

func TestClassSlotsKeysUnsavedEntries(t *testing.T) {
	class := models.Class{
		ID:        "c1",
		Classroom: "R-101",
		WeeklySchedule: models.ScheduleEntries{
			{Day: models.Monday, StartTime: "09:00", EndTime: "10:00", TeacherID: "T1"},
			{ID: "e2", Day: models.Monday, StartTime: "09:30", EndTime: "10:30", TeacherID: "T1", ClassID: "c1"},
		},
	}
	slots := ClassSlots(class)
	require.Len(t, slots, 2)
	assert.Equal(t, "weeklySchedule[0]", slots[0].EntryID)
	assert.Equal(t, "c1", slots[0].ClassID)
	assert.Equal(t, "R-101", slots[0].Room)

	warnings := DetectConflicts(slots)
	require.Len(t, warnings, 1)
	assert.Equal(t, models.ConflictTeacher, warnings[0].Dimension)
}

func TestExamSlotsUseExamDate(t *testing.T) {
	exam := models.Exam{
		ID:      "e1",
		ClassID: "c1",
		Subjects: models.ExamSubjectEntries{
			{ID: "p1", TeacherID: "T1", StartTime: "08:00", EndTime: "10:00", ExamDate: "2023-11-02"},
			{ID: "p2", TeacherID: "T2", StartTime: "09:00", EndTime: "11:00", ExamDate: "2023-11-02"},
			{ID: "p3", TeacherID: "T1", StartTime: "09:00", EndTime: "11:00", ExamDate: "2023-11-03"},
		},
	}
	warnings := DetectConflicts(ExamSlots(exam))
	require.Len(t, warnings, 1)
	assert.Equal(t, models.ConflictClass, warnings[0].Dimension)
	assert.Equal(t, "2023-11-02", warnings[0].Day)
}

func TestInvolvingFiltersByOwner(t *testing.T) {
	warnings := []models.ConflictWarning{
		{First: models.ConflictSlot{OwnerID: "c1"}, Second: models.ConflictSlot{OwnerID: "c2"}},
		{First: models.ConflictSlot{OwnerID: "c2"}, Second: models.ConflictSlot{OwnerID: "c3"}},
	}
	assert.Len(t, Involving(warnings, "c1"), 1)
	assert.Len(t, Involving(warnings, "c2"), 2)
	assert.Empty(t, Involving(warnings, "c9"))
}
