package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func validExamRequest() dto.ExamRequest {
	return dto.ExamRequest{
		Name:      "Midterm",
		StartDate: "2024-10-07",
		EndDate:   "2024-10-11",
		Class:     "c-other",
		Subjects: []dto.ExamSubjectRequest{
			{Subject: "s-1", Teacher: "t-1", StartTime: "08:00", EndTime: "10:00", MaxMarks: 100, ExamDate: "2024-10-07"},
			{Subject: "s-2", Teacher: "t-2", StartTime: "08:00", EndTime: "10:00", MaxMarks: 100, ExamDate: "2024-10-08"},
		},
	}
}

func newExamFixture(opts ScheduleOptions, exams ...models.Exam) (*fakeExamRepo, *ExamService) {
	repo := newFakeExamRepo(exams...)
	resolver := NewReferenceResolver(seededReferences(), nil, nil)
	return repo, NewExamService(repo, resolver, nil, nil, NewMetricsService(), opts, nil)
}

func TestExamServiceCreate(t *testing.T) {
	repo, svc := newExamFixture(ScheduleOptions{})

	result, err := svc.Create(context.Background(), validExamRequest())
	require.NoError(t, err)
	require.Len(t, repo.created, 1)

	stored := repo.created[0]
	assert.Equal(t, models.ExamStatusScheduled, stored.Status)
	assert.NotEmpty(t, stored.Subjects[0].ID)
	assert.Equal(t, "Grade 11 Science", result.Exam.Class.Name)
	assert.Equal(t, "Physics", result.Exam.Subjects[1].Subject.Name)
	assert.Equal(t, "Budi Santoso", result.Exam.Subjects[1].Teacher.Name)
	assert.Equal(t, "2024-10-07", result.Exam.StartDate)
	assert.Empty(t, result.Conflicts)
}

func TestExamServiceRejectsExamDateOutsideWindow(t *testing.T) {
	repo, svc := newExamFixture(ScheduleOptions{})
	req := validExamRequest()
	req.Subjects[1].ExamDate = "2024-10-12"

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.True(t, appErrors.FieldErrors(appErr.Details).Has("subjects[1].examDate", appErrors.KindOutOfRange))
	assert.Empty(t, repo.created)
}

func TestExamServiceRejectsUnknownClass(t *testing.T) {
	_, svc := newExamFixture(ScheduleOptions{})
	req := validExamRequest()
	req.Class = "c-ghost"

	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, "class", appErr.Details[0].Field)
	assert.Equal(t, "c-ghost", appErr.Details[0].ID)
}

func TestExamServicePaperConflicts(t *testing.T) {
	req := validExamRequest()
	req.Subjects[1].ExamDate = "2024-10-07"
	req.Subjects[1].StartTime = "09:00"
	req.Subjects[1].EndTime = "11:00"

	t.Run("advisory", func(t *testing.T) {
		repo, svc := newExamFixture(ScheduleOptions{})
		result, err := svc.Create(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, result.Conflicts, 1)
		assert.Equal(t, models.ConflictClass, result.Conflicts[0].Dimension)
		assert.Equal(t, "2024-10-07", result.Conflicts[0].Day)
		assert.Len(t, repo.created, 1)
	})

	t.Run("rejected", func(t *testing.T) {
		repo, svc := newExamFixture(ScheduleOptions{RejectOnConflict: true})
		_, err := svc.Create(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
		assert.Empty(t, repo.created)
	})
}

func TestExamServiceCrossExamCheckOnlyWhileLive(t *testing.T) {
	other := models.Exam{
		ID:      "x-other",
		ClassID: "c-9",
		Status:  models.ExamStatusScheduled,
		Subjects: models.ExamSubjectEntries{
			{ID: "p-1", SubjectID: "s-2", TeacherID: "t-1", StartTime: "09:00", EndTime: "09:45", ExamDate: "2024-10-07"},
		},
	}

	repo, svc := newExamFixture(ScheduleOptions{})
	repo.candidates = []models.Exam{other}
	result, err := svc.Create(context.Background(), validExamRequest())
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, models.ConflictTeacher, result.Conflicts[0].Dimension)

	repo, svc = newExamFixture(ScheduleOptions{})
	repo.candidates = []models.Exam{other}
	req := validExamRequest()
	req.Status = "cancelled"
	result, err = svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts)
	assert.Zero(t, repo.conflictQ)
}

func TestExamServiceUpdateAndDelete(t *testing.T) {
	created := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	existing := models.Exam{ID: "x-1", Name: "Old", ClassID: "c-other", Status: models.ExamStatusScheduled, CreatedAt: created}
	repo, svc := newExamFixture(ScheduleOptions{}, existing)

	req := validExamRequest()
	req.Name = "Midterm (revised)"
	result, err := svc.Update(context.Background(), "x-1", req)
	require.NoError(t, err)
	assert.Equal(t, "Midterm (revised)", result.Exam.Name)
	assert.Equal(t, created, repo.items["x-1"].CreatedAt)

	_, err = svc.Update(context.Background(), "x-missing", req)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	require.NoError(t, svc.Delete(context.Background(), "x-1"))
	assert.Equal(t, []string{"x-1"}, repo.deleted)
	err = svc.Delete(context.Background(), "x-1")
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestExamServiceListResolvesDeletedClass(t *testing.T) {
	exam := models.Exam{ID: "x-1", Name: "Final", ClassID: "c-deleted", Status: models.ExamStatusCompleted}
	_, svc := newExamFixture(ScheduleOptions{}, exam)

	page, err := svc.List(context.Background(), models.ExamFilter{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.RefSummary{ID: "c-deleted", Name: models.UnknownName}, page.Items[0].Class)
	assert.NotNil(t, page.Items[0].Subjects)
	assert.Equal(t, 20, page.Limit)
}

func TestExamServiceValidate(t *testing.T) {
	_, svc := newExamFixture(ScheduleOptions{})
	req := validExamRequest()
	req.Subjects = nil

	report, err := svc.Validate(context.Background(), "", req)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "subjects", report.Errors[0].Field)
	assert.Equal(t, string(appErrors.KindMinEntries), report.Errors[0].Kind)
}
