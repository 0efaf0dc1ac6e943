package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type mockTeacherRepo struct {
	items      map[string]*models.Teacher
	emailIndex map[string]string
	listResult []models.Teacher
	listTotal  int
	listFilter models.TeacherFilter
	listErr    error
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	m.listFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.items[id]; ok {
		cp := *teacher
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	if owner, ok := m.emailIndex[email]; ok {
		if excludeID == "" || owner != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	if m.items == nil {
		m.items = make(map[string]*models.Teacher)
	}
	if teacher.ID == "" {
		teacher.ID = "generated"
	}
	now := time.Now()
	teacher.CreatedAt = now
	teacher.UpdatedAt = now
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	if _, ok := m.items[teacher.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *teacher
	m.items[teacher.ID] = &cp
	return nil
}

func (m *mockTeacherRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func TestTeacherServiceCreate(t *testing.T) {
	repo := &mockTeacherRepo{}
	service := NewTeacherService(repo, nil, nil, nil, ScheduleOptions{}, zap.NewNop())

	nip := "  "
	teacher, err := service.Create(context.Background(), TeacherRequest{
		Email:    "teach@example.com",
		FullName: "  Teacher One ",
		NIP:      &nip,
	})
	require.NoError(t, err)
	assert.Equal(t, "Teacher One", teacher.FullName)
	assert.True(t, teacher.Active)
	assert.Nil(t, teacher.NIP)
	assert.Len(t, repo.items, 1)
}

func TestTeacherServiceCreateValidation(t *testing.T) {
	service := NewTeacherService(&mockTeacherRepo{}, nil, nil, nil, ScheduleOptions{}, zap.NewNop())

	_, err := service.Create(context.Background(), TeacherRequest{Email: "not-an-email"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	fields := appErrors.FieldErrors(appErr.Details)
	assert.True(t, fields.Has("email", appErrors.KindInvalidFormat))
	assert.True(t, fields.Has("full_name", appErrors.KindRequired))
}

func TestTeacherServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockTeacherRepo{emailIndex: map[string]string{"teach@example.com": "another"}}
	service := NewTeacherService(repo, nil, nil, nil, ScheduleOptions{}, zap.NewNop())

	_, err := service.Create(context.Background(), TeacherRequest{
		Email:    "teach@example.com",
		FullName: "Teacher One",
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, appErrors.FromError(err).Status)
}

func TestTeacherServiceUpdate(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{
			"t1": {ID: "t1", Email: "teach@example.com", FullName: "Teacher One", Active: true},
		},
		emailIndex: map[string]string{"teach@example.com": "t1"},
	}
	service := NewTeacherService(repo, nil, nil, nil, ScheduleOptions{}, zap.NewNop())

	inactive := false
	updated, err := service.Update(context.Background(), "t1", TeacherRequest{
		Email:    "teach@example.com",
		FullName: "Teacher Updated",
		Active:   &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Teacher Updated", updated.FullName)
	assert.False(t, repo.items["t1"].Active)

	_, err = service.Update(context.Background(), "missing", TeacherRequest{Email: "x@example.com", FullName: "X"})
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestTeacherServiceDeleteLeavesSchedulesAndAudits(t *testing.T) {
	repo := &mockTeacherRepo{
		items: map[string]*models.Teacher{"t1": {ID: "t1", Email: "teach@example.com", FullName: "Teacher One"}},
	}
	auditor := &fakeAuditor{}
	service := NewTeacherService(repo, nil, nil, auditor, ScheduleOptions{}, zap.NewNop())

	require.NoError(t, service.Delete(context.Background(), "t1"))
	assert.Empty(t, repo.items)
	assert.Equal(t, []enqueued{{kind: models.RefTeacher, id: "t1"}}, auditor.jobs)

	err := service.Delete(context.Background(), "t1")
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestTeacherServiceList(t *testing.T) {
	repo := &mockTeacherRepo{listResult: []models.Teacher{{ID: "t1"}}, listTotal: 41}
	service := NewTeacherService(repo, nil, nil, nil, ScheduleOptions{DefaultPageSize: 20, MaxPageSize: 50}, zap.NewNop())

	active := true
	page, err := service.List(context.Background(), models.TeacherFilter{
		ListQuery: models.ListQuery{Page: 2, Search: "  ana "},
		Active:    &active,
	})
	require.NoError(t, err)
	assert.Equal(t, "ana", repo.listFilter.Search)
	assert.Equal(t, 20, repo.listFilter.Limit)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNextPage)
	assert.True(t, page.HasPrevPage)

	repo.listErr = errStoreDown
	_, err = service.List(context.Background(), models.TeacherFilter{})
	assert.ErrorIs(t, err, errStoreDown)
}
