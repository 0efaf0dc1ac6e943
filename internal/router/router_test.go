package router

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
)

type memTeachers struct{ items map[string]models.Teacher }

func (m *memTeachers) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	out := make([]models.Teacher, 0, len(m.items))
	for _, t := range m.items {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memTeachers) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	t, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

func (m *memTeachers) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for id, t := range m.items {
		if t.Email == email && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTeachers) Create(ctx context.Context, t *models.Teacher) error {
	t.ID = "t-new"
	m.items[t.ID] = *t
	return nil
}

func (m *memTeachers) Update(ctx context.Context, t *models.Teacher) error {
	m.items[t.ID] = *t
	return nil
}

func (m *memTeachers) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

type memSubjects struct{ items map[string]models.Subject }

func (m *memSubjects) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	out := make([]models.Subject, 0, len(m.items))
	for _, s := range m.items {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *memSubjects) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	s, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *memSubjects) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	return false, nil
}

func (m *memSubjects) Create(ctx context.Context, s *models.Subject) error {
	s.ID = "s-new"
	m.items[s.ID] = *s
	return nil
}

func (m *memSubjects) Update(ctx context.Context, s *models.Subject) error {
	m.items[s.ID] = *s
	return nil
}

func (m *memSubjects) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

type memClasses struct{ items map[string]models.Class }

func (m *memClasses) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	out := make([]models.Class, 0, len(m.items))
	for _, c := range m.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	start := filter.Offset()
	if start >= len(out) {
		return []models.Class{}, len(out), nil
	}
	end := start + filter.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], len(out), nil
}

func (m *memClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	c, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (m *memClasses) ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error) {
	return nil, nil
}

func (m *memClasses) ListForConflicts(ctx context.Context, excludeID string, teacherIDs []string, classroom string, start, end time.Time) ([]models.Class, error) {
	var out []models.Class
	for id, c := range m.items {
		if id != excludeID && c.Status == models.ClassStatusActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memClasses) Create(ctx context.Context, c *models.Class) error {
	m.items[c.ID] = *c
	return nil
}

func (m *memClasses) Update(ctx context.Context, c *models.Class) error {
	m.items[c.ID] = *c
	return nil
}

func (m *memClasses) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

type memExams struct{}

func (memExams) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	return []models.Exam{}, 0, nil
}

func (memExams) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	return nil, sql.ErrNoRows
}

func (memExams) ListForConflicts(ctx context.Context, excludeID, classID string, teacherIDs []string, start, end time.Time) ([]models.Exam, error) {
	return nil, nil
}

func (memExams) Create(ctx context.Context, e *models.Exam) error { return nil }
func (memExams) Update(ctx context.Context, e *models.Exam) error { return nil }
func (memExams) Delete(ctx context.Context, id string) error      { return sql.ErrNoRows }

type memRefs struct {
	teachers *memTeachers
	subjects *memSubjects
	classes  *memClasses
}

func (m memRefs) FindSummaries(ctx context.Context, kind models.RefKind, ids []string) ([]models.RefSummary, error) {
	var out []models.RefSummary
	for _, id := range ids {
		switch kind {
		case models.RefTeacher:
			if t, ok := m.teachers.items[id]; ok {
				out = append(out, t.Summary())
			}
		case models.RefSubject:
			if s, ok := m.subjects.items[id]; ok {
				out = append(out, s.Summary())
			}
		case models.RefClass:
			if c, ok := m.classes.items[id]; ok {
				out = append(out, c.Summary())
			}
		}
	}
	return out, nil
}

type testServer struct {
	engine  *gin.Engine
	tokens  *service.TokenVerifier
	classes *memClasses
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	teachers := &memTeachers{items: map[string]models.Teacher{
		"t-1": {ID: "t-1", FullName: "Ana Putri", Email: "ana@example.com"},
	}}
	subjects := &memSubjects{items: map[string]models.Subject{
		"s-1": {ID: "s-1", Code: "MAT", Name: "Mathematics"},
	}}
	classes := &memClasses{items: map[string]models.Class{
		"c-1": {
			ID:         "c-1",
			Name:       "Grade 10 A",
			TeacherIDs: []string{"t-1"},
			SubjectIDs: []string{"s-1"},
			StartDate:  time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
			EndDate:    time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
			Classroom:  "R101",
			Status:     models.ClassStatusActive,
			WeeklySchedule: models.ScheduleEntries{
				{ID: "e-1", Day: models.Monday, StartTime: "08:00", EndTime: "09:00", SubjectID: "s-1", TeacherID: "t-1", ClassID: "c-1"},
			},
		},
	}}
	refs := memRefs{teachers: teachers, subjects: subjects, classes: classes}

	metrics := service.NewMetricsService()
	resolver := service.NewReferenceResolver(refs, metrics, nil)
	opts := service.ScheduleOptions{DefaultPageSize: 20, MaxPageSize: 100}

	classSvc := service.NewClassService(classes, resolver, nil, nil, metrics, nil, opts, nil)
	examSvc := service.NewExamService(memExams{}, resolver, nil, nil, metrics, opts, nil)
	teacherSvc := service.NewTeacherService(teachers, nil, nil, nil, opts, nil)
	subjectSvc := service.NewSubjectService(subjects, nil, nil, nil, opts, nil)
	exporter := service.NewTimetableExportService(classSvc, nil, nil)
	tokens := service.NewTokenVerifier("test-secret", "")

	engine := New(Options{
		APIPrefix: "/api/v1",
		Metrics:   metrics,
		Tokens:    tokens,
		Teachers:  handler.NewTeacherHandler(teacherSvc, classSvc),
		Subjects:  handler.NewSubjectHandler(subjectSvc),
		Classes:   handler.NewClassHandler(classSvc, exporter),
		Exams:     handler.NewExamHandler(examSvc),
		Observe:   handler.NewMetricsHandler(metrics),
	})
	return &testServer{engine: engine, tokens: tokens, classes: classes}
}

func (s *testServer) do(t *testing.T, method, path string, role models.UserRole, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, err := s.tokens.Issue("user-1", role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func classPayload() map[string]interface{} {
	return map[string]interface{}{
		"name":         "Grade 10 B",
		"teacher":      []string{"t-1"},
		"subjects":     []string{"s-1"},
		"start_date":   "2024-07-15",
		"end_date":     "2024-12-20",
		"classroom":    "R102",
		"max_students": 30,
		"weeklySchedule": []map[string]string{
			{"day": "Monday", "start_time": "08:30", "end_time": "09:30", "subject": "s-1", "teacher": "t-1"},
		},
	}
}

func TestRouterAuthAndRoles(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/v1/classes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/classes", models.RoleStudent, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodPost, "/api/v1/classes", models.RoleTeacher, classPayload())
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/metrics/summary", models.RoleStudent, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterListEnvelope(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/v1/classes?page=1&limit=5", models.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)

	var items []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Grade 10 A", items[0]["name"])
	teachers := items[0]["teacher"].([]interface{})
	assert.Equal(t, "Ana Putri", teachers[0].(map[string]interface{})["name"])
	assert.EqualValues(t, 1, env.Pagination["totalCount"])
	assert.EqualValues(t, 5, env.Pagination["limit"])
	assert.Equal(t, false, env.Pagination["hasNextPage"])

	w = srv.do(t, http.MethodGet, "/api/v1/classes?page=4", models.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	env = decode(t, w)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestRouterCreateReturnsConflictMeta(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/v1/classes", models.RoleAdmin, classPayload())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode(t, w)
	conflicts, ok := env.Meta["conflicts"].([]interface{})
	require.True(t, ok)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "TEACHER", conflicts[0].(map[string]interface{})["dimension"])
	assert.Len(t, srv.classes.items, 2)

	payload := classPayload()
	payload["rejectOnConflict"] = true
	w = srv.do(t, http.MethodPost, "/api/v1/classes", models.RoleAdmin, payload)
	require.Equal(t, http.StatusConflict, w.Code)
	env = decode(t, w)
	assert.Equal(t, "CONFLICT", env.Error["code"])
	assert.NotEmpty(t, env.Error["meta"])
}

func TestRouterCreateRejectsDanglingReference(t *testing.T) {
	srv := newTestServer(t)
	payload := classPayload()
	payload["teacher"] = []string{"t-ghost"}

	w := srv.do(t, http.MethodPost, "/api/v1/classes", models.RoleAdmin, payload)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decode(t, w)
	assert.Equal(t, "DANGLING_REFERENCE", env.Error["code"])
	details := env.Error["details"].([]interface{})
	assert.Equal(t, "teacher[0]", details[0].(map[string]interface{})["field"])
}

func TestRouterValidateRouteIsNotAnID(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/v1/classes/validate", models.RoleAdmin, classPayload())
	require.Equal(t, http.StatusOK, w.Code)
	var report struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &report))
	assert.True(t, report.Valid)
	assert.Len(t, srv.classes.items, 1)
}

func TestRouterExportHeaders(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/v1/classes/c-1/timetable/export?format=csv", models.RoleTeacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="timetable-grade-10-a.csv"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "Monday,08:00,09:00,Mathematics,Ana Putri,R101")

	w = srv.do(t, http.MethodGet, "/api/v1/classes/c-1/timetable/export?format=doc", models.RoleTeacher, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouterDeletedTeacherReadsAsUnknown(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodDelete, "/api/v1/teachers/t-1", models.RoleSuperAdmin, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = srv.do(t, http.MethodGet, "/api/v1/classes/c-1", models.RoleStudent, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Teacher []struct {
			ID   string `json:"_id"`
			Name string `json:"name"`
		} `json:"teacher"`
	}
	env := decode(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "t-1", view.Teacher[0].ID)
	assert.Equal(t, models.UnknownName, view.Teacher[0].Name)
	assert.Equal(t, false, env.Meta["cache_hit"])
}
