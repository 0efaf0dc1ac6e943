package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

var errStoreDown = errors.New("store unavailable")

type fakeReferenceStore struct {
	mu      sync.Mutex
	entries map[models.RefKind]map[string]string
	calls   map[models.RefKind]int
	err     error
}

func newFakeReferenceStore() *fakeReferenceStore {
	return &fakeReferenceStore{
		entries: map[models.RefKind]map[string]string{},
		calls:   map[models.RefKind]int{},
	}
}

func (f *fakeReferenceStore) add(kind models.RefKind, id, name string) *fakeReferenceStore {
	if f.entries[kind] == nil {
		f.entries[kind] = map[string]string{}
	}
	f.entries[kind][id] = name
	return f
}

func (f *fakeReferenceStore) FindSummaries(ctx context.Context, kind models.RefKind, ids []string) ([]models.RefSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind]++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.RefSummary, 0, len(ids))
	for _, id := range ids {
		if name, ok := f.entries[kind][id]; ok {
			out = append(out, models.RefSummary{ID: id, Name: name})
		}
	}
	return out, nil
}

func (f *fakeReferenceStore) totalCalls() int {
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// seededReferences holds the teachers, subjects and classes used by most service tests.
func seededReferences() *fakeReferenceStore {
	return newFakeReferenceStore().
		add(models.RefTeacher, "t-1", "Ana Putri").
		add(models.RefTeacher, "t-2", "Budi Santoso").
		add(models.RefSubject, "s-1", "Mathematics").
		add(models.RefSubject, "s-2", "Physics").
		add(models.RefClass, "c-other", "Grade 11 Science")
}

type fakeClassRepo struct {
	items      map[string]models.Class
	candidates []models.Class
	created    []models.Class
	updated    []models.Class
	deleted    []string
	listFilter models.ClassFilter
	listTotal  int
	err        error
}

func newFakeClassRepo(classes ...models.Class) *fakeClassRepo {
	repo := &fakeClassRepo{items: map[string]models.Class{}}
	for _, class := range classes {
		repo.items[class.ID] = class
	}
	return repo
}

func (f *fakeClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	f.listFilter = filter
	if f.err != nil {
		return nil, 0, f.err
	}
	classes := f.sorted()
	total := f.listTotal
	if total == 0 {
		total = len(classes)
	}
	start := filter.Offset()
	if start >= len(classes) {
		return []models.Class{}, total, nil
	}
	end := start + filter.Limit
	if end > len(classes) {
		end = len(classes)
	}
	return classes[start:end], total, nil
}

func (f *fakeClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if f.err != nil {
		return nil, f.err
	}
	class, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &class, nil
}

func (f *fakeClassRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.Class, error) {
	var out []models.Class
	for _, class := range f.sorted() {
		for _, entry := range class.WeeklySchedule {
			if entry.TeacherID == teacherID {
				out = append(out, class)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeClassRepo) ListForConflicts(ctx context.Context, excludeID string, teacherIDs []string, classroom string, start, end time.Time) ([]models.Class, error) {
	var out []models.Class
	for _, class := range f.candidates {
		if class.ID != excludeID {
			out = append(out, class)
		}
	}
	return out, nil
}

func (f *fakeClassRepo) Create(ctx context.Context, class *models.Class) error {
	if f.err != nil {
		return f.err
	}
	now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	class.CreatedAt, class.UpdatedAt = now, now
	f.items[class.ID] = *class
	f.created = append(f.created, *class)
	return nil
}

func (f *fakeClassRepo) Update(ctx context.Context, class *models.Class) error {
	if _, ok := f.items[class.ID]; !ok {
		return sql.ErrNoRows
	}
	f.items[class.ID] = *class
	f.updated = append(f.updated, *class)
	return nil
}

func (f *fakeClassRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeClassRepo) sorted() []models.Class {
	out := make([]models.Class, 0, len(f.items))
	for _, class := range f.items {
		out = append(out, class)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeExamRepo struct {
	items      map[string]models.Exam
	candidates []models.Exam
	conflictQ  int
	created    []models.Exam
	deleted    []string
}

func newFakeExamRepo(exams ...models.Exam) *fakeExamRepo {
	repo := &fakeExamRepo{items: map[string]models.Exam{}}
	for _, exam := range exams {
		repo.items[exam.ID] = exam
	}
	return repo
}

func (f *fakeExamRepo) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	out := make([]models.Exam, 0, len(f.items))
	for _, exam := range f.items {
		if filter.ClassID != "" && exam.ClassID != filter.ClassID {
			continue
		}
		out = append(out, exam)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeExamRepo) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	exam, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &exam, nil
}

func (f *fakeExamRepo) ListForConflicts(ctx context.Context, excludeID, classID string, teacherIDs []string, start, end time.Time) ([]models.Exam, error) {
	f.conflictQ++
	var out []models.Exam
	for _, exam := range f.candidates {
		if exam.ID != excludeID {
			out = append(out, exam)
		}
	}
	return out, nil
}

func (f *fakeExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	f.items[exam.ID] = *exam
	f.created = append(f.created, *exam)
	return nil
}

func (f *fakeExamRepo) Update(ctx context.Context, exam *models.Exam) error {
	if _, ok := f.items[exam.ID]; !ok {
		return sql.ErrNoRows
	}
	f.items[exam.ID] = *exam
	return nil
}

func (f *fakeExamRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type enqueued struct {
	kind models.RefKind
	id   string
}

type fakeAuditor struct {
	jobs []enqueued
}

func (f *fakeAuditor) Enqueue(kind models.RefKind, id string) {
	f.jobs = append(f.jobs, enqueued{kind: kind, id: id})
}

type fakeCounter struct {
	counts     map[models.RefKind]map[string]int
	referenced map[models.RefKind][]string
	err        error
}

func (f *fakeCounter) CountReferencing(ctx context.Context, kind models.RefKind, id string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[kind][id], nil
}

func (f *fakeCounter) ReferencedIDs(ctx context.Context, kind models.RefKind) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.referenced[kind], nil
}

type fakeQueue struct {
	jobs []jobs.Job
	err  error
}

func (f *fakeQueue) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type memoryCache struct {
	mu      sync.Mutex
	values  map[string]interface{}
	flushes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]interface{}{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	switch d := dest.(type) {
	case *dto.ClassView:
		*d = *value.(*dto.ClassView)
	case *dto.ExamView:
		*d = *value.(*dto.ExamView)
	}
	return nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	m.values = map[string]interface{}{}
	return nil
}

func (m *memoryCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}
