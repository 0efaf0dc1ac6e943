package models

// RefKind names an entity kind that schedules reference by id.
type RefKind string

const (
	RefTeacher RefKind = "teacher"
	RefSubject RefKind = "subject"
	RefClass   RefKind = "class"
)

// UnknownName is shown in place of a reference that no longer resolves.
const UnknownName = "Unknown"

// RefSummary is the read-side expansion of a weak reference.
type RefSummary struct {
	ID   string `db:"id" json:"_id"`
	Name string `db:"name" json:"name"`
}

// UnknownRef returns the placeholder for a dangling id.
func UnknownRef(id string) RefSummary {
	return RefSummary{ID: id, Name: UnknownName}
}

// RefSet collects referenced ids per kind, preserving first-seen order.
type RefSet struct {
	ids  map[RefKind][]string
	seen map[RefKind]map[string]struct{}
}

// NewRefSet returns an empty set.
func NewRefSet() *RefSet {
	return &RefSet{ids: map[RefKind][]string{}, seen: map[RefKind]map[string]struct{}{}}
}

// Add records an id for kind; blank ids are ignored.
func (s *RefSet) Add(kind RefKind, id string) {
	if id == "" {
		return
	}
	if s.seen[kind] == nil {
		s.seen[kind] = map[string]struct{}{}
	}
	if _, ok := s.seen[kind][id]; ok {
		return
	}
	s.seen[kind][id] = struct{}{}
	s.ids[kind] = append(s.ids[kind], id)
}

// IDs returns the ids recorded for kind.
func (s *RefSet) IDs(kind RefKind) []string {
	return s.ids[kind]
}

// ReferenceCount reports how many stored schedules still point at one id.
type ReferenceCount struct {
	Kind    RefKind `json:"kind"`
	ID      string  `json:"id"`
	Classes int     `json:"classes"`
	Exams   int     `json:"exams"`
}

// Total returns the number of referencing parents.
func (c ReferenceCount) Total() int {
	return c.Classes + c.Exams
}
