package errors

import (
	"fmt"
	"strings"
)

// FieldErrorKind classifies a single field failure.
type FieldErrorKind string

const (
	KindRequired          FieldErrorKind = "REQUIRED"
	KindInvalidFormat     FieldErrorKind = "INVALID_FORMAT"
	KindInvalidValue      FieldErrorKind = "INVALID_VALUE"
	KindTimeOrder         FieldErrorKind = "TIME_ORDER"
	KindDateOrder         FieldErrorKind = "DATE_ORDER"
	KindMinEntries        FieldErrorKind = "MIN_ENTRIES"
	KindNotPositive       FieldErrorKind = "NOT_POSITIVE"
	KindOutOfRange        FieldErrorKind = "OUT_OF_RANGE"
	KindDanglingReference FieldErrorKind = "DANGLING_REFERENCE"
)

// FieldError is a user-correctable failure tagged with the offending field path,
// e.g. "weeklySchedule[2].end_time".
type FieldError struct {
	Field   string         `json:"field"`
	Kind    FieldErrorKind `json:"kind"`
	Message string         `json:"message"`
	ID      string         `json:"id,omitempty"`
}

func (f FieldError) Error() string {
	if f.ID != "" {
		return fmt.Sprintf("%s: %s (%s)", f.Field, f.Message, f.ID)
	}
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

// FieldErrors collects every failure for a request.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, f := range fe {
		parts = append(parts, f.Error())
	}
	return strings.Join(parts, "; ")
}

// Add appends a failure.
func (fe *FieldErrors) Add(field string, kind FieldErrorKind, message string) {
	*fe = append(*fe, FieldError{Field: field, Kind: kind, Message: message})
}

// Has reports whether a failure of kind was recorded for field.
func (fe FieldErrors) Has(field string, kind FieldErrorKind) bool {
	for _, f := range fe {
		if f.Field == field && f.Kind == kind {
			return true
		}
	}
	return false
}

// HasField reports whether any failure was recorded for field.
func (fe FieldErrors) HasField(field string) bool {
	for _, f := range fe {
		if f.Field == field {
			return true
		}
	}
	return false
}

// HasKind reports whether any failure of kind was recorded.
func (fe FieldErrors) HasKind(kind FieldErrorKind) bool {
	for _, f := range fe {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// OnlyKind reports whether the list is non-empty and every failure is of kind.
func (fe FieldErrors) OnlyKind(kind FieldErrorKind) bool {
	if len(fe) == 0 {
		return false
	}
	for _, f := range fe {
		if f.Kind != kind {
			return false
		}
	}
	return true
}

// DanglingReference describes an id that does not resolve in the store.
func DanglingReference(field, id string) FieldError {
	return FieldError{
		Field:   field,
		Kind:    KindDanglingReference,
		Message: "referenced entity does not exist",
		ID:      id,
	}
}
