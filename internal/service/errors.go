package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrStateConflict is matched by every *StateConflictError.
	ErrStateConflict = errors.New("competition is not in the required state")
	// ErrForbidden indicates the actor may not perform the action.
	ErrForbidden = errors.New("administrator role required")
	// ErrAuthorRequired indicates the call needs an authenticated author.
	ErrAuthorRequired = errors.New("authenticated author required")

	ErrCompetitionNotFound     = errors.New("competition not found")
	ErrCompetitionNotAccepting = errors.New("competition is not accepting submissions")
	ErrWindowClosed            = errors.New("submission window is closed")
	ErrQuotaExceeded           = errors.New("submission quota exceeded for this competition")

	ErrSubmissionNotFound     = errors.New("submission not found")
	ErrSubmissionStateInvalid = errors.New("submission is not in the required state")
	ErrBookNotFound           = errors.New("book not found")
	ErrBookNotOwned           = errors.New("book does not belong to the author")
	ErrManuscriptFileRequired = errors.New("manuscript file is required")
	ErrUnsupportedManuscript  = errors.New("unsupported manuscript file type")
	ErrManuscriptTooLarge     = errors.New("manuscript file is too large")

	ErrCriticUnavailable = errors.New("manuscript critic is not configured")
)

// FieldViolation names one violated input constraint.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated constraint of a rejected request.
type ValidationError struct {
	Fields []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, field.Field+": "+field.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldViolation{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// StateConflictError reports a transition attempted from the wrong state.
type StateConflictError struct {
	From string
	To   string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot move competition from %s to %s", e.From, e.To)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

// validationFailure converts validator output into a ValidationError and passes
// other errors through.
func validationFailure(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	result := &ValidationError{}
	for _, fieldError := range fieldErrors {
		result.add(fieldName(fieldError), describeRule(fieldError))
	}
	return result
}

func fieldName(fieldError validator.FieldError) string {
	namespace := fieldError.Namespace()
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return fieldError.Field()
}

func describeRule(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required", "required_if":
		return "is required"
	case "min":
		return "must be at least " + fieldError.Param()
	case "max":
		return "must be at most " + fieldError.Param()
	case "oneof":
		return "must be one of " + fieldError.Param()
	default:
		return "failed " + fieldError.Tag()
	}
}
