package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound is returned when a quiz session does not exist or was abandoned.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrPaperNotFound indicates the paper content could not be loaded.
	ErrPaperNotFound = errors.New("paper not found")
	// ErrQuestionNotFound indicates a question index or id is outside the paper.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a selected option or choice is not offered by the question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrAnswerRecordNotFound is returned when no answer record matches.
	ErrAnswerRecordNotFound = errors.New("answer record not found")
	// ErrCommentNotFound is returned when replying to a missing comment.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateAttempt is the storage-level rejection of a second SJT record for the same user and paper.
	ErrDuplicateAttempt = errors.New("paper already attempted")
	// ErrEmailTaken is returned on registration with an existing email.
	ErrEmailTaken = errors.New("email already registered")

	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("unauthorized access")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidTransition is returned when an action is not allowed in the session's current state.
	ErrInvalidTransition = errors.New("action not allowed in current session state")
	// ErrNavigationLocked guards backward navigation until the final question is answered.
	ErrNavigationLocked  = errors.New("navigation locked until the final question is answered")
	ErrNotActiveQuestion = errors.New("only the active question can be answered")
	ErrSessionCompleted  = errors.New("quiz session already completed")
	ErrSubmitInFlight    = errors.New("submission already in progress")
)

// ValidationError reports one or more invalid fields. It matches ErrValidation via errors.Is.
type ValidationError struct {
	Fields []FieldError
}

// FieldError names a field and what is wrong with it.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrValidation is the sentinel every ValidationError unwraps to.
var ErrValidation = errors.New("validation failed")

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field errors were collected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Invalid builds a single-field validation error.
func Invalid(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Merge folds the fields of another validation error into e. Other errors are ignored.
func (e *ValidationError) Merge(err error) {
	var other *ValidationError
	if errors.As(err, &other) {
		e.Fields = append(e.Fields, other.Fields...)
	}
}
