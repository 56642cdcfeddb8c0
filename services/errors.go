package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies workflow failures so callers can react without parsing messages.
type ErrorKind string

const (
	KindInvalidTransition      ErrorKind = "InvalidTransition"
	KindForbidden              ErrorKind = "Forbidden"
	KindInsufficientReviewers  ErrorKind = "InsufficientReviewers"
	KindAlreadySubmitted       ErrorKind = "AlreadySubmitted"
	KindNotAssignedReviewer    ErrorKind = "NotAssignedReviewer"
	KindRoundIncomplete        ErrorKind = "RoundIncomplete"
	KindDuplicateDecision      ErrorKind = "DuplicateDecision"
	KindConcurrentModification ErrorKind = "ConcurrentModification"
	KindAuditDegraded          ErrorKind = "AuditDegraded"
	KindRoundConflict          ErrorKind = "RoundConflict"
	KindNotFound               ErrorKind = "NotFound"
	KindValidation             ErrorKind = "Validation"
)

// WorkflowError is the typed error returned by every engine operation.
type WorkflowError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *WorkflowError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *WorkflowError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any WorkflowError of the same kind, so errors.Is(err, ErrForbidden) works
// regardless of the message.
func (e *WorkflowError) Is(target error) bool {
	t, ok := target.(*WorkflowError)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrInvalidTransition      = &WorkflowError{Kind: KindInvalidTransition}
	ErrForbidden              = &WorkflowError{Kind: KindForbidden}
	ErrInsufficientReviewers  = &WorkflowError{Kind: KindInsufficientReviewers}
	ErrAlreadySubmitted       = &WorkflowError{Kind: KindAlreadySubmitted}
	ErrNotAssignedReviewer    = &WorkflowError{Kind: KindNotAssignedReviewer}
	ErrRoundIncomplete        = &WorkflowError{Kind: KindRoundIncomplete}
	ErrDuplicateDecision      = &WorkflowError{Kind: KindDuplicateDecision}
	ErrConcurrentModification = &WorkflowError{Kind: KindConcurrentModification}
	ErrAuditDegraded          = &WorkflowError{Kind: KindAuditDegraded}
	ErrRoundConflict          = &WorkflowError{Kind: KindRoundConflict}
	ErrNotFound               = &WorkflowError{Kind: KindNotFound}
	ErrValidation             = &WorkflowError{Kind: KindValidation}
)

func newError(kind ErrorKind, format string, args ...any) *WorkflowError {
	return &WorkflowError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...any) *WorkflowError {
	return &WorkflowError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// AsWorkflowError extracts the typed error from err's chain.
func AsWorkflowError(err error) (*WorkflowError, bool) {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we, true
	}
	return nil, false
}

// IsWarning reports whether err only signals a degraded audit trail. The
// business mutation behind such an error has been committed.
func IsWarning(err error) bool {
	we, ok := AsWorkflowError(err)
	return ok && we.Kind == KindAuditDegraded
}
