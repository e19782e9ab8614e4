package services

import (
	"errors"
	"fmt"

	"github.com/hezretaly/toefl/internal/repositories"
	"github.com/hezretaly/toefl/internal/validator"
)

var (
	ErrValidationFailed = errors.New("validation failed")
	ErrScopeMismatch    = errors.New("referenced entity does not belong to the claimed parent")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")

	// Auth errors
	ErrInvalidCredentials = fmt.Errorf("invalid email or password: %w", ErrUnauthorized)
	ErrUserExists         = fmt.Errorf("username or email already registered: %w", ErrConflict)
)

type ValidationError = validator.ValidationError
type ValidationErrors = validator.ValidationErrors

// NewValidationError builds a single field validation failure
func NewValidationError(field, message string, value interface{}) ValidationErrors {
	return ValidationErrors{{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    "business_logic",
	}}
}

// ScopeError reports an entity referenced under a parent it does not belong to
type ScopeError struct {
	Resource string
	ID       uint
	Parent   string
	ParentID uint
}

func (e *ScopeError) Error() string {
	if e.ParentID == 0 {
		return fmt.Sprintf("%s %d does not belong to %s", e.Resource, e.ID, e.Parent)
	}
	return fmt.Sprintf("%s %d does not belong to %s %d", e.Resource, e.ID, e.Parent, e.ParentID)
}

func (e *ScopeError) Unwrap() error {
	return ErrScopeMismatch
}

func NewScopeError(resource string, id uint, parent string, parentID uint) *ScopeError {
	return &ScopeError{Resource: resource, ID: id, Parent: parent, ParentID: parentID}
}

// SelectionError reports a letter or index that does not resolve to a choice
type SelectionError struct {
	QuestionID uint
	Token      string
	Reason     string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid selection %q for question %d: %s", e.Token, e.QuestionID, e.Reason)
}

func (e *SelectionError) Unwrap() error {
	return ErrInvalidSelection
}

type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NewNotFoundError(resource string, id uint) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// wrapRepoError turns a repository not-found into a NotFoundError and wraps
// anything else with the failed action.
func wrapRepoError(err error, resource string, id uint, action string) error {
	if repositories.IsNotFoundError(err) {
		return NewNotFoundError(resource, id)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// IsCallerError reports whether err is caused by the request rather than the server
func IsCallerError(err error) bool {
	var validationErrors ValidationErrors
	if errors.As(err, &validationErrors) {
		return true
	}
	for _, target := range []error{ErrValidationFailed, ErrScopeMismatch, ErrInvalidSelection,
		ErrNotFound, ErrConflict, ErrUnauthorized, ErrForbidden} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
