package dispatch

import (
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	ErrCodeDuplicate          = "DUPLICATE_ENTRY"
	ErrCodeNotFound           = "ENTRY_NOT_FOUND"
	ErrCodeSealed             = "REGISTRY_SEALED"
	ErrCodeInvalidSubscriber  = "INVALID_SUBSCRIBER"
	ErrCodeNoSuchTransition   = "NO_SUCH_TRANSITION"
	ErrCodeConstraintsFailed  = "CONSTRAINTS_FAILED"
	ErrCodeInvalidDefinition  = "INVALID_DEFINITION"
	ErrCodeNotImplemented     = "NOT_IMPLEMENTED"
	ErrCodeConstraintViolated = "CONSTRAINT_VIOLATION"
)

var (
	// ErrDuplicate is returned when an identical entry is registered twice.
	ErrDuplicate = errors.New("duplicate entry", errors.CategoryConflict).
			WithTextCode(ErrCodeDuplicate)
	// ErrNotFound is returned when removing or resolving an unknown entry.
	ErrNotFound = errors.New("entry not found", errors.CategoryNotFound).
			WithTextCode(ErrCodeNotFound)
	// ErrSealed is returned when a registry is mutated after it was sealed.
	ErrSealed = errors.New("registry is sealed", errors.CategoryConflict).
			WithTextCode(ErrCodeSealed)
	// ErrInvalidSubscriber is returned by strict subscriber validation.
	ErrInvalidSubscriber = errors.New("invalid subscriber", errors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidSubscriber)
	// ErrNoSuchTransition is returned when a workflow edge does not exist.
	ErrNoSuchTransition = errors.New("no such transition", errors.CategoryBadInput).
				WithTextCode(ErrCodeNoSuchTransition)
	// ErrConstraintsFailed marks aggregated guard failures.
	ErrConstraintsFailed = errors.New("constraints failed", errors.CategoryValidation).
				WithTextCode(ErrCodeConstraintsFailed)
	// ErrInvalidDefinition is returned when a declarative definition cannot be built.
	ErrInvalidDefinition = errors.New("invalid definition", errors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidDefinition)
	ErrNotImplemented = errors.New("not implemented", errors.CategoryInternal).
				WithTextCode(ErrCodeNotImplemented)
)

// NewError clones a sentinel, replacing its message and attaching metadata.
func NewError(base *errors.Error, message string, metadata map[string]any) *errors.Error {
	if base == nil {
		base = ErrInvalidDefinition
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// WrapError clones a sentinel and records source as the underlying cause.
func WrapError(base *errors.Error, message string, source error, metadata map[string]any) *errors.Error {
	err := NewError(base, message, metadata)
	if source != nil {
		err.Source = source
	}
	return err
}

// Code returns the text code of the first go-errors error in the chain.
func Code(err error) string {
	var ge *errors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsCode reports whether err carries the given text code.
func IsCode(err error, code string) bool {
	return err != nil && Code(err) == code
}
