package catalog

import (
	"errors"
	"fmt"

	"catalog-analytics-service/internal/store"
)

// ErrValidation matches every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError rejects caller input before any store mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a referenced record that does not exist.
// It unwraps to the matching store sentinel.
type NotFoundError struct {
	Resource string
	ID       int64
	err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.err }

func productNotFound(id int64) error {
	return &NotFoundError{Resource: "product", ID: id, err: store.ErrProductNotFound}
}

func categoryNotFound(id int64) error {
	return &NotFoundError{Resource: "category", ID: id, err: store.ErrCategoryNotFound}
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
