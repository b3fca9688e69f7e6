package waitlist

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateEmail is returned when the normalized email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrEntryNotFound is returned when no entry matches the given id.
	ErrEntryNotFound = errors.New("waitlist entry not found")

	// ErrStorage wraps persistence failures that are not otherwise classified.
	ErrStorage = errors.New("storage failure")
)

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// storageErr classifies a repository error. Known sentinels pass through,
// everything else is wrapped with ErrStorage.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDuplicateEmail) || errors.Is(err, ErrEntryNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
