package services

import (
	"errors"
	"fmt"

	"github.com/CrowderSoup/kanban/database"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthenticated    = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("access denied")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
)

// ValidationError names the field that failed and unwraps to ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// translate maps store errors onto the service taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, database.ErrDuplicateEmail):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}

// authorize checks that the resource resolved from a store lookup belongs to
// userID.
func authorize(ownerID, userID int64, lookupErr error) error {
	if lookupErr != nil {
		return translate(lookupErr)
	}
	if ownerID != userID {
		return ErrForbidden
	}
	return nil
}
