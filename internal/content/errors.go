package content

import (
	"errors"
	"fmt"

	"github.com/oriys/folio/internal/domain"
)

var (
	// ErrNetwork marks failures reaching the service or reading its reply.
	ErrNetwork = errors.New("content: network failure")

	// ErrValidation marks writes rejected because of malformed input.
	ErrValidation = errors.New("content: validation failure")

	// ErrNotFound marks writes that target an item that does not exist.
	ErrNotFound = errors.New("content: not found")

	// ErrUnauthorized marks writes rejected because the session is not valid.
	ErrUnauthorized = errors.New("content: unauthorized")
)

// NetworkError wraps a transport, upstream or decode failure.
type NetworkError struct {
	Domain     domain.Domain
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	msg := fmt.Sprintf("content: %s %s", e.Op, e.Domain)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ValidationError carries the structured detail of a rejected write.
type ValidationError struct {
	Domain  domain.Domain
	Message string
	Fields  domain.FieldErrors
}

func (e *ValidationError) Error() string {
	msg := "content: invalid " + string(e.Domain)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Fields) > 0 {
		msg += ": " + e.Fields.Error()
	}
	return msg
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e.Fields
}

// AsValidation converts domain field errors into a ValidationError for d and
// passes any other error through unchanged.
func AsValidation(d domain.Domain, err error) error {
	if err == nil {
		return nil
	}
	var fields domain.FieldErrors
	if errors.As(err, &fields) {
		return &ValidationError{Domain: d, Fields: fields}
	}
	return err
}

// IsNetwork reports whether err is a network failure.
func IsNetwork(err error) bool { return errors.Is(err, ErrNetwork) }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func notFound(d domain.Domain, id string) error {
	return fmt.Errorf("%w: %s item %q", ErrNotFound, d, id)
}
