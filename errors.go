package kudos

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrInvalidInput = errors.New("kudos: invalid input")

	// Grant rejections
	ErrSelfGrant           = errors.New("kudos: cannot grant to yourself")
	ErrIneligibleRecipient = errors.New("kudos: recipient is not eligible")
	ErrQuotaExhausted      = errors.New("kudos: monthly allotment exhausted")
	ErrMessageTooLong      = errors.New("kudos: message too long")

	// Store errors
	ErrStoreNotReady = errors.New("kudos: store not ready")
	ErrStoreClosed   = errors.New("kudos: store is closed")
)

// ValidationError represents a validation failure with details.
// It matches ErrInvalidInput under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("kudos: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap returns ErrInvalidInput.
func (e ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "kudos: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("kudos: %d errors occurred: %v", len(e.Errors), e.Errors[0])
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// PersistenceError wraps a failure reported by the backing store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("kudos: %s: %v", e.Op, e.Err)
}

// Unwrap returns the backend error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// IsRejection returns true if the error is a business-rule rejection of a grant.
func IsRejection(err error) bool {
	return errors.Is(err, ErrSelfGrant) ||
		errors.Is(err, ErrIneligibleRecipient) ||
		errors.Is(err, ErrQuotaExhausted) ||
		errors.Is(err, ErrMessageTooLong)
}

// IsPersistence returns true if the error came from the backing store.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady)
}

// requireIDs reports every missing identifier of a grant candidate.
func requireIDs(senderID, recipientID, groupID string) error {
	return requireFields(
		"sender_id", senderID,
		"recipient_id", recipientID,
		"group_id", groupID,
	)
}

// requireFields takes field/value pairs and reports every empty value.
func requireFields(pairs ...string) error {
	var errs MultiError
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			errs.Add(ValidationError{Field: pairs[i], Message: "is required"})
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
