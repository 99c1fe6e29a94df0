package clinic

import (
	"errors"
	"strings"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrVisitNotFound   = errors.New("visit not found")
	ErrClinicNotFound  = errors.New("clinic not found")
	ErrUserNotFound    = errors.New("user not found")
)

// ValidationError lists every failed local precondition of a request.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Add records a failed check.
func (e *ValidationError) Add(msg string) {
	e.Fields = append(e.Fields, msg)
}

// Check records msg when ok is false.
func (e *ValidationError) Check(ok bool, msg string) {
	if !ok {
		e.Add(msg)
	}
}

// Err returns nil when no check failed.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
