package visits

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a status change violates the visit lifecycle.
	ErrInvalidTransition = errors.New("invalid visit status transition")
	// ErrAlreadyDiagnosed is returned when the cached snapshot already holds a diagnosis for the visit.
	ErrAlreadyDiagnosed = errors.New("visit already has a diagnosis")
	// ErrLockContended is returned when another instance holds the queue lock past the wait budget.
	ErrLockContended = errors.New("queue lock held by another writer")
)

// ConfirmationTimeoutError means a visit write was accepted but the row
// could not be found afterwards. The write most likely succeeded.
type ConfirmationTimeoutError struct {
	Key   VisitKey
	Cause error
}

func (e *ConfirmationTimeoutError) Error() string {
	msg := fmt.Sprintf("visit for patient %d in clinic %d (queue %d on %s) was submitted but could not be confirmed; check the visits list before retrying",
		e.Key.PatientID, e.Key.ClinicID, e.Key.QueueNumber, e.Key.VisitDate)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConfirmationTimeoutError) Unwrap() error { return e.Cause }

// IsConfirmationTimeout reports whether err is a ConfirmationTimeoutError.
func IsConfirmationTimeout(err error) bool {
	var ct *ConfirmationTimeoutError
	return errors.As(err, &ct)
}
