package sheets

import (
	"errors"
	"fmt"
)

// TransportError is a network failure or non-2xx HTTP status.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("sheets: %s: remote store returned HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("sheets: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is a well-formed response with success=false.
type RemoteError struct {
	Op      string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("sheets: %s: remote store rejected request: %s", e.Op, e.Message)
}

// MalformedResponseError is a 2xx response whose body is not the expected envelope.
type MalformedResponseError struct {
	Op   string
	Body string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("sheets: %s: invalid response from remote store: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a transport-level failure. Malformed
// responses count as transport failures.
func IsTransport(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// IsRemote reports whether the remote store explicitly rejected the request.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// RowError describes a row quarantined during decoding.
type RowError struct {
	Sheet string
	Index int
	Err   error
	// Slot is set for quarantined Visits rows whose clinic and date still
	// decode. The row keeps its place in that clinic's daily queue.
	Slot *QueueSlot
}

// QueueSlot identifies one clinic's queue on one day.
type QueueSlot struct {
	ClinicID int64
	Date     string
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s row %d: %v", e.Sheet, e.Index, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }
