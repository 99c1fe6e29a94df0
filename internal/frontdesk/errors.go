package frontdesk

import "errors"

var (
	// ErrOperationInProgress is returned when the same session submits an
	// operation while an identical one is still pending.
	ErrOperationInProgress = errors.New("operation already in progress for this session")

	// ErrForbidden is returned when the actor's role does not permit the operation.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrNotAuthenticated is returned when no user is attached to the request.
	ErrNotAuthenticated = errors.New("not authenticated")
)
