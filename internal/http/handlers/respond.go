// Package handlers exposes the front desk over JSON HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/wolfman30/clinicdesk/internal/assistant"
	"github.com/wolfman30/clinicdesk/internal/auth"
	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/frontdesk"
	"github.com/wolfman30/clinicdesk/internal/http/middleware"
	"github.com/wolfman30/clinicdesk/internal/sheets"
	"github.com/wolfman30/clinicdesk/internal/visits"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

const maxBodyBytes = 1 << 20

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case clinic.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, frontdesk.ErrNotAuthenticated),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrSessionNotFound),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, frontdesk.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, frontdesk.ErrOperationInProgress),
		errors.Is(err, visits.ErrInvalidTransition),
		errors.Is(err, visits.ErrAlreadyDiagnosed),
		errors.Is(err, visits.ErrLockContended):
		return http.StatusConflict
	case errors.Is(err, clinic.ErrPatientNotFound),
		errors.Is(err, clinic.ErrVisitNotFound),
		errors.Is(err, clinic.ErrClinicNotFound),
		errors.Is(err, clinic.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, assistant.ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, assistant.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case sheets.IsTransport(err), sheets.IsRemote(err), errors.Is(err, auth.ErrUsersUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError replies with the status for err. Server-side failures are
// logged and their detail is kept out of the body unless it is a remote
// store message the user can act on.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}
	var verr *clinic.ValidationError
	if errors.As(err, &verr) {
		body.Error = "validation failed"
		body.Fields = verr.Fields
	}
	switch {
	case status == http.StatusInternalServerError:
		logger.Error("request failed", "error", err)
		body.Error = "internal error"
	case status == http.StatusBadGateway:
		logger.Warn("remote store failure", "error", err)
	}
	writeJSON(w, status, body)
}

// writeMutation replies 201 with result, or 202 with a warning when the
// write went through but could not be confirmed.
func writeMutation(w http.ResponseWriter, logger *logging.Logger, result any, err error) {
	if err == nil {
		writeJSON(w, http.StatusCreated, result)
		return
	}
	if visits.IsConfirmationTimeout(err) {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"result":  result,
			"warning": err.Error(),
		})
		return
	}
	writeError(w, logger, err)
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &clinic.ValidationError{Fields: []string{fmt.Sprintf("invalid request body: %v", err)}}
	}
	if dec.More() {
		return &clinic.ValidationError{Fields: []string{"request body must contain a single JSON object"}}
	}
	return nil
}

func actorFrom(r *http.Request) frontdesk.Actor {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		return frontdesk.Actor{}
	}
	return session.Actor()
}

// queryInt parses an optional positive integer parameter.
func queryInt(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, &clinic.ValidationError{Fields: []string{fmt.Sprintf("%s must be a non-negative integer", name)}}
	}
	return n, nil
}

func pathInt(raw, name string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, &clinic.ValidationError{Fields: []string{fmt.Sprintf("%s must be a positive integer", name)}}
	}
	return n, nil
}
