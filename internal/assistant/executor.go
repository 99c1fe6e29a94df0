package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/frontdesk"
	"github.com/wolfman30/clinicdesk/internal/reports"
	"github.com/wolfman30/clinicdesk/internal/state"
	"github.com/wolfman30/clinicdesk/internal/visits"
)

const maxPatientMatches = 20

// Frontdesk is the mutation surface commands run against.
type Frontdesk interface {
	AddPatient(ctx context.Context, actor frontdesk.Actor, req frontdesk.AddPatientRequest) (frontdesk.PatientResult, error)
	AddVisit(ctx context.Context, actor frontdesk.Actor, req frontdesk.AddVisitRequest) (frontdesk.VisitResult, error)
	AddDiagnosis(ctx context.Context, actor frontdesk.Actor, req frontdesk.AddDiagnosisRequest) (visits.DiagnosisOutcome, error)
	AddManualRevenue(ctx context.Context, actor frontdesk.Actor, req frontdesk.AddManualRevenueRequest) (clinic.Revenue, error)
	AddDoctor(ctx context.Context, actor frontdesk.Actor, req frontdesk.AddDoctorRequest) (clinic.Doctor, error)
	AddUser(ctx context.Context, actor frontdesk.Actor, req frontdesk.AddUserRequest) (clinic.User, error)
	UpdateVisitStatus(ctx context.Context, actor frontdesk.Actor, req frontdesk.UpdateVisitStatusRequest) (state.Patch, error)
}

// Snapshot is the cache read-only commands query.
type Snapshot interface {
	View() *clinic.Dataset
}

// Result is the outcome of one command, shaped for both HTTP clients and
// model function responses.
type Result struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Data    any    `json:"data,omitempty"`
	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Executor runs commands with the same checks the UI gets.
type Executor struct {
	desk  Frontdesk
	data  Snapshot
	today func() string
}

func NewExecutor(desk Frontdesk, data Snapshot, today func() string) *Executor {
	return &Executor{desk: desk, data: data, today: today}
}

// Execute runs cmd as actor. A ConfirmationTimeoutError is reported as a
// warning on an otherwise successful result.
func (e *Executor) Execute(ctx context.Context, actor frontdesk.Actor, cmd Command) (Result, error) {
	res := Result{Command: cmd.Name()}
	data, err := e.run(ctx, actor, cmd)
	switch {
	case err == nil:
		res.OK = true
		res.Data = data
		return res, nil
	case visits.IsConfirmationTimeout(err):
		res.OK = true
		res.Data = data
		res.Warning = err.Error()
		return res, nil
	default:
		res.Error = err.Error()
		return res, err
	}
}

func (e *Executor) run(ctx context.Context, actor frontdesk.Actor, cmd Command) (any, error) {
	switch c := cmd.(type) {
	case AddPatient:
		return e.desk.AddPatient(ctx, actor, c.AddPatientRequest)
	case AddVisit:
		return e.desk.AddVisit(ctx, actor, c.AddVisitRequest)
	case AddDiagnosis:
		return e.desk.AddDiagnosis(ctx, actor, c.AddDiagnosisRequest)
	case AddManualRevenue:
		return e.desk.AddManualRevenue(ctx, actor, c.AddManualRevenueRequest)
	case AddDoctor:
		return e.desk.AddDoctor(ctx, actor, c.AddDoctorRequest)
	case AddUser:
		return e.desk.AddUser(ctx, actor, c.AddUserRequest)
	case UpdateVisitStatus:
		return e.desk.UpdateVisitStatus(ctx, actor, c.UpdateVisitStatusRequest)
	case FindPatients:
		if err := requireUser(actor); err != nil {
			return nil, err
		}
		found := reports.SearchPatients(e.data.View(), c.Query)
		if len(found) > maxPatientMatches {
			found = found[:maxPatientMatches]
		}
		return found, nil
	case TodaysQueue:
		if err := requireUser(actor); err != nil {
			return nil, err
		}
		return reports.Board(e.data.View(), e.today(), reports.ScopeClinic(actor.User, c.ClinicID)), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
}

func requireUser(actor frontdesk.Actor) error {
	if actor.User.ID == 0 && actor.User.Username == "" {
		return frontdesk.ErrNotAuthenticated
	}
	return nil
}

// IsUserError reports whether err came from the request rather than the
// system: bad arguments, missing rights, or a conflicting state.
func IsUserError(err error) bool {
	return clinic.IsValidation(err) ||
		errors.Is(err, ErrUnknownCommand) ||
		errors.Is(err, frontdesk.ErrForbidden) ||
		errors.Is(err, frontdesk.ErrNotAuthenticated) ||
		errors.Is(err, frontdesk.ErrOperationInProgress) ||
		errors.Is(err, visits.ErrInvalidTransition) ||
		errors.Is(err, visits.ErrAlreadyDiagnosed) ||
		errors.Is(err, clinic.ErrVisitNotFound)
}
