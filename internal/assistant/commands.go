// Package assistant exposes front desk operations as typed commands that a
// tool-calling model, or a client posting JSON, can run as the logged-in user.
package assistant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/frontdesk"
)

// ErrUnknownCommand is returned for a command name outside the set.
var ErrUnknownCommand = errors.New("unknown assistant command")

// Command is one of the variants below. The set is closed.
type Command interface {
	Name() string
	isCommand()
}

type AddPatient struct{ frontdesk.AddPatientRequest }
type AddVisit struct{ frontdesk.AddVisitRequest }
type AddDiagnosis struct{ frontdesk.AddDiagnosisRequest }
type AddManualRevenue struct{ frontdesk.AddManualRevenueRequest }
type AddDoctor struct{ frontdesk.AddDoctorRequest }
type AddUser struct{ frontdesk.AddUserRequest }
type UpdateVisitStatus struct{ frontdesk.UpdateVisitStatusRequest }

// FindPatients searches by name or phone.
type FindPatients struct {
	Query string `json:"query"`
}

// TodaysQueue lists today's open queue. ClinicID 0 means every clinic the
// user may see.
type TodaysQueue struct {
	ClinicID int64 `json:"clinic_id"`
}

func (AddPatient) Name() string        { return "add_patient" }
func (AddVisit) Name() string          { return "add_visit" }
func (AddDiagnosis) Name() string      { return "add_diagnosis" }
func (AddManualRevenue) Name() string  { return "add_manual_revenue" }
func (AddDoctor) Name() string         { return "add_doctor" }
func (AddUser) Name() string           { return "add_user" }
func (UpdateVisitStatus) Name() string { return "update_visit_status" }
func (FindPatients) Name() string      { return "find_patients" }
func (TodaysQueue) Name() string       { return "todays_queue" }

func (AddPatient) isCommand()        {}
func (AddVisit) isCommand()          {}
func (AddDiagnosis) isCommand()      {}
func (AddManualRevenue) isCommand()  {}
func (AddDoctor) isCommand()         {}
func (AddUser) isCommand()           {}
func (UpdateVisitStatus) isCommand() {}
func (FindPatients) isCommand()      {}
func (TodaysQueue) isCommand()       {}

var registry = map[string]func() Command{
	"add_patient":         func() Command { return &AddPatient{} },
	"add_visit":           func() Command { return &AddVisit{} },
	"add_diagnosis":       func() Command { return &AddDiagnosis{} },
	"add_manual_revenue":  func() Command { return &AddManualRevenue{} },
	"add_doctor":          func() Command { return &AddDoctor{} },
	"add_user":            func() Command { return &AddUser{} },
	"update_visit_status": func() Command { return &UpdateVisitStatus{} },
	"find_patients":       func() Command { return &FindPatients{} },
	"todays_queue":        func() Command { return &TodaysQueue{} },
}

// Names lists every command name, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Decode strictly parses args for the named command. Unknown fields and
// trailing data are rejected as validation errors.
func Decode(name string, args json.RawMessage) (Command, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	cmd := ctor()
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cmd); err != nil {
		return nil, &clinic.ValidationError{Fields: []string{fmt.Sprintf("%s: %v", name, err)}}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &clinic.ValidationError{Fields: []string{name + ": unexpected data after arguments"}}
	}
	return deref(cmd), nil
}

// deref hands out value variants so type switches see one shape.
func deref(cmd Command) Command {
	switch c := cmd.(type) {
	case *AddPatient:
		return *c
	case *AddVisit:
		return *c
	case *AddDiagnosis:
		return *c
	case *AddManualRevenue:
		return *c
	case *AddDoctor:
		return *c
	case *AddUser:
		return *c
	case *UpdateVisitStatus:
		return *c
	case *FindPatients:
		return *c
	case *TodaysQueue:
		return *c
	}
	return cmd
}
