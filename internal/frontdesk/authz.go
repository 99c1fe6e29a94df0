package frontdesk

import (
	"fmt"
	"strconv"

	"github.com/wolfman30/clinicdesk/internal/clinic"
)

// Op names a mutation. It doubles as the metrics and journal label.
type Op string

const (
	OpAddPatient        Op = "add_patient"
	OpAddVisit          Op = "add_visit"
	OpAddDiagnosis      Op = "add_diagnosis"
	OpAddManualRevenue  Op = "add_manual_revenue"
	OpAddUser           Op = "add_user"
	OpUpdateUser        Op = "update_user"
	OpAddDoctor         Op = "add_doctor"
	OpUpdateVisitStatus Op = "update_visit_status"
)

var grants = map[clinic.Role]map[Op]bool{
	clinic.RoleReceptionist: {
		OpAddPatient:       true,
		OpAddVisit:         true,
		OpAddManualRevenue: true,
	},
	clinic.RoleDoctor: {
		OpAddDiagnosis:      true,
		OpUpdateVisitStatus: true,
	},
}

// Actor is the logged-in user performing an operation.
type Actor struct {
	SessionID string
	User      clinic.User
}

// guardKey scopes in-flight guards to the session, falling back to the user.
func (a Actor) guardKey(parts ...string) string {
	key := a.SessionID
	if key == "" {
		key = "user:" + strconv.FormatInt(a.User.ID, 10)
	}
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// Can reports whether the actor's role permits op. Managers may do anything.
func (a Actor) Can(op Op) bool {
	if a.User.Role == clinic.RoleManager {
		return true
	}
	return grants[a.User.Role][op]
}

func authorize(a Actor, op Op) error {
	if a.User.ID == 0 && a.User.Username == "" {
		return ErrNotAuthenticated
	}
	if !a.Can(op) {
		return fmt.Errorf("%w: %s cannot %s", ErrForbidden, a.User.Role, op)
	}
	return nil
}

// authorizeClinic keeps doctors inside their own clinic.
func authorizeClinic(a Actor, clinicID int64) error {
	if a.User.Role == clinic.RoleDoctor && a.User.ClinicID != 0 && a.User.ClinicID != clinicID {
		return fmt.Errorf("%w: visit belongs to another clinic", ErrForbidden)
	}
	return nil
}
