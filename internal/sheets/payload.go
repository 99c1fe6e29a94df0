package sheets

import (
	"bytes"
	"encoding/json"

	"github.com/wolfman30/clinicdesk/internal/clinic"
)

// ActionUpdate marks a POST as an update of an existing row.
const ActionUpdate = "update"

// Payload is an ordered set of fields posted to the remote store. Fields
// are emitted in insertion order so rows line up with the sheet columns.
type Payload struct {
	keys   []string
	values map[string]any
}

func NewPayload() *Payload {
	return &Payload{values: map[string]any{}}
}

// Set adds or replaces a field, keeping its original position on replace.
func (p *Payload) Set(key string, value any) *Payload {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

func (p *Payload) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

func (p *Payload) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

func (p *Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if p != nil {
		for i, k := range p.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(p.values[k])
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encoders for new rows omit the primary key; the remote store assigns it.

func PatientPayload(p clinic.Patient) *Payload {
	return NewPayload().
		Set("name", p.Name).
		Set("dob", p.DOB).
		Set("gender", string(p.Gender)).
		Set("phone", p.Phone).
		Set("address", p.Address)
}

func VisitPayload(v clinic.Visit) *Payload {
	return NewPayload().
		Set("patient_id", v.PatientID).
		Set("clinic_id", v.ClinicID).
		Set("visit_date", v.VisitDate).
		Set("queue_number", v.QueueNumber).
		Set("status", string(v.Status)).
		Set("visit_type", string(v.VisitType))
}

// VisitStatusPayload updates only the status of an existing visit.
func VisitStatusPayload(visitID int64, status clinic.VisitStatus) *Payload {
	return NewPayload().
		Set("action", ActionUpdate).
		Set("visit_id", visitID).
		Set("status", string(status))
}

func DiagnosisPayload(d clinic.Diagnosis) *Payload {
	return NewPayload().
		Set("visit_id", d.VisitID).
		Set("doctor", d.Doctor).
		Set("diagnosis", d.Diagnosis).
		Set("prescription", d.Prescription).
		Set("labs_needed", JoinList(d.LabsNeeded)).
		Set("notes", d.Notes)
}

func RevenuePayload(r clinic.Revenue) *Payload {
	return NewPayload().
		Set("visit_id", r.VisitID).
		Set("patient_id", r.PatientID).
		Set("patient_name", r.PatientName).
		Set("clinic_id", r.ClinicID).
		Set("amount", r.Amount).
		Set("date", r.Date).
		Set("type", string(r.Type)).
		Set("notes", r.Notes)
}

func UserPayload(u clinic.User) *Payload {
	p := NewPayload().
		Set("name", u.Name).
		Set("username", u.Username).
		Set("password", u.Password).
		Set("role", string(u.Role))
	if u.Role == clinic.RoleDoctor {
		p.Set("clinic_id", u.ClinicID).
			Set("doctor_id", u.DoctorID).
			Set("doctor_name", u.DoctorName)
	}
	return p
}

// UserUpdatePayload carries only the changed fields of a user.
type UserUpdate struct {
	Name       *string
	Username   *string
	Password   *string
	Role       *clinic.Role
	ClinicID   *int64
	DoctorID   *int64
	DoctorName *string
}

func UserUpdatePayload(userID int64, u UserUpdate) *Payload {
	p := NewPayload().Set("action", ActionUpdate).Set("user_id", userID)
	if u.Name != nil {
		p.Set("name", *u.Name)
	}
	if u.Username != nil {
		p.Set("username", *u.Username)
	}
	if u.Password != nil {
		p.Set("password", *u.Password)
	}
	if u.Role != nil {
		p.Set("role", string(*u.Role))
	}
	if u.ClinicID != nil {
		p.Set("clinic_id", *u.ClinicID)
	}
	if u.DoctorID != nil {
		p.Set("doctor_id", *u.DoctorID)
	}
	if u.DoctorName != nil {
		p.Set("doctor_name", *u.DoctorName)
	}
	return p
}

func DoctorPayload(d clinic.Doctor) *Payload {
	return NewPayload().
		Set("doctor_name", d.Name).
		Set("specialty", d.Specialty).
		Set("clinic_id", d.ClinicID).
		Set("phone", d.Phone).
		Set("email", d.Email).
		Set("shift", string(d.Shift)).
		Set("status", string(d.Status))
}
