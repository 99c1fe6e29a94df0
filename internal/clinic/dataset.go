package clinic

import (
	"slices"
	"strings"
)

// Dataset is one consistent snapshot of every sheet. Treat it as read-only
// once published; use Clone before modifying.
type Dataset struct {
	Patients  []Patient   `json:"patients"`
	Visits    []Visit     `json:"visits"`
	Diagnoses []Diagnosis `json:"diagnoses"`
	Revenues  []Revenue   `json:"revenues"`
	Clinics   []Clinic    `json:"clinics"`
	Doctors   []Doctor    `json:"doctors"`
	Users     []User      `json:"-"`
}

func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return &Dataset{}
	}
	out := &Dataset{
		Patients:  slices.Clone(d.Patients),
		Visits:    slices.Clone(d.Visits),
		Diagnoses: make([]Diagnosis, len(d.Diagnoses)),
		Revenues:  slices.Clone(d.Revenues),
		Clinics:   slices.Clone(d.Clinics),
		Doctors:   slices.Clone(d.Doctors),
		Users:     slices.Clone(d.Users),
	}
	for i, dg := range d.Diagnoses {
		dg.LabsNeeded = slices.Clone(dg.LabsNeeded)
		out.Diagnoses[i] = dg
	}
	return out
}

func (d *Dataset) Patient(id int64) (Patient, bool) {
	for _, p := range d.Patients {
		if p.ID == id {
			return p, true
		}
	}
	return Patient{}, false
}

func (d *Dataset) Visit(id int64) (Visit, bool) {
	for _, v := range d.Visits {
		if v.ID == id {
			return v, true
		}
	}
	return Visit{}, false
}

func (d *Dataset) Clinic(id int64) (Clinic, bool) {
	for _, c := range d.Clinics {
		if c.ID == id {
			return c, true
		}
	}
	return Clinic{}, false
}

func (d *Dataset) Doctor(id int64) (Doctor, bool) {
	for _, doc := range d.Doctors {
		if doc.ID == id {
			return doc, true
		}
	}
	return Doctor{}, false
}

func (d *Dataset) User(id int64) (User, bool) {
	for _, u := range d.Users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// UserByUsername matches case-sensitively after trimming, like the login form.
func (d *Dataset) UserByUsername(username string) (User, bool) {
	username = strings.TrimSpace(username)
	for _, u := range d.Users {
		if u.Username == username {
			return u, true
		}
	}
	return User{}, false
}

// DiagnosisFor returns the first diagnosis recorded for the visit.
func (d *Dataset) DiagnosisFor(visitID int64) (Diagnosis, bool) {
	for _, dg := range d.Diagnoses {
		if dg.VisitID == visitID {
			return dg, true
		}
	}
	return Diagnosis{}, false
}

// DiagnosedVisits indexes visit ids that have at least one diagnosis.
func (d *Dataset) DiagnosedVisits() map[int64]bool {
	out := make(map[int64]bool, len(d.Diagnoses))
	for _, dg := range d.Diagnoses {
		out[dg.VisitID] = true
	}
	return out
}

func (d *Dataset) EffectiveStatus(v Visit) VisitStatus {
	_, ok := d.DiagnosisFor(v.ID)
	return EffectiveStatus(v, ok)
}

// VisitsOn returns the clinic's visits on date in sheet order.
func (d *Dataset) VisitsOn(clinicID int64, date string) []Visit {
	var out []Visit
	for _, v := range d.Visits {
		if v.ClinicID == clinicID && v.VisitDate == date {
			out = append(out, v)
		}
	}
	return out
}
