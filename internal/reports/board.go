package reports

import (
	"sort"

	"github.com/wolfman30/clinicdesk/internal/clinic"
)

// BoardClinic is one clinic's open queue.
type BoardClinic struct {
	ClinicID   int64        `json:"clinic_id"`
	ClinicName string       `json:"clinic_name"`
	DoctorName string       `json:"doctor_name"`
	Entries    []QueueEntry `json:"entries"`
	Booked     int          `json:"booked"`
	Capacity   int          `json:"capacity"`
	Full       bool         `json:"full"`
}

// QueueBoard lists today's Waiting and InProgress visits per clinic.
type QueueBoard struct {
	Date    string        `json:"date"`
	Clinics []BoardClinic `json:"clinics"`
}

// Board builds the queue board. A non-zero clinicID limits it to that clinic.
func Board(d *clinic.Dataset, today string, clinicID int64) QueueBoard {
	out := QueueBoard{Date: today, Clinics: []BoardClinic{}}
	byClinic := map[int64][]clinic.Visit{}
	for _, v := range d.Visits {
		if v.VisitDate == today && (clinicID == 0 || v.ClinicID == clinicID) {
			byClinic[v.ClinicID] = append(byClinic[v.ClinicID], v)
		}
	}

	for id, visits := range byClinic {
		bc := BoardClinic{ClinicID: id, Booked: len(visits), Entries: []QueueEntry{}}
		if c, ok := d.Clinic(id); ok {
			bc.ClinicName = c.Name
			bc.DoctorName = c.DoctorName
			bc.Capacity = c.MaxPatientsPerDay
		}
		bc.Full = bc.Capacity > 0 && bc.Booked >= bc.Capacity
		for _, e := range queue(d, visits) {
			if e.Status.IsOpen() {
				bc.Entries = append(bc.Entries, e)
			}
		}
		if len(bc.Entries) > 0 {
			out.Clinics = append(out.Clinics, bc)
		}
	}
	sort.Slice(out.Clinics, func(i, j int) bool { return out.Clinics[i].ClinicID < out.Clinics[j].ClinicID })
	return out
}

// ScopeClinic pins doctors to their own clinic; other roles keep the
// requested one.
func ScopeClinic(u clinic.User, requested int64) int64 {
	if u.Role == clinic.RoleDoctor && u.ClinicID != 0 {
		return u.ClinicID
	}
	return requested
}
