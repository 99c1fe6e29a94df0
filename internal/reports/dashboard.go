// Package reports derives dashboards, the queue board, and list views from
// a cached snapshot. Nothing here touches the network.
package reports

import (
	"sort"

	"github.com/wolfman30/clinicdesk/internal/clinic"
)

// QueueEntry is one visit as shown in a queue.
type QueueEntry struct {
	VisitID      int64              `json:"visit_id"`
	QueueNumber  int                `json:"queue_number"`
	PatientID    int64              `json:"patient_id"`
	PatientName  string             `json:"patient_name"`
	VisitType    clinic.VisitType   `json:"visit_type"`
	Status       clinic.VisitStatus `json:"status"`
	StatusLabel  string             `json:"status_label"`
	HasDiagnosis bool               `json:"has_diagnosis"`
}

type ReceptionDashboard struct {
	Date          string `json:"date"`
	TotalPatients int    `json:"total_patients"`
	TodaysVisits  int    `json:"todays_visits"`
	Waiting       int    `json:"waiting"`
}

type DoctorDashboard struct {
	Date       string       `json:"date"`
	ClinicID   int64        `json:"clinic_id"`
	ClinicName string       `json:"clinic_name"`
	Waiting    []QueueEntry `json:"waiting"`
	Done       []QueueEntry `json:"done"`
	Revenue    float64      `json:"revenue"`
}

// ClinicSummary is one clinic's day.
type ClinicSummary struct {
	ClinicID     int64   `json:"clinic_id"`
	ClinicName   string  `json:"clinic_name"`
	Visits       int     `json:"visits"`
	Waiting      int     `json:"waiting"`
	Completed    int     `json:"completed"`
	Canceled     int     `json:"canceled"`
	Revenue      float64 `json:"revenue"`
	Capacity     int     `json:"capacity"`
	OverCapacity bool    `json:"over_capacity"`
}

type ManagerDashboard struct {
	Date          string          `json:"date"`
	Clinics       []ClinicSummary `json:"clinics"`
	TotalPatients int             `json:"total_patients"`
	TotalVisits   int             `json:"total_visits"`
	TotalWaiting  int             `json:"total_waiting"`
	TotalRevenue  float64         `json:"total_revenue"`
	ActiveDoctors int             `json:"active_doctors"`
}

func Reception(d *clinic.Dataset, today string) ReceptionDashboard {
	out := ReceptionDashboard{Date: today, TotalPatients: len(d.Patients)}
	diagnosed := d.DiagnosedVisits()
	for _, v := range d.Visits {
		if v.VisitDate != today {
			continue
		}
		out.TodaysVisits++
		if clinic.EffectiveStatus(v, diagnosed[v.ID]).IsOpen() {
			out.Waiting++
		}
	}
	return out
}

// Doctor splits a clinic's queue for today into open and finished visits.
func Doctor(d *clinic.Dataset, clinicID int64, today string) DoctorDashboard {
	out := DoctorDashboard{Date: today, ClinicID: clinicID, Waiting: []QueueEntry{}, Done: []QueueEntry{}}
	if c, ok := d.Clinic(clinicID); ok {
		out.ClinicName = c.Name
	}
	for _, e := range queue(d, d.VisitsOn(clinicID, today)) {
		if e.Status.IsOpen() {
			out.Waiting = append(out.Waiting, e)
		} else {
			out.Done = append(out.Done, e)
		}
	}
	for _, r := range d.Revenues {
		if r.ClinicID == clinicID && r.Date == today {
			out.Revenue += r.Amount
		}
	}
	return out
}

func Manager(d *clinic.Dataset, today string) ManagerDashboard {
	out := ManagerDashboard{Date: today, TotalPatients: len(d.Patients), Clinics: []ClinicSummary{}}
	diagnosed := d.DiagnosedVisits()
	byClinic := map[int64]*ClinicSummary{}
	for _, c := range d.Clinics {
		out.Clinics = append(out.Clinics, ClinicSummary{
			ClinicID:   c.ID,
			ClinicName: c.Name,
			Capacity:   c.MaxPatientsPerDay,
		})
	}
	for i := range out.Clinics {
		byClinic[out.Clinics[i].ClinicID] = &out.Clinics[i]
	}

	for _, v := range d.Visits {
		if v.VisitDate != today {
			continue
		}
		out.TotalVisits++
		s, ok := byClinic[v.ClinicID]
		status := clinic.EffectiveStatus(v, diagnosed[v.ID])
		if status.IsOpen() {
			out.TotalWaiting++
		}
		if !ok {
			continue
		}
		s.Visits++
		switch status {
		case clinic.StatusCompleted:
			s.Completed++
		case clinic.StatusCanceled:
			s.Canceled++
		default:
			s.Waiting++
		}
	}
	for _, r := range d.Revenues {
		if r.Date != today {
			continue
		}
		out.TotalRevenue += r.Amount
		if s, ok := byClinic[r.ClinicID]; ok {
			s.Revenue += r.Amount
		}
	}
	for i := range out.Clinics {
		c := &out.Clinics[i]
		c.OverCapacity = c.Capacity > 0 && c.Visits > c.Capacity
	}
	for _, doc := range d.Doctors {
		if doc.Status == clinic.DoctorActive {
			out.ActiveDoctors++
		}
	}
	return out
}

// queue builds entries sorted by queue number.
func queue(d *clinic.Dataset, visits []clinic.Visit) []QueueEntry {
	diagnosed := d.DiagnosedVisits()
	out := make([]QueueEntry, 0, len(visits))
	for _, v := range visits {
		status := clinic.EffectiveStatus(v, diagnosed[v.ID])
		e := QueueEntry{
			VisitID:      v.ID,
			QueueNumber:  v.QueueNumber,
			PatientID:    v.PatientID,
			VisitType:    v.VisitType,
			Status:       status,
			StatusLabel:  status.Label(),
			HasDiagnosis: diagnosed[v.ID],
		}
		if p, ok := d.Patient(v.PatientID); ok {
			e.PatientName = p.Name
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].QueueNumber < out[j].QueueNumber })
	return out
}
