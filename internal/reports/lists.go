package reports

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wolfman30/clinicdesk/internal/clinic"
)

// DateRange is inclusive on both ends. Empty bounds are open.
type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func (r DateRange) Contains(date string) bool {
	if r.From != "" && date < r.From {
		return false
	}
	if r.To != "" && date > r.To {
		return false
	}
	return true
}

type VisitFilter struct {
	ClinicID  int64
	PatientID int64
	Status    clinic.VisitStatus
	Range     DateRange
}

type VisitRow struct {
	clinic.Visit
	PatientName     string             `json:"patient_name"`
	ClinicName      string             `json:"clinic_name"`
	EffectiveStatus clinic.VisitStatus `json:"effective_status"`
	StatusLabel     string             `json:"status_label"`
	HasDiagnosis    bool               `json:"has_diagnosis"`
}

// Visits lists visits newest date first, then by queue number. Status
// filters on the effective status.
func Visits(d *clinic.Dataset, f VisitFilter) []VisitRow {
	diagnosed := d.DiagnosedVisits()
	out := []VisitRow{}
	for _, v := range d.Visits {
		if f.ClinicID != 0 && v.ClinicID != f.ClinicID {
			continue
		}
		if f.PatientID != 0 && v.PatientID != f.PatientID {
			continue
		}
		if !f.Range.Contains(v.VisitDate) {
			continue
		}
		status := clinic.EffectiveStatus(v, diagnosed[v.ID])
		if f.Status != "" && status != f.Status {
			continue
		}
		row := VisitRow{Visit: v, EffectiveStatus: status, StatusLabel: status.Label(), HasDiagnosis: diagnosed[v.ID]}
		if p, ok := d.Patient(v.PatientID); ok {
			row.PatientName = p.Name
		}
		if c, ok := d.Clinic(v.ClinicID); ok {
			row.ClinicName = c.Name
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].VisitDate != out[j].VisitDate {
			return out[i].VisitDate > out[j].VisitDate
		}
		return out[i].QueueNumber < out[j].QueueNumber
	})
	return out
}

type RevenueRow struct {
	clinic.Revenue
	ClinicName string `json:"clinic_name"`
}

type RevenueReport struct {
	Rows  []RevenueRow `json:"rows"`
	Total float64      `json:"total"`
}

// Revenues lists revenue newest first with a running total.
func Revenues(d *clinic.Dataset, clinicID int64, r DateRange) RevenueReport {
	out := RevenueReport{Rows: []RevenueRow{}}
	for _, rev := range d.Revenues {
		if clinicID != 0 && rev.ClinicID != clinicID {
			continue
		}
		if !r.Contains(rev.Date) {
			continue
		}
		row := RevenueRow{Revenue: rev}
		if c, ok := d.Clinic(rev.ClinicID); ok {
			row.ClinicName = c.Name
		}
		out.Rows = append(out.Rows, row)
		out.Total += rev.Amount
	}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		if out.Rows[i].Date != out.Rows[j].Date {
			return out.Rows[i].Date > out.Rows[j].Date
		}
		return out.Rows[i].ID > out.Rows[j].ID
	})
	return out
}

// MedicalRecord bundles a diagnosed visit with everything it references.
type MedicalRecord struct {
	Visit     clinic.Visit     `json:"visit"`
	Patient   clinic.Patient   `json:"patient"`
	Clinic    clinic.Clinic    `json:"clinic"`
	Diagnosis clinic.Diagnosis `json:"diagnosis"`
}

type MedicalFilter struct {
	PatientName string
	ClinicID    int64
	Range       DateRange
}

// MedicalRecords lists diagnosed visits, newest first.
func MedicalRecords(d *clinic.Dataset, f MedicalFilter) []MedicalRecord {
	name := strings.ToLower(strings.TrimSpace(f.PatientName))
	out := []MedicalRecord{}
	for _, v := range d.Visits {
		if f.ClinicID != 0 && v.ClinicID != f.ClinicID {
			continue
		}
		if !f.Range.Contains(v.VisitDate) {
			continue
		}
		rec, ok := record(d, v)
		if !ok {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(rec.Patient.Name), name) {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Visit.VisitDate > out[j].Visit.VisitDate })
	return out
}

// MedicalReport returns the bundle for a single diagnosed visit.
func MedicalReport(d *clinic.Dataset, visitID int64) (MedicalRecord, error) {
	v, ok := d.Visit(visitID)
	if !ok {
		return MedicalRecord{}, clinic.ErrVisitNotFound
	}
	rec, ok := record(d, v)
	if !ok {
		return MedicalRecord{}, fmt.Errorf("reports: visit %d has no diagnosis: %w", visitID, clinic.ErrVisitNotFound)
	}
	return rec, nil
}

func record(d *clinic.Dataset, v clinic.Visit) (MedicalRecord, bool) {
	dx, ok := d.DiagnosisFor(v.ID)
	if !ok {
		return MedicalRecord{}, false
	}
	rec := MedicalRecord{Visit: v, Diagnosis: dx}
	rec.Patient, _ = d.Patient(v.PatientID)
	rec.Clinic, _ = d.Clinic(v.ClinicID)
	return rec, true
}

// SearchPatients matches the name case-insensitively or the phone as a
// substring. An empty query returns every patient.
func SearchPatients(d *clinic.Dataset, query string) []clinic.Patient {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []clinic.Patient{}
	for _, p := range d.Patients {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) || (p.Phone != "" && strings.Contains(p.Phone, q)) {
			out = append(out, p)
		}
	}
	return out
}

type HistoryEntry struct {
	VisitID    int64            `json:"visit_id"`
	VisitDate  string           `json:"visit_date"`
	ClinicName string           `json:"clinic_name"`
	VisitType  clinic.VisitType `json:"visit_type"`
	Diagnosis  clinic.Diagnosis `json:"diagnosis"`
}

type PatientHistory struct {
	Patient clinic.Patient `json:"patient"`
	Entries []HistoryEntry `json:"entries"`
}

// History lists a patient's past diagnoses, newest first.
func History(d *clinic.Dataset, patientID int64) (PatientHistory, error) {
	p, ok := d.Patient(patientID)
	if !ok {
		return PatientHistory{}, clinic.ErrPatientNotFound
	}
	out := PatientHistory{Patient: p, Entries: []HistoryEntry{}}
	for _, v := range d.Visits {
		if v.PatientID != patientID {
			continue
		}
		dx, ok := d.DiagnosisFor(v.ID)
		if !ok {
			continue
		}
		e := HistoryEntry{VisitID: v.ID, VisitDate: v.VisitDate, VisitType: v.VisitType, Diagnosis: dx}
		if c, ok := d.Clinic(v.ClinicID); ok {
			e.ClinicName = c.Name
		}
		out.Entries = append(out.Entries, e)
	}
	sort.SliceStable(out.Entries, func(i, j int) bool { return out.Entries[i].VisitDate > out.Entries[j].VisitDate })
	return out, nil
}

type PriceQuote struct {
	ClinicID  int64            `json:"clinic_id"`
	VisitType clinic.VisitType `json:"visit_type"`
	Base      float64          `json:"base"`
	Discount  float64          `json:"discount"`
	Amount    float64          `json:"amount"`
}

// Quote prices a visit type at a clinic after discount.
func Quote(d *clinic.Dataset, clinicID int64, t clinic.VisitType, discount float64) (PriceQuote, error) {
	c, ok := d.Clinic(clinicID)
	if !ok {
		return PriceQuote{}, clinic.ErrClinicNotFound
	}
	v := &clinic.ValidationError{}
	v.Check(t.IsValid(), fmt.Sprintf("visit_type %q is not recognized", t))
	v.Check(discount >= 0, "discount must not be negative")
	if err := v.Err(); err != nil {
		return PriceQuote{}, err
	}
	base := c.Price(t)
	return PriceQuote{
		ClinicID:  clinicID,
		VisitType: t,
		Base:      base,
		Discount:  discount,
		Amount:    clinic.AmountAfterDiscount(base, discount),
	}, nil
}
