package sheets

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/wolfman30/clinicdesk/internal/clinic"
)

// RawData is the per-sheet row list returned by a fetch.
type RawData map[string][]json.RawMessage

// Decode builds a dataset from raw sheet rows. Rows that fail to decode are
// left out of the dataset and reported.
func Decode(raw RawData, loc *time.Location) (*clinic.Dataset, []RowError) {
	var rowErrs []RowError
	d := &clinic.Dataset{
		Patients:  decodeSheet(raw, PatientsSchema, loc, patientFromRecord, &rowErrs),
		Visits:    decodeSheet(raw, VisitsSchema, loc, visitFromRecord, &rowErrs),
		Diagnoses: decodeSheet(raw, DiagnosisSchema, loc, diagnosisFromRecord, &rowErrs),
		Revenues:  decodeSheet(raw, RevenuesSchema, loc, revenueFromRecord, &rowErrs),
		Users:     decodeSheet(raw, UsersSchema, loc, userFromRecord, &rowErrs),
		Doctors:   decodeSheet(raw, DoctorsSchema, loc, doctorFromRecord, &rowErrs),
		Clinics:   decodeSheet(raw, ClinicsSchema, loc, clinicFromRecord, &rowErrs),
	}
	return d, rowErrs
}

func decodeSheet[T any](raw RawData, s Schema, loc *time.Location, build func(Record) T, rowErrs *[]RowError) []T {
	rows := raw[s.Sheet]
	out := make([]T, 0, len(rows))
	for i, row := range rows {
		rec, err := s.DecodeRow(row, loc)
		if err != nil {
			rowErr := RowError{Sheet: s.Sheet, Index: i, Err: err}
			if s.Sheet == SheetVisits {
				rowErr.Slot = visitSlot(row, loc)
			}
			*rowErrs = append(*rowErrs, rowErr)
			continue
		}
		out = append(out, build(rec))
	}
	return out
}

func visitSlot(raw json.RawMessage, loc *time.Location) *QueueSlot {
	rec, ok := VisitsSchema.partial(raw, loc, "clinic_id", "visit_date")
	if !ok || rec.Int("clinic_id") <= 0 || rec.String("visit_date") == "" {
		return nil
	}
	return &QueueSlot{ClinicID: rec.Int("clinic_id"), Date: rec.String("visit_date")}
}

// DecodeVisit decodes a single Visits row, such as one echoed by a write.
func DecodeVisit(raw json.RawMessage, loc *time.Location) (clinic.Visit, error) {
	rec, err := VisitsSchema.DecodeRow(raw, loc)
	if err != nil {
		return clinic.Visit{}, err
	}
	return visitFromRecord(rec), nil
}

// RowID decodes a single row of s and returns its primary key.
func (s Schema) RowID(raw json.RawMessage, loc *time.Location) (int64, error) {
	rec, err := s.DecodeRow(raw, loc)
	if err != nil {
		return 0, err
	}
	return rec.Int(s.Columns[0].Name), nil
}

func patientFromRecord(r Record) clinic.Patient {
	return clinic.Patient{
		ID:      r.Int("patient_id"),
		Name:    r.String("name"),
		DOB:     r.String("dob"),
		Gender:  enumOrRaw(r.String("gender"), clinic.ParseGender),
		Phone:   r.String("phone"),
		Address: r.String("address"),
	}
}

func visitFromRecord(r Record) clinic.Visit {
	return clinic.Visit{
		ID:          r.Int("visit_id"),
		PatientID:   r.Int("patient_id"),
		ClinicID:    r.Int("clinic_id"),
		VisitDate:   r.String("visit_date"),
		QueueNumber: int(r.Int("queue_number")),
		Status:      enumOrRaw(r.String("status"), clinic.ParseVisitStatus),
		VisitType:   enumOrRaw(r.String("visit_type"), clinic.ParseVisitType),
	}
}

func diagnosisFromRecord(r Record) clinic.Diagnosis {
	return clinic.Diagnosis{
		ID:           r.Int("diagnosis_id"),
		VisitID:      r.Int("visit_id"),
		Doctor:       r.String("doctor"),
		Diagnosis:    r.String("diagnosis"),
		Prescription: r.String("prescription"),
		LabsNeeded:   r.List("labs_needed"),
		Notes:        r.String("notes"),
	}
}

func revenueFromRecord(r Record) clinic.Revenue {
	return clinic.Revenue{
		ID:          r.Int("revenue_id"),
		VisitID:     r.Int("visit_id"),
		PatientID:   r.Int("patient_id"),
		PatientName: r.String("patient_name"),
		ClinicID:    r.Int("clinic_id"),
		Amount:      r.Float("amount"),
		Date:        r.String("date"),
		Type:        enumOrRaw(r.String("type"), clinic.ParseVisitType),
		Notes:       r.String("notes"),
	}
}

func userFromRecord(r Record) clinic.User {
	return clinic.User{
		ID:         r.Int("user_id"),
		Name:       r.String("name"),
		Username:   r.String("username"),
		Password:   r.String("password"),
		Role:       enumOrRaw(strings.ToLower(r.String("role")), clinic.ParseRole),
		ClinicID:   r.Int("clinic_id"),
		DoctorID:   r.Int("doctor_id"),
		DoctorName: r.String("doctor_name"),
	}
}

func doctorFromRecord(r Record) clinic.Doctor {
	return clinic.Doctor{
		ID:        r.Int("doctor_id"),
		Name:      r.String("doctor_name"),
		Specialty: r.String("specialty"),
		ClinicID:  r.Int("clinic_id"),
		Phone:     r.String("phone"),
		Email:     r.String("email"),
		Shift:     enumOrRaw(r.String("shift"), clinic.ParseShift),
		Status:    enumOrRaw(r.String("status"), clinic.ParseDoctorStatus),
	}
}

func clinicFromRecord(r Record) clinic.Clinic {
	return clinic.Clinic{
		ID:                r.Int("clinic_id"),
		Name:              r.String("clinic_name"),
		DoctorID:          r.Int("doctor_id"),
		DoctorName:        r.String("doctor_name"),
		MaxPatientsPerDay: int(r.Int("max_patients_per_day")),
		PriceFirstVisit:   r.Float("price_first_visit"),
		PriceFollowUp:     r.Float("price_followup"),
		Shift:             enumOrRaw(r.String("shift"), clinic.ParseShift),
		Notes:             r.String("notes"),
	}
}

// enumOrRaw keeps unrecognized labels verbatim so hand-edited cells are not
// silently rewritten.
func enumOrRaw[T ~string](raw string, parse func(string) (T, bool)) T {
	if v, ok := parse(raw); ok {
		return v
	}
	return T(raw)
}
