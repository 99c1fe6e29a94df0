package frontdesk

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/sheets"
)

type AddPatientRequest struct {
	Name    string        `json:"name"`
	DOB     string        `json:"dob"`
	Gender  clinic.Gender `json:"gender"`
	Phone   string        `json:"phone"`
	Address string        `json:"address"`
}

func (r *AddPatientRequest) normalize(loc *time.Location) error {
	v := &clinic.ValidationError{}
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	v.Check(r.Name != "", "name is required")
	v.Check(r.Gender == "" || r.Gender.IsValid(), fmt.Sprintf("gender %q is not recognized", r.Gender))
	if r.DOB != "" {
		dob := sheets.NormalizeDate(r.DOB, loc)
		v.Check(dob != "", fmt.Sprintf("dob %q is not a valid date", r.DOB))
		r.DOB = dob
	}
	return v.Err()
}

func (r AddPatientRequest) patient() clinic.Patient {
	return clinic.Patient{Name: r.Name, DOB: r.DOB, Gender: r.Gender, Phone: r.Phone, Address: r.Address}
}

type AddVisitRequest struct {
	PatientID int64            `json:"patient_id"`
	ClinicID  int64            `json:"clinic_id"`
	VisitType clinic.VisitType `json:"visit_type"`
}

func (r AddVisitRequest) fields() *clinic.ValidationError {
	v := &clinic.ValidationError{}
	v.Check(r.PatientID > 0, "patient_id is required")
	v.Check(r.ClinicID > 0, "clinic_id is required")
	v.Check(r.VisitType.IsValid(), fmt.Sprintf("visit_type %q is not recognized", r.VisitType))
	return v
}

func (r AddVisitRequest) validate(d *clinic.Dataset) error {
	v := r.fields()
	if _, ok := d.Patient(r.PatientID); r.PatientID > 0 && !ok {
		v.Add(fmt.Sprintf("patient %d does not exist", r.PatientID))
	}
	if _, ok := d.Clinic(r.ClinicID); r.ClinicID > 0 && !ok {
		v.Add(fmt.Sprintf("clinic %d does not exist", r.ClinicID))
	}
	return v.Err()
}

type AddDiagnosisRequest struct {
	VisitID      int64    `json:"visit_id"`
	Doctor       string   `json:"doctor"`
	Diagnosis    string   `json:"diagnosis"`
	Prescription string   `json:"prescription"`
	LabsNeeded   []string `json:"labs_needed"`
	Notes        string   `json:"notes"`
}

func (r *AddDiagnosisRequest) fields() *clinic.ValidationError {
	v := &clinic.ValidationError{}
	r.Diagnosis = strings.TrimSpace(r.Diagnosis)
	v.Check(r.Diagnosis != "", "diagnosis is required")
	v.Check(r.VisitID > 0, "visit_id is required")
	return v
}

func (r *AddDiagnosisRequest) validate(d *clinic.Dataset, actor Actor) (clinic.Visit, error) {
	v := r.fields()
	r.Doctor = strings.TrimSpace(r.Doctor)
	if r.Doctor == "" {
		r.Doctor = actor.User.DoctorName
	}
	if r.Doctor == "" {
		r.Doctor = actor.User.Name
	}
	visit, ok := d.Visit(r.VisitID)
	if r.VisitID > 0 && !ok {
		v.Add(fmt.Sprintf("visit %d does not exist", r.VisitID))
	}
	return visit, v.Err()
}

func (r AddDiagnosisRequest) diagnosis() clinic.Diagnosis {
	labs := make([]string, 0, len(r.LabsNeeded))
	for _, l := range r.LabsNeeded {
		if l = strings.TrimSpace(l); l != "" {
			labs = append(labs, l)
		}
	}
	return clinic.Diagnosis{
		VisitID:      r.VisitID,
		Doctor:       r.Doctor,
		Diagnosis:    r.Diagnosis,
		Prescription: strings.TrimSpace(r.Prescription),
		LabsNeeded:   labs,
		Notes:        strings.TrimSpace(r.Notes),
	}
}

// AddManualRevenueRequest records money taken at the desk. The stored
// amount is Amount minus Discount, floored at zero.
type AddManualRevenueRequest struct {
	VisitID     int64            `json:"visit_id"`
	PatientID   int64            `json:"patient_id"`
	PatientName string           `json:"patient_name"`
	ClinicID    int64            `json:"clinic_id"`
	Amount      *float64         `json:"amount"`
	Discount    float64          `json:"discount"`
	Date        string           `json:"date"`
	Type        clinic.VisitType `json:"type"`
	Notes       string           `json:"notes"`
}

// fields normalizes the request and checks what needs no snapshot.
func (r *AddManualRevenueRequest) fields(loc *time.Location) *clinic.ValidationError {
	v := &clinic.ValidationError{}
	r.PatientName = strings.TrimSpace(r.PatientName)
	v.Check(r.PatientName != "", "patient_name is required")
	v.Check(r.PatientID >= 0, "patient_id must not be negative")
	v.Check(r.VisitID >= 0, "visit_id must not be negative")
	v.Check(r.ClinicID > 0, "clinic_id is required")
	if r.Amount == nil {
		v.Add("amount is required")
	} else {
		v.Check(*r.Amount >= 0, "amount must not be negative")
	}
	v.Check(r.Discount >= 0, "discount must not be negative")
	date := sheets.NormalizeDate(r.Date, loc)
	if strings.TrimSpace(r.Date) == "" {
		v.Add("date is required")
	} else if date == "" {
		v.Add(fmt.Sprintf("date %q is not a valid date", r.Date))
	}
	r.Date = date
	v.Check(r.Type.IsValid(), fmt.Sprintf("type %q is not recognized", r.Type))
	return v
}

func (r *AddManualRevenueRequest) normalize(d *clinic.Dataset, loc *time.Location) error {
	v := r.fields(loc)
	if _, ok := d.Patient(r.PatientID); r.PatientID > 0 && !ok {
		v.Add(fmt.Sprintf("patient %d does not exist", r.PatientID))
	}
	if _, ok := d.Visit(r.VisitID); r.VisitID > 0 && !ok {
		v.Add(fmt.Sprintf("visit %d does not exist", r.VisitID))
	}
	if _, ok := d.Clinic(r.ClinicID); r.ClinicID > 0 && !ok {
		v.Add(fmt.Sprintf("clinic %d does not exist", r.ClinicID))
	}
	return v.Err()
}

func (r AddManualRevenueRequest) revenue() clinic.Revenue {
	return clinic.Revenue{
		VisitID:     r.VisitID,
		PatientID:   r.PatientID,
		PatientName: r.PatientName,
		ClinicID:    r.ClinicID,
		Amount:      clinic.AmountAfterDiscount(*r.Amount, r.Discount),
		Date:        r.Date,
		Type:        r.Type,
		Notes:       strings.TrimSpace(r.Notes),
	}
}

type AddUserRequest struct {
	Name     string      `json:"name"`
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     clinic.Role `json:"role"`
	DoctorID int64       `json:"doctor_id"`
	ClinicID int64       `json:"clinic_id"`
}

func (r *AddUserRequest) fields() *clinic.ValidationError {
	v := &clinic.ValidationError{}
	r.Name = strings.TrimSpace(r.Name)
	r.Username = strings.TrimSpace(r.Username)
	v.Check(r.Name != "", "name is required")
	v.Check(r.Username != "", "username is required")
	v.Check(r.Password != "", "password is required")
	v.Check(r.Role.IsValid(), fmt.Sprintf("role %q is not recognized", r.Role))
	v.Check(r.ClinicID >= 0, "clinic_id must not be negative")
	if r.Role == clinic.RoleDoctor {
		v.Check(r.DoctorID > 0, "doctor users must be linked to a doctor_id")
	}
	return v
}

// validate builds the user row. A doctor user's clinic is always its
// doctor's clinic; a different clinic_id is rejected.
func (r *AddUserRequest) validate(d *clinic.Dataset) (clinic.User, error) {
	v := r.fields()
	if _, taken := d.UserByUsername(r.Username); r.Username != "" && taken {
		v.Add(fmt.Sprintf("username %q is already taken", r.Username))
	}
	u := clinic.User{Name: r.Name, Username: r.Username, Password: r.Password, Role: r.Role}
	if r.Role == clinic.RoleDoctor && r.DoctorID > 0 {
		var requested *int64
		if r.ClinicID > 0 {
			requested = &r.ClinicID
		}
		if doc, ok := linkDoctor(v, d, r.DoctorID, requested); ok {
			u.DoctorID, u.DoctorName, u.ClinicID = doc.ID, doc.Name, doc.ClinicID
		}
	}
	return u, v.Err()
}

// linkDoctor resolves the doctor a doctor user belongs to and checks that
// requested, when set, names that doctor's clinic.
func linkDoctor(v *clinic.ValidationError, d *clinic.Dataset, doctorID int64, requested *int64) (clinic.Doctor, bool) {
	doc, ok := d.Doctor(doctorID)
	if !ok {
		v.Add(fmt.Sprintf("doctor %d does not exist", doctorID))
		return doc, false
	}
	if _, ok := d.Clinic(doc.ClinicID); !ok {
		v.Add(fmt.Sprintf("doctor %d is not assigned to an existing clinic", doc.ID))
		return doc, false
	}
	if requested != nil && *requested != doc.ClinicID {
		v.Add(fmt.Sprintf("clinic_id %d does not match doctor %d's clinic %d", *requested, doc.ID, doc.ClinicID))
		return doc, false
	}
	return doc, true
}

// UpdateUserRequest changes only the fields that are set.
type UpdateUserRequest struct {
	UserID          int64        `json:"user_id"`
	Name            *string      `json:"name,omitempty"`
	Username        *string      `json:"username,omitempty"`
	Password        *string      `json:"password,omitempty"`
	ConfirmPassword *string      `json:"confirm_password,omitempty"`
	Role            *clinic.Role `json:"role,omitempty"`
	DoctorID        *int64       `json:"doctor_id,omitempty"`
	ClinicID        *int64       `json:"clinic_id,omitempty"`
}

func (r *UpdateUserRequest) fields() *clinic.ValidationError {
	v := &clinic.ValidationError{}
	v.Check(r.UserID > 0, "user_id is required")
	changed := false
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		v.Check(name != "", "name must not be empty")
		r.Name, changed = &name, true
	}
	if r.Username != nil {
		username := strings.TrimSpace(*r.Username)
		v.Check(username != "", "username must not be empty")
		r.Username, changed = &username, true
	}
	if r.Password != nil {
		v.Check(*r.Password != "", "password must not be empty")
		v.Check(r.ConfirmPassword == nil || *r.ConfirmPassword == *r.Password, "passwords do not match")
		changed = true
	}
	if r.Role != nil {
		v.Check(r.Role.IsValid(), fmt.Sprintf("role %q is not recognized", *r.Role))
		changed = true
	}
	if r.DoctorID != nil {
		v.Check(*r.DoctorID > 0, "doctor_id must be positive")
		changed = true
	}
	if r.ClinicID != nil {
		v.Check(*r.ClinicID > 0, "clinic_id must be positive")
		changed = true
	}
	v.Check(changed, "no fields to update")
	return v
}

func (r *UpdateUserRequest) validate(d *clinic.Dataset) (sheets.UserUpdate, clinic.User, error) {
	v := r.fields()
	var upd sheets.UserUpdate
	current, ok := d.User(r.UserID)
	if !ok {
		if r.UserID > 0 {
			v.Add(fmt.Sprintf("user %d does not exist", r.UserID))
		}
		return upd, current, v.Err()
	}
	next := current
	if r.Name != nil {
		upd.Name, next.Name = r.Name, *r.Name
	}
	if r.Username != nil {
		if other, taken := d.UserByUsername(*r.Username); taken && other.ID != current.ID {
			v.Add(fmt.Sprintf("username %q is already taken", *r.Username))
		}
		upd.Username, next.Username = r.Username, *r.Username
	}
	if r.Password != nil {
		upd.Password, next.Password = r.Password, *r.Password
	}
	if r.Role != nil {
		upd.Role, next.Role = r.Role, *r.Role
	}
	if r.DoctorID != nil {
		next.DoctorID = *r.DoctorID
	}

	relinking := r.Role != nil || r.DoctorID != nil || r.ClinicID != nil
	switch {
	case next.Role == clinic.RoleDoctor && next.DoctorID <= 0:
		v.Add("doctor users must be linked to a doctor_id")
	case next.Role == clinic.RoleDoctor && relinking:
		if doc, ok := linkDoctor(v, d, next.DoctorID, r.ClinicID); ok {
			clinicID := doc.ClinicID
			upd.DoctorID, upd.DoctorName, upd.ClinicID = &doc.ID, &doc.Name, &clinicID
			next.DoctorID, next.DoctorName, next.ClinicID = doc.ID, doc.Name, clinicID
		}
	default:
		if r.DoctorID != nil {
			if doc, ok := d.Doctor(*r.DoctorID); !ok {
				v.Add(fmt.Sprintf("doctor %d does not exist", *r.DoctorID))
			} else {
				upd.DoctorID, upd.DoctorName = &doc.ID, &doc.Name
				next.DoctorName = doc.Name
			}
		}
		if r.ClinicID != nil {
			if _, ok := d.Clinic(*r.ClinicID); !ok {
				v.Add(fmt.Sprintf("clinic %d does not exist", *r.ClinicID))
			}
			upd.ClinicID, next.ClinicID = r.ClinicID, *r.ClinicID
		}
	}
	return upd, next, v.Err()
}

type AddDoctorRequest struct {
	Name      string              `json:"doctor_name"`
	Specialty string              `json:"specialty"`
	ClinicID  int64               `json:"clinic_id"`
	Phone     string              `json:"phone"`
	Email     string              `json:"email"`
	Shift     clinic.Shift        `json:"shift"`
	Status    clinic.DoctorStatus `json:"status"`
}

func (r *AddDoctorRequest) fields() *clinic.ValidationError {
	v := &clinic.ValidationError{}
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	v.Check(r.Name != "", "doctor_name is required")
	v.Check(r.ClinicID > 0, "clinic_id is required")
	v.Check(r.Shift == "" || r.Shift.IsValid(), fmt.Sprintf("shift %q is not recognized", r.Shift))
	if r.Status == "" {
		r.Status = clinic.DoctorActive
	}
	v.Check(r.Status.IsValid(), fmt.Sprintf("status %q is not recognized", r.Status))
	v.Check(r.Email == "" || strings.Contains(r.Email, "@"), "email is not valid")
	return v
}

func (r *AddDoctorRequest) validate(d *clinic.Dataset) error {
	v := r.fields()
	if _, ok := d.Clinic(r.ClinicID); r.ClinicID > 0 && !ok {
		v.Add(fmt.Sprintf("clinic %d does not exist", r.ClinicID))
	}
	return v.Err()
}

func (r AddDoctorRequest) doctor() clinic.Doctor {
	return clinic.Doctor{
		Name:      r.Name,
		Specialty: strings.TrimSpace(r.Specialty),
		ClinicID:  r.ClinicID,
		Phone:     strings.TrimSpace(r.Phone),
		Email:     r.Email,
		Shift:     r.Shift,
		Status:    r.Status,
	}
}

type UpdateVisitStatusRequest struct {
	VisitID int64              `json:"visit_id"`
	Status  clinic.VisitStatus `json:"status"`
}
