package clinic

// Patient is a registry entry. Patients are never deleted.
type Patient struct {
	ID      int64  `json:"patient_id"`
	Name    string `json:"name"`
	DOB     string `json:"dob"`
	Gender  Gender `json:"gender"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Visit is one patient's place in a clinic's queue for a single day.
type Visit struct {
	ID          int64       `json:"visit_id"`
	PatientID   int64       `json:"patient_id"`
	ClinicID    int64       `json:"clinic_id"`
	VisitDate   string      `json:"visit_date"`
	QueueNumber int         `json:"queue_number"`
	Status      VisitStatus `json:"status"`
	VisitType   VisitType   `json:"visit_type"`
}

// Diagnosis is written once per visit and never edited.
type Diagnosis struct {
	ID           int64    `json:"diagnosis_id"`
	VisitID      int64    `json:"visit_id"`
	Doctor       string   `json:"doctor"`
	Diagnosis    string   `json:"diagnosis"`
	Prescription string   `json:"prescription"`
	LabsNeeded   []string `json:"labs_needed"`
	Notes        string   `json:"notes"`
}

// Revenue records money taken. VisitID 0 marks a manual entry.
type Revenue struct {
	ID          int64     `json:"revenue_id"`
	VisitID     int64     `json:"visit_id"`
	PatientID   int64     `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	ClinicID    int64     `json:"clinic_id"`
	Amount      float64   `json:"amount"`
	Date        string    `json:"date"`
	Type        VisitType `json:"type"`
	Notes       string    `json:"notes"`
}

type Clinic struct {
	ID                int64   `json:"clinic_id"`
	Name              string  `json:"clinic_name"`
	DoctorID          int64   `json:"doctor_id"`
	DoctorName        string  `json:"doctor_name"`
	MaxPatientsPerDay int     `json:"max_patients_per_day"`
	PriceFirstVisit   float64 `json:"price_first_visit"`
	PriceFollowUp     float64 `json:"price_followup"`
	Shift             Shift   `json:"shift"`
	Notes             string  `json:"notes"`
}

// Price returns the clinic's base price for a visit type.
func (c Clinic) Price(t VisitType) float64 {
	if t == VisitFollowUp {
		return c.PriceFollowUp
	}
	return c.PriceFirstVisit
}

// AmountAfterDiscount never goes below zero.
func AmountAfterDiscount(base, discount float64) float64 {
	if amount := base - discount; amount > 0 {
		return amount
	}
	return 0
}

type Doctor struct {
	ID        int64        `json:"doctor_id"`
	Name      string       `json:"doctor_name"`
	Specialty string       `json:"specialty"`
	ClinicID  int64        `json:"clinic_id"`
	Phone     string       `json:"phone"`
	Email     string       `json:"email"`
	Shift     Shift        `json:"shift"`
	Status    DoctorStatus `json:"status"`
}

// User is a staff login. Password is compared verbatim and never serialized.
type User struct {
	ID         int64  `json:"user_id"`
	Name       string `json:"name"`
	Username   string `json:"username"`
	Password   string `json:"-"`
	Role       Role   `json:"role"`
	ClinicID   int64  `json:"clinic_id,omitempty"`
	DoctorID   int64  `json:"doctor_id,omitempty"`
	DoctorName string `json:"doctor_name,omitempty"`
}

// Public returns a copy safe to hand to a session.
func (u User) Public() User {
	u.Password = ""
	return u
}
