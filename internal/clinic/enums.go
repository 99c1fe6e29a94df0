package clinic

import "strings"

// VisitStatus is stored on the Visits sheet using the clinic's Arabic labels.
//
// State transitions:
//
//	waiting → in_progress → completed
//	waiting → completed (diagnosis recorded directly)
//	waiting | in_progress → canceled
type VisitStatus string

const (
	StatusWaiting    VisitStatus = "في الانتظار"
	StatusInProgress VisitStatus = "قيد المعالجة"
	StatusCompleted  VisitStatus = "مكتمل"
	StatusCanceled   VisitStatus = "ملغاة"
)

func (s VisitStatus) IsValid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s VisitStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// IsOpen reports whether the visit is still in the queue.
func (s VisitStatus) IsOpen() bool {
	return s == StatusWaiting || s == StatusInProgress
}

func (s VisitStatus) Label() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCanceled:
		return "canceled"
	}
	return string(s)
}

var visitStatuses = aliases(map[string]VisitStatus{
	"waiting":     StatusWaiting,
	"in_progress": StatusInProgress,
	"completed":   StatusCompleted,
	"done":        StatusCompleted,
	"canceled":    StatusCanceled,
	"cancelled":   StatusCanceled,
}, StatusWaiting, StatusInProgress, StatusCompleted, StatusCanceled)

// ParseVisitStatus accepts either the stored label or its English name.
func ParseVisitStatus(raw string) (VisitStatus, bool) {
	return lookup(visitStatuses, raw)
}

// VisitType distinguishes first visits from follow-ups; it drives pricing.
type VisitType string

const (
	VisitFirst    VisitType = "كشف جديد"
	VisitFollowUp VisitType = "متابعة"
)

func (t VisitType) IsValid() bool {
	return t == VisitFirst || t == VisitFollowUp
}

func (t VisitType) Label() string {
	switch t {
	case VisitFirst:
		return "first_visit"
	case VisitFollowUp:
		return "follow_up"
	}
	return string(t)
}

var visitTypes = aliases(map[string]VisitType{
	"first_visit": VisitFirst,
	"first":       VisitFirst,
	"new":         VisitFirst,
	"follow_up":   VisitFollowUp,
	"followup":    VisitFollowUp,
}, VisitFirst, VisitFollowUp)

func ParseVisitType(raw string) (VisitType, bool) {
	return lookup(visitTypes, raw)
}

type Role string

const (
	RoleReceptionist Role = "receptionist"
	RoleDoctor       Role = "doctor"
	RoleManager      Role = "manager"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleReceptionist, RoleDoctor, RoleManager:
		return true
	}
	return false
}

var roles = aliases(map[string]Role{
	"reception": RoleReceptionist,
	"admin":     RoleManager,
}, RoleReceptionist, RoleDoctor, RoleManager)

// ParseRole trims and lower-cases before matching.
func ParseRole(raw string) (Role, bool) {
	return lookup(roles, raw)
}

type Gender string

const (
	GenderMale   Gender = "ذكر"
	GenderFemale Gender = "أنثى"
)

func (g Gender) IsValid() bool {
	return g == GenderMale || g == GenderFemale
}

var genders = aliases(map[string]Gender{
	"male":   GenderMale,
	"m":      GenderMale,
	"female": GenderFemale,
	"f":      GenderFemale,
}, GenderMale, GenderFemale)

func ParseGender(raw string) (Gender, bool) {
	return lookup(genders, raw)
}

type Shift string

const (
	ShiftMorning Shift = "صباحي"
	ShiftEvening Shift = "مسائي"
)

func (s Shift) IsValid() bool {
	return s == ShiftMorning || s == ShiftEvening
}

var shifts = aliases(map[string]Shift{
	"morning": ShiftMorning,
	"evening": ShiftEvening,
}, ShiftMorning, ShiftEvening)

func ParseShift(raw string) (Shift, bool) {
	return lookup(shifts, raw)
}

type DoctorStatus string

const (
	DoctorActive   DoctorStatus = "نشط"
	DoctorInactive DoctorStatus = "غير نشط"
)

func (s DoctorStatus) IsValid() bool {
	return s == DoctorActive || s == DoctorInactive
}

var doctorStatuses = aliases(map[string]DoctorStatus{
	"active":   DoctorActive,
	"inactive": DoctorInactive,
}, DoctorActive, DoctorInactive)

func ParseDoctorStatus(raw string) (DoctorStatus, bool) {
	return lookup(doctorStatuses, raw)
}

func normalizeKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	return strings.Join(strings.Fields(key), "_")
}

func aliases[T ~string](english map[string]T, wire ...T) map[string]T {
	out := make(map[string]T, len(english)+len(wire))
	for k, v := range english {
		out[normalizeKey(k)] = v
	}
	for _, v := range wire {
		out[normalizeKey(string(v))] = v
	}
	return out
}

func lookup[T ~string](table map[string]T, raw string) (T, bool) {
	v, ok := table[normalizeKey(raw)]
	return v, ok
}

// UnmarshalText accepts wire labels and English aliases. Unknown labels are
// kept verbatim so validation can report them.
func (s *VisitStatus) UnmarshalText(b []byte) error {
	*s = parseOrRaw(string(b), ParseVisitStatus)
	return nil
}

func (t *VisitType) UnmarshalText(b []byte) error {
	*t = parseOrRaw(string(b), ParseVisitType)
	return nil
}

func (r *Role) UnmarshalText(b []byte) error {
	*r = parseOrRaw(string(b), ParseRole)
	return nil
}

func (g *Gender) UnmarshalText(b []byte) error {
	*g = parseOrRaw(string(b), ParseGender)
	return nil
}

func (s *Shift) UnmarshalText(b []byte) error {
	*s = parseOrRaw(string(b), ParseShift)
	return nil
}

func (s *DoctorStatus) UnmarshalText(b []byte) error {
	*s = parseOrRaw(string(b), ParseDoctorStatus)
	return nil
}

func parseOrRaw[T ~string](raw string, parse func(string) (T, bool)) T {
	if v, ok := parse(raw); ok {
		return v
	}
	return T(strings.TrimSpace(raw))
}
