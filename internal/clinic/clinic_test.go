package clinic

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveStatus(t *testing.T) {
	tests := []struct {
		name      string
		stored    VisitStatus
		diagnosis bool
		want      VisitStatus
	}{
		{"waiting without diagnosis", StatusWaiting, false, StatusWaiting},
		{"waiting with diagnosis", StatusWaiting, true, StatusCompleted},
		{"in progress with diagnosis", StatusInProgress, true, StatusCompleted},
		{"canceled with diagnosis", StatusCanceled, true, StatusCanceled},
		{"completed without diagnosis", StatusCompleted, false, StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveStatus(Visit{ID: 1, Status: tt.stored}, tt.diagnosis)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWireValues(t *testing.T) {
	assert.Equal(t, "في الانتظار", string(StatusWaiting))
	assert.Equal(t, "مكتمل", string(StatusCompleted))
	assert.Equal(t, "كشف جديد", string(VisitFirst))
	assert.Equal(t, "متابعة", string(VisitFollowUp))
}

func TestParseEnums(t *testing.T) {
	s, ok := ParseVisitStatus("In-Progress")
	require.True(t, ok)
	assert.Equal(t, StatusInProgress, s)

	s, ok = ParseVisitStatus(" ملغاة ")
	require.True(t, ok)
	assert.Equal(t, StatusCanceled, s)

	_, ok = ParseVisitStatus("archived")
	assert.False(t, ok)

	vt, ok := ParseVisitType("follow up")
	require.True(t, ok)
	assert.Equal(t, VisitFollowUp, vt)

	r, ok := ParseRole("  Doctor ")
	require.True(t, ok)
	assert.Equal(t, RoleDoctor, r)

	g, ok := ParseGender("female")
	require.True(t, ok)
	assert.Equal(t, GenderFemale, g)

	sh, ok := ParseShift("مسائي")
	require.True(t, ok)
	assert.Equal(t, ShiftEvening, sh)

	ds, ok := ParseDoctorStatus("غير نشط")
	require.True(t, ok)
	assert.Equal(t, DoctorInactive, ds)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCanceled.IsTerminal())
	assert.False(t, StatusWaiting.IsTerminal())
	assert.True(t, StatusInProgress.IsOpen())
	assert.Equal(t, "in_progress", StatusInProgress.Label())
	assert.False(t, VisitStatus("x").IsValid())
}

func TestDatasetLookups(t *testing.T) {
	d := &Dataset{
		Patients:  []Patient{{ID: 1, Name: "Ali"}},
		Visits:    []Visit{{ID: 10, ClinicID: 2, VisitDate: "2024-05-01", Status: StatusWaiting}, {ID: 11, ClinicID: 2, VisitDate: "2024-05-02"}},
		Diagnoses: []Diagnosis{{ID: 5, VisitID: 10, LabsNeeded: []string{"CBC"}}},
		Users:     []User{{ID: 3, Username: "sara", Password: "pw"}},
	}

	_, ok := d.Patient(1)
	assert.True(t, ok)
	_, ok = d.Patient(2)
	assert.False(t, ok)

	assert.Equal(t, StatusCompleted, d.EffectiveStatus(d.Visits[0]))
	assert.Len(t, d.VisitsOn(2, "2024-05-01"), 1)
	assert.True(t, d.DiagnosedVisits()[10])

	u, ok := d.UserByUsername(" sara ")
	require.True(t, ok)
	assert.Empty(t, u.Public().Password)
	assert.Equal(t, "pw", u.Password)

	clone := d.Clone()
	clone.Diagnoses[0].LabsNeeded[0] = "changed"
	clone.Visits[0].Status = StatusCanceled
	assert.Equal(t, "CBC", d.Diagnoses[0].LabsNeeded[0])
	assert.Equal(t, StatusWaiting, d.Visits[0].Status)
}

func TestClinicPrice(t *testing.T) {
	c := Clinic{PriceFirstVisit: 200, PriceFollowUp: 100}
	assert.Equal(t, 200.0, c.Price(VisitFirst))
	assert.Equal(t, 100.0, c.Price(VisitFollowUp))
}

func TestValidationError(t *testing.T) {
	v := &ValidationError{}
	assert.NoError(t, v.Err())

	v.Check(false, "name is required")
	v.Check(true, "never added")
	err := fmt.Errorf("wrap: %w", v.Err())

	assert.True(t, IsValidation(err))
	assert.Equal(t, "wrap: validation failed: name is required", err.Error())
	assert.False(t, IsValidation(errors.New("other")))
}

func TestEnumsDecodeAliasesFromJSON(t *testing.T) {
	var req struct {
		Type   VisitType   `json:"type"`
		Status VisitStatus `json:"status"`
		Gender Gender      `json:"gender"`
		Role   Role        `json:"role"`
	}
	err := json.Unmarshal([]byte(`{"type":"follow_up","status":"قيد المعالجة","gender":"other","role":"MANAGER"}`), &req)
	require.NoError(t, err)
	assert.Equal(t, VisitFollowUp, req.Type)
	assert.Equal(t, StatusInProgress, req.Status)
	assert.Equal(t, Gender("other"), req.Gender)
	assert.False(t, req.Gender.IsValid())
	assert.Equal(t, RoleManager, req.Role)

	out, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"type":"متابعة"`)
}

func TestAmountAfterDiscount(t *testing.T) {
	assert.Equal(t, 150.0, AmountAfterDiscount(200, 50))
	assert.Equal(t, 0.0, AmountAfterDiscount(100, 150))
	assert.Equal(t, 100.0, AmountAfterDiscount(100, 0))
}
