package sheets

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinicdesk/internal/clinic"
)

func TestDecodeHeterogeneousRows(t *testing.T) {
	raw := RawData{
		SheetVisits: {
			json.RawMessage(`{"visit_id":"7","patient_id":3,"clinic_id":"2","visit_date":"2024-05-01","queue_number":1,"status":"في الانتظار","visit_type":"متابعة"}`),
			json.RawMessage(`[8,3,2,"2024-05-01",2,"مكتمل","كشف جديد"]`),
			json.RawMessage(`[9,4]`),
		},
		SheetPatients: {
			json.RawMessage(`{"patient_id":3,"name":" Mona ","phone":1001234567,"gender":"أنثى"}`),
		},
		SheetDiagnosis: {
			json.RawMessage(`{"diagnosis_id":1,"visit_id":8,"labs_needed":"CBC, ,X-Ray,"}`),
		},
		SheetUsers: {
			json.RawMessage(`{"user_id":1,"username":"dr","password":"x","role":" Doctor "}`),
		},
	}

	data, rowErrs := Decode(raw, time.UTC)
	require.Empty(t, rowErrs)
	require.Len(t, data.Visits, 3)

	assert.Equal(t, clinic.Visit{ID: 7, PatientID: 3, ClinicID: 2, VisitDate: "2024-05-01", QueueNumber: 1, Status: clinic.StatusWaiting, VisitType: clinic.VisitFollowUp}, data.Visits[0])
	assert.Equal(t, clinic.StatusCompleted, data.Visits[1].Status)
	assert.Equal(t, int64(4), data.Visits[2].PatientID)
	assert.Empty(t, data.Visits[2].VisitDate)

	assert.Equal(t, "Mona", data.Patients[0].Name)
	assert.Equal(t, "1001234567", data.Patients[0].Phone)
	assert.Equal(t, clinic.GenderFemale, data.Patients[0].Gender)
	assert.Equal(t, []string{"CBC", "X-Ray"}, data.Diagnoses[0].LabsNeeded)
	assert.Equal(t, clinic.RoleDoctor, data.Users[0].Role)
}

func TestDecodeQuarantinesBadRows(t *testing.T) {
	raw := RawData{
		SheetVisits: {
			json.RawMessage(`{"visit_id":"abc","patient_id":1}`),
			json.RawMessage(`{"visit_id":0}`),
			json.RawMessage(`{"visit_id":5,"queue_number":1.5}`),
			json.RawMessage(`"just a string"`),
			json.RawMessage(`{"visit_id":6,"queue_number":2}`),
		},
		SheetRevenues: {
			json.RawMessage(`{"revenue_id":1,"amount":"lots"}`),
		},
	}

	data, rowErrs := Decode(raw, time.UTC)
	require.Len(t, data.Visits, 1)
	assert.Equal(t, int64(6), data.Visits[0].ID)
	assert.Empty(t, data.Revenues)
	require.Len(t, rowErrs, 5)
	assert.Equal(t, SheetVisits, rowErrs[0].Sheet)
	assert.Equal(t, 0, rowErrs[0].Index)
	assert.Contains(t, rowErrs[0].Error(), "visit_id")
	assert.Equal(t, SheetRevenues, rowErrs[4].Sheet)
}

func TestDecodeKeepsQueueSlotOfQuarantinedVisits(t *testing.T) {
	raw := RawData{
		SheetVisits: {
			json.RawMessage(`{"visit_id":1,"clinic_id":2,"visit_date":"2024-05-01","queue_number":"1.0x"}`),
			json.RawMessage(`[2,7,"2",1714550400000,"x"]`),
			json.RawMessage(`{"visit_id":3,"clinic_id":"two","visit_date":"2024-05-01","queue_number":"x"}`),
			json.RawMessage(`{"visit_id":4,"clinic_id":2,"queue_number":"x"}`),
		},
	}

	data, rowErrs := Decode(raw, time.UTC)
	assert.Empty(t, data.Visits)
	require.Len(t, rowErrs, 4)
	assert.Equal(t, &QueueSlot{ClinicID: 2, Date: "2024-05-01"}, rowErrs[0].Slot)
	assert.Equal(t, &QueueSlot{ClinicID: 2, Date: "2024-05-01"}, rowErrs[1].Slot)
	assert.Nil(t, rowErrs[2].Slot)
	assert.Nil(t, rowErrs[3].Slot)
}

func TestDecodeKeepsUnknownEnumLabels(t *testing.T) {
	v, err := DecodeVisit(json.RawMessage(`{"visit_id":1,"status":"مؤجل"}`), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, clinic.VisitStatus("مؤجل"), v.Status)
	assert.False(t, v.Status.IsValid())
}

func TestDecodeClinicPrices(t *testing.T) {
	raw := RawData{SheetClinics: {json.RawMessage(`[1,"Dental",4,"Dr. Hany","20","150.5",""]`)}}
	data, rowErrs := Decode(raw, time.UTC)
	require.Empty(t, rowErrs)
	c := data.Clinics[0]
	assert.Equal(t, 20, c.MaxPatientsPerDay)
	assert.Equal(t, 150.5, c.PriceFirstVisit)
	assert.Equal(t, 0.0, c.PriceFollowUp)
}

func TestPayloadKeepsColumnOrder(t *testing.T) {
	p := VisitPayload(clinic.Visit{PatientID: 3, ClinicID: 2, VisitDate: "2024-05-01", QueueNumber: 4, Status: clinic.StatusWaiting, VisitType: clinic.VisitFirst})
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"patient_id":3,"clinic_id":2,"visit_date":"2024-05-01","queue_number":4,"status":"في الانتظار","visit_type":"كشف جديد"}`, string(b))
}

func TestDiagnosisPayloadJoinsLabs(t *testing.T) {
	p := DiagnosisPayload(clinic.Diagnosis{VisitID: 9, LabsNeeded: []string{"CBC", " ", "ECG"}})
	v, ok := p.Get("labs_needed")
	require.True(t, ok)
	assert.Equal(t, "CBC,ECG", v)
}

func TestUserUpdatePayloadOnlyChangedFields(t *testing.T) {
	pw := "new-secret"
	p := UserUpdatePayload(4, UserUpdate{Password: &pw})
	assert.Equal(t, []string{"action", "user_id", "password"}, p.Keys())
}

func TestUserPayloadDoctorFields(t *testing.T) {
	p := UserPayload(clinic.User{Name: "Hany", Username: "hany", Password: "pw", Role: clinic.RoleDoctor, ClinicID: 2, DoctorID: 4, DoctorName: "Dr. Hany"})
	_, ok := p.Get("doctor_id")
	assert.True(t, ok)

	p = UserPayload(clinic.User{Name: "Sara", Username: "sara", Password: "pw", Role: clinic.RoleReceptionist})
	_, ok = p.Get("clinic_id")
	assert.False(t, ok)
}
