package assistant

import (
	"github.com/google/generative-ai-go/genai"

	"github.com/wolfman30/clinicdesk/internal/clinic"
)

func str(desc string) *genai.Schema { return &genai.Schema{Type: genai.TypeString, Description: desc} }
func integer(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Description: desc}
}
func number(desc string) *genai.Schema { return &genai.Schema{Type: genai.TypeNumber, Description: desc} }

func enum(desc string, values ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Format: "enum", Enum: values, Description: desc}
}

func object(required []string, props map[string]*genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

var visitTypes = []string{string(clinic.VisitFirst), string(clinic.VisitFollowUp)}

// Declarations describes every command as a model function. Property names
// match the JSON accepted by Decode.
func Declarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        "add_patient",
			Description: "Register a new patient.",
			Parameters: object([]string{"name"}, map[string]*genai.Schema{
				"name":    str("Full name"),
				"dob":     str("Date of birth, YYYY-MM-DD"),
				"gender":  enum("Gender", string(clinic.GenderMale), string(clinic.GenderFemale)),
				"phone":   str("Phone number"),
				"address": str("Address"),
			}),
		},
		{
			Name:        "add_visit",
			Description: "Queue an existing patient at a clinic for today. The queue number is assigned automatically.",
			Parameters: object([]string{"patient_id", "clinic_id", "visit_type"}, map[string]*genai.Schema{
				"patient_id": integer("Patient id"),
				"clinic_id":  integer("Clinic id"),
				"visit_type": enum("Visit type", visitTypes...),
			}),
		},
		{
			Name:        "add_diagnosis",
			Description: "Record the diagnosis for a visit. This completes the visit.",
			Parameters: object([]string{"visit_id", "diagnosis"}, map[string]*genai.Schema{
				"visit_id":     integer("Visit id"),
				"doctor":       str("Doctor name; defaults to the logged-in doctor"),
				"diagnosis":    str("Diagnosis"),
				"prescription": str("Prescription"),
				"labs_needed":  {Type: genai.TypeArray, Items: str("Lab test"), Description: "Requested lab tests"},
				"notes":        str("Notes"),
			}),
		},
		{
			Name:        "add_manual_revenue",
			Description: "Record a payment taken at the desk. discount is subtracted from amount.",
			Parameters: object([]string{"patient_name", "clinic_id", "amount", "date", "type"}, map[string]*genai.Schema{
				"visit_id":     integer("Linked visit id, 0 if none"),
				"patient_id":   integer("Patient id, 0 if unknown"),
				"patient_name": str("Patient name"),
				"clinic_id":    integer("Clinic id"),
				"amount":       number("Amount before discount"),
				"discount":     number("Discount"),
				"date":         str("Date, YYYY-MM-DD"),
				"type":         enum("Visit type", visitTypes...),
				"notes":        str("Notes"),
			}),
		},
		{
			Name:        "add_doctor",
			Description: "Add a doctor to a clinic.",
			Parameters: object([]string{"doctor_name", "clinic_id"}, map[string]*genai.Schema{
				"doctor_name": str("Doctor name"),
				"specialty":   str("Specialty"),
				"clinic_id":   integer("Clinic id"),
				"phone":       str("Phone"),
				"email":       str("Email"),
				"shift":       enum("Shift", string(clinic.ShiftMorning), string(clinic.ShiftEvening)),
				"status":      enum("Status", string(clinic.DoctorActive), string(clinic.DoctorInactive)),
			}),
		},
		{
			Name:        "add_user",
			Description: "Create a staff login. Doctor users must reference a doctor_id.",
			Parameters: object([]string{"name", "username", "password", "role"}, map[string]*genai.Schema{
				"name":      str("Display name"),
				"username":  str("Login name"),
				"password":  str("Password"),
				"role":      enum("Role", string(clinic.RoleReceptionist), string(clinic.RoleDoctor), string(clinic.RoleManager)),
				"doctor_id": integer("Doctor id for doctor users"),
				"clinic_id": integer("Clinic id override for doctor users"),
			}),
		},
		{
			Name:        "update_visit_status",
			Description: "Change a visit's status on screen until the next refresh.",
			Parameters: object([]string{"visit_id", "status"}, map[string]*genai.Schema{
				"visit_id": integer("Visit id"),
				"status": enum("New status",
					string(clinic.StatusWaiting), string(clinic.StatusInProgress),
					string(clinic.StatusCompleted), string(clinic.StatusCanceled)),
			}),
		},
		{
			Name:        "find_patients",
			Description: "Search patients by name or phone.",
			Parameters: object([]string{"query"}, map[string]*genai.Schema{
				"query": str("Name or phone fragment"),
			}),
		},
		{
			Name:        "todays_queue",
			Description: "List today's waiting and in-progress visits per clinic.",
			Parameters: object(nil, map[string]*genai.Schema{
				"clinic_id": integer("Clinic id, 0 for all"),
			}),
		},
	}
}
