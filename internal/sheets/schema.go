package sheets

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Sheet names as exposed by the remote store.
const (
	SheetPatients  = "Patients"
	SheetVisits    = "Visits"
	SheetDiagnosis = "Diagnosis"
	SheetRevenues  = "Revenues"
	SheetUsers     = "Users"
	SheetDoctors   = "Doctors"
	SheetClinics   = "Clinics"
)

// Kind controls how a cell is coerced on read.
type Kind int

const (
	// KindID is the row's primary key; it must be a positive integer.
	KindID Kind = iota
	// KindRef is a foreign key; empty reads as 0.
	KindRef
	KindInt
	KindNumber
	KindText
	KindDate
	// KindList is a comma-joined list of non-empty entries.
	KindList
)

type Column struct {
	Name string
	Kind Kind
}

// Schema fixes the column order of one sheet. Reordering the sheet is a
// breaking change.
type Schema struct {
	Sheet   string
	Columns []Column
}

var (
	PatientsSchema = Schema{Sheet: SheetPatients, Columns: []Column{
		{"patient_id", KindID}, {"name", KindText}, {"dob", KindDate},
		{"gender", KindText}, {"phone", KindText}, {"address", KindText},
	}}
	VisitsSchema = Schema{Sheet: SheetVisits, Columns: []Column{
		{"visit_id", KindID}, {"patient_id", KindRef}, {"clinic_id", KindRef},
		{"visit_date", KindDate}, {"queue_number", KindInt}, {"status", KindText},
		{"visit_type", KindText},
	}}
	DiagnosisSchema = Schema{Sheet: SheetDiagnosis, Columns: []Column{
		{"diagnosis_id", KindID}, {"visit_id", KindRef}, {"doctor", KindText},
		{"diagnosis", KindText}, {"prescription", KindText}, {"labs_needed", KindList},
		{"notes", KindText},
	}}
	RevenuesSchema = Schema{Sheet: SheetRevenues, Columns: []Column{
		{"revenue_id", KindID}, {"visit_id", KindRef}, {"patient_id", KindRef},
		{"patient_name", KindText}, {"clinic_id", KindRef}, {"amount", KindNumber},
		{"date", KindDate}, {"type", KindText}, {"notes", KindText},
	}}
	UsersSchema = Schema{Sheet: SheetUsers, Columns: []Column{
		{"user_id", KindID}, {"name", KindText}, {"username", KindText},
		{"password", KindText}, {"role", KindText}, {"clinic_id", KindRef},
		{"doctor_id", KindRef}, {"doctor_name", KindText},
	}}
	DoctorsSchema = Schema{Sheet: SheetDoctors, Columns: []Column{
		{"doctor_id", KindID}, {"doctor_name", KindText}, {"specialty", KindText},
		{"clinic_id", KindRef}, {"phone", KindText}, {"email", KindText},
		{"shift", KindText}, {"status", KindText},
	}}
	ClinicsSchema = Schema{Sheet: SheetClinics, Columns: []Column{
		{"clinic_id", KindID}, {"clinic_name", KindText}, {"doctor_id", KindRef},
		{"doctor_name", KindText}, {"max_patients_per_day", KindInt},
		{"price_first_visit", KindNumber}, {"price_followup", KindNumber},
		{"shift", KindText}, {"notes", KindText},
	}}
)

// Schemas lists every sheet schema in fetch order.
func Schemas() []Schema {
	return []Schema{PatientsSchema, VisitsSchema, DiagnosisSchema, RevenuesSchema, UsersSchema, DoctorsSchema, ClinicsSchema}
}

// Record is a decoded row keyed by column name. Values are int64, float64,
// string, or []string depending on the column kind.
type Record map[string]any

func (r Record) Int(name string) int64 {
	v, _ := r[name].(int64)
	return v
}

func (r Record) Float(name string) float64 {
	v, _ := r[name].(float64)
	return v
}

func (r Record) String(name string) string {
	v, _ := r[name].(string)
	return v
}

func (r Record) List(name string) []string {
	v, _ := r[name].([]string)
	return v
}

var errNotARow = errors.New("row is neither an array nor an object")

// DecodeRow maps a positional array or keyed object onto the schema.
// Missing cells decode to zero values; cells that cannot be coerced fail the row.
func (s Schema) DecodeRow(raw json.RawMessage, loc *time.Location) (Record, error) {
	cells, err := s.cells(raw)
	if err != nil {
		return nil, err
	}
	rec := make(Record, len(s.Columns))
	for _, col := range s.Columns {
		v, err := coerce(col, cells[col.Name], loc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", col.Name, err)
		}
		rec[col.Name] = v
	}
	return rec, nil
}

// cells maps a row onto the schema's column names without coercing values.
func (s Schema) cells(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}

	cells := make(map[string]any, len(s.Columns))
	switch row := generic.(type) {
	case []any:
		for i, col := range s.Columns {
			if i < len(row) {
				cells[col.Name] = row[i]
			}
		}
	case map[string]any:
		folded := make(map[string]any, len(row))
		for k, v := range row {
			folded[strings.ToLower(strings.TrimSpace(k))] = v
		}
		for _, col := range s.Columns {
			if v, ok := row[col.Name]; ok {
				cells[col.Name] = v
			} else if v, ok := folded[col.Name]; ok {
				cells[col.Name] = v
			}
		}
	default:
		return nil, errNotARow
	}
	return cells, nil
}

// partial coerces only the named columns, for rows that failed DecodeRow.
func (s Schema) partial(raw json.RawMessage, loc *time.Location, names ...string) (Record, bool) {
	cells, err := s.cells(raw)
	if err != nil {
		return nil, false
	}
	rec := make(Record, len(names))
	for _, col := range s.Columns {
		for _, name := range names {
			if col.Name != name {
				continue
			}
			v, err := coerce(col, cells[col.Name], loc)
			if err != nil {
				return nil, false
			}
			rec[col.Name] = v
		}
	}
	return rec, len(rec) == len(names)
}

func coerce(col Column, cell any, loc *time.Location) (any, error) {
	switch col.Kind {
	case KindID:
		n, err := toInt(cell)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("id must be positive, got %d", n)
		}
		return n, nil
	case KindRef:
		n, err := toInt(cell)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("reference must not be negative, got %d", n)
		}
		return n, nil
	case KindInt:
		return toInt(cell)
	case KindNumber:
		return toFloat(cell)
	case KindDate:
		return NormalizeDate(cell, loc), nil
	case KindList:
		return toList(cell), nil
	default:
		return toText(cell), nil
	}
}

func toFloat(cell any) (float64, error) {
	switch v := cell.(type) {
	case nil:
		return 0, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v.String())
		}
		return f, nil
	case float64:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number: %v", cell)
}

func toInt(cell any) (int64, error) {
	f, err := toFloat(cell)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return int64(f), nil
}

func toText(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(cell)
}

func toList(cell any) []string {
	var parts []string
	switch v := cell.(type) {
	case []any:
		for _, item := range v {
			parts = append(parts, toText(item))
		}
	default:
		parts = strings.Split(toText(cell), ",")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinList renders a list cell the way the remote store stores it.
func JoinList(items []string) string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return strings.Join(out, ",")
}
