package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/reports"
	"github.com/wolfman30/clinicdesk/internal/sheets"
	"github.com/wolfman30/clinicdesk/internal/state"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// Cache is the shared snapshot read endpoints serve from.
type Cache interface {
	EnsureLoaded(ctx context.Context) error
	View() *clinic.Dataset
	Refresh(ctx context.Context) error
	Status() state.Status
	Patches() []state.Patch
}

// ReportsHandler serves dashboards, lists and reports from the cache.
// Nothing here writes to the remote store.
type ReportsHandler struct {
	cache  Cache
	loc    *time.Location
	now    func() time.Time
	logger *logging.Logger
}

func NewReportsHandler(cache Cache, loc *time.Location, logger *logging.Logger) *ReportsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReportsHandler{cache: cache, loc: loc, now: time.Now, logger: logger.Component("http.reports")}
}

func (h *ReportsHandler) today() string {
	return sheets.Today(h.now(), h.loc)
}

// data returns the cached dataset, loading it on first use.
func (h *ReportsHandler) data(w http.ResponseWriter, r *http.Request) (*clinic.Dataset, bool) {
	if err := h.cache.EnsureLoaded(r.Context()); err != nil && !h.cache.Status().Loaded {
		writeError(w, h.logger, err)
		return nil, false
	}
	return h.cache.View(), true
}

// Dashboard handles GET /api/dashboard with the summary for the caller's role.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	switch actor.User.Role {
	case clinic.RoleManager:
		writeJSON(w, http.StatusOK, reports.Manager(d, h.today()))
	case clinic.RoleDoctor:
		writeJSON(w, http.StatusOK, reports.Doctor(d, actor.User.ClinicID, h.today()))
	default:
		writeJSON(w, http.StatusOK, reports.Reception(d, h.today()))
	}
}

// Board handles GET /api/board, the open queue per clinic.
func (h *ReportsHandler) Board(w http.ResponseWriter, r *http.Request) {
	clinicID, err := queryInt(r, "clinic_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reports.Board(d, h.today(), reports.ScopeClinic(actorFrom(r).User, clinicID)))
}

// Patients handles GET /api/patients?q=.
func (h *ReportsHandler) Patients(w http.ResponseWriter, r *http.Request) {
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reports.SearchPatients(d, r.URL.Query().Get("q")))
}

// PatientHistory handles GET /api/patients/{patientID}/history.
func (h *ReportsHandler) PatientHistory(w http.ResponseWriter, r *http.Request) {
	patientID, err := pathInt(chi.URLParam(r, "patientID"), "patient id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	history, err := reports.History(d, patientID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// Visits handles GET /api/visits. Doctors only see their own clinic.
func (h *ReportsHandler) Visits(w http.ResponseWriter, r *http.Request) {
	v := &clinic.ValidationError{}
	clinicID, err := queryInt(r, "clinic_id")
	collect(v, err)
	patientID, err := queryInt(r, "patient_id")
	collect(v, err)
	rng, err := h.dateRange(r)
	collect(v, err)
	var status clinic.VisitStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, ok := clinic.ParseVisitStatus(raw)
		v.Check(ok, fmt.Sprintf("status %q is not recognized", raw))
		status = parsed
	}
	if err := v.Err(); err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reports.Visits(d, reports.VisitFilter{
		ClinicID:  reports.ScopeClinic(actorFrom(r).User, clinicID),
		PatientID: patientID,
		Status:    status,
		Range:     rng,
	}))
}

// Revenues handles GET /api/revenues.
func (h *ReportsHandler) Revenues(w http.ResponseWriter, r *http.Request) {
	v := &clinic.ValidationError{}
	clinicID, err := queryInt(r, "clinic_id")
	collect(v, err)
	rng, err := h.dateRange(r)
	collect(v, err)
	if err := v.Err(); err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reports.Revenues(d, reports.ScopeClinic(actorFrom(r).User, clinicID), rng))
}

// MedicalRecords handles GET /api/medical-records.
func (h *ReportsHandler) MedicalRecords(w http.ResponseWriter, r *http.Request) {
	v := &clinic.ValidationError{}
	clinicID, err := queryInt(r, "clinic_id")
	collect(v, err)
	rng, err := h.dateRange(r)
	collect(v, err)
	if err := v.Err(); err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reports.MedicalRecords(d, reports.MedicalFilter{
		PatientName: r.URL.Query().Get("patient_name"),
		ClinicID:    reports.ScopeClinic(actorFrom(r).User, clinicID),
		Range:       rng,
	}))
}

// MedicalReport handles GET /api/medical-records/{visitID}.
func (h *ReportsHandler) MedicalReport(w http.ResponseWriter, r *http.Request) {
	visitID, err := pathInt(chi.URLParam(r, "visitID"), "visit id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	rec, err := reports.MedicalReport(d, visitID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if scoped := reports.ScopeClinic(actorFrom(r).User, 0); scoped != 0 && rec.Visit.ClinicID != scoped {
		writeError(w, h.logger, clinic.ErrVisitNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Quote handles GET /api/quote?clinic_id=&visit_type=&discount=.
func (h *ReportsHandler) Quote(w http.ResponseWriter, r *http.Request) {
	v := &clinic.ValidationError{}
	clinicID, err := queryInt(r, "clinic_id")
	collect(v, err)
	rawType := r.URL.Query().Get("visit_type")
	visitType, ok := clinic.ParseVisitType(rawType)
	v.Check(ok, fmt.Sprintf("visit_type %q is not recognized", rawType))
	var discount float64
	if raw := strings.TrimSpace(r.URL.Query().Get("discount")); raw != "" {
		discount, err = strconv.ParseFloat(raw, 64)
		v.Check(err == nil, "discount must be a number")
	}
	if err := v.Err(); err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	quote, err := reports.Quote(d, clinicID, visitType, discount)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// Clinics handles GET /api/clinics.
func (h *ReportsHandler) Clinics(w http.ResponseWriter, r *http.Request) {
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.Clinics)
}

// Doctors handles GET /api/doctors.
func (h *ReportsHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.Doctors)
}

// Users handles GET /api/users. Passwords never leave the service.
func (h *ReportsHandler) Users(w http.ResponseWriter, r *http.Request) {
	d, ok := h.data(w, r)
	if !ok {
		return
	}
	out := make([]clinic.User, 0, len(d.Users))
	for _, u := range d.Users {
		out = append(out, u.Public())
	}
	writeJSON(w, http.StatusOK, out)
}

type syncStatus struct {
	state.Status
	Patches []state.Patch `json:"patches"`
}

// Sync handles POST /api/sync, a blocking full refresh.
func (h *ReportsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Refresh(r.Context()); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, syncStatus{Status: h.cache.Status(), Patches: h.cache.Patches()})
}

// SyncStatus handles GET /api/sync.
func (h *ReportsHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, syncStatus{Status: h.cache.Status(), Patches: h.cache.Patches()})
}

func (h *ReportsHandler) dateRange(r *http.Request) (reports.DateRange, error) {
	v := &clinic.ValidationError{}
	var rng reports.DateRange
	for _, bound := range []struct {
		name string
		dst  *string
	}{{"from", &rng.From}, {"to", &rng.To}} {
		raw := strings.TrimSpace(r.URL.Query().Get(bound.name))
		if raw == "" {
			continue
		}
		*bound.dst = sheets.NormalizeDate(raw, h.loc)
		v.Check(*bound.dst != "", fmt.Sprintf("%s %q is not a valid date", bound.name, raw))
	}
	return rng, v.Err()
}

// collect merges a helper's validation failures into v.
func collect(v *clinic.ValidationError, err error) {
	if verr, ok := err.(*clinic.ValidationError); ok {
		v.Fields = append(v.Fields, verr.Fields...)
	}
}
