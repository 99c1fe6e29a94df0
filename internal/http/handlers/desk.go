package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinicdesk/internal/frontdesk"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

// DeskHandler exposes front desk mutations. Role checks happen in the
// service so the same rules cover the assistant.
type DeskHandler struct {
	desk   *frontdesk.Service
	logger *logging.Logger
}

func NewDeskHandler(desk *frontdesk.Service, logger *logging.Logger) *DeskHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DeskHandler{desk: desk, logger: logger.Component("http.desk")}
}

// AddPatient handles POST /api/patients.
func (h *DeskHandler) AddPatient(w http.ResponseWriter, r *http.Request) {
	var req frontdesk.AddPatientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.desk.AddPatient(r.Context(), actorFrom(r), req)
	writeMutation(w, h.logger, res, err)
}

// AddVisit handles POST /api/visits. The reply carries the allocated queue
// number and the suggested price for the visit type.
func (h *DeskHandler) AddVisit(w http.ResponseWriter, r *http.Request) {
	var req frontdesk.AddVisitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.desk.AddVisit(r.Context(), actorFrom(r), req)
	writeMutation(w, h.logger, res, err)
}

// UpdateVisitStatus handles POST /api/visits/{visitID}/status.
func (h *DeskHandler) UpdateVisitStatus(w http.ResponseWriter, r *http.Request) {
	visitID, err := pathInt(chi.URLParam(r, "visitID"), "visit id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req frontdesk.UpdateVisitStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.VisitID = visitID
	patch, err := h.desk.UpdateVisitStatus(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, patch)
}

// BeginDiagnosis handles POST /api/visits/{visitID}/begin.
func (h *DeskHandler) BeginDiagnosis(w http.ResponseWriter, r *http.Request) {
	visitID, err := pathInt(chi.URLParam(r, "visitID"), "visit id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	patch, err := h.desk.BeginDiagnosis(r.Context(), actorFrom(r), visitID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, patch)
}

// AddDiagnosis handles POST /api/diagnoses.
func (h *DeskHandler) AddDiagnosis(w http.ResponseWriter, r *http.Request) {
	var req frontdesk.AddDiagnosisRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.desk.AddDiagnosis(r.Context(), actorFrom(r), req)
	writeMutation(w, h.logger, res, err)
}

// AddManualRevenue handles POST /api/revenues.
func (h *DeskHandler) AddManualRevenue(w http.ResponseWriter, r *http.Request) {
	var req frontdesk.AddManualRevenueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.desk.AddManualRevenue(r.Context(), actorFrom(r), req)
	writeMutation(w, h.logger, res, err)
}

// AddUser handles POST /api/users.
func (h *DeskHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	var req frontdesk.AddUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.desk.AddUser(r.Context(), actorFrom(r), req)
	writeMutation(w, h.logger, res, err)
}

// UpdateUser handles PATCH /api/users/{userID}.
func (h *DeskHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathInt(chi.URLParam(r, "userID"), "user id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req frontdesk.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.UserID = userID
	res, err := h.desk.UpdateUser(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AddDoctor handles POST /api/doctors.
func (h *DeskHandler) AddDoctor(w http.ResponseWriter, r *http.Request) {
	var req frontdesk.AddDoctorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.desk.AddDoctor(r.Context(), actorFrom(r), req)
	writeMutation(w, h.logger, res, err)
}
