package frontdesk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/observability/metrics"
	"github.com/wolfman30/clinicdesk/internal/sheets"
	"github.com/wolfman30/clinicdesk/internal/state"
	"github.com/wolfman30/clinicdesk/internal/visits"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

const defaultMutationTimeout = 45 * time.Second

// Cache is the local snapshot the service validates against.
type Cache interface {
	View() *clinic.Dataset
	Refresh(ctx context.Context) error
	EnsureLoaded(ctx context.Context) error
}

type Config struct {
	Gateway         visits.Gateway
	Cache           Cache
	Coordinator     *visits.Coordinator
	MutationTimeout time.Duration
	Recorders       []Recorder
	Logger          *logging.Logger
	Metrics         *metrics.DeskMetrics
}

// Service is the only mutation surface. The UI and the assistant both go
// through it, so validation, role checks, and in-flight guards apply to both.
type Service struct {
	gateway     visits.Gateway
	cache       Cache
	coordinator *visits.Coordinator
	timeout     time.Duration
	recorders   []Recorder
	guards      *guards
	logger      *logging.Logger
	metrics     *metrics.DeskMetrics
	now         func() time.Time
}

func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.MutationTimeout
	if timeout <= 0 {
		timeout = defaultMutationTimeout
	}
	return &Service{
		gateway:     cfg.Gateway,
		cache:       cfg.Cache,
		coordinator: cfg.Coordinator,
		timeout:     timeout,
		recorders:   cfg.Recorders,
		guards:      newGuards(),
		logger:      logger,
		metrics:     cfg.Metrics,
		now:         time.Now,
	}
}

// PatientResult carries the stored patient. ID is 0 when the new row
// could not be identified after the write.
type PatientResult struct {
	Patient   clinic.Patient `json:"patient"`
	Confirmed bool           `json:"confirmed"`
}

// VisitResult is a queued visit plus the suggested charge for it.
type VisitResult struct {
	Visit          clinic.Visit `json:"visit"`
	Confirmed      bool         `json:"confirmed"`
	SuggestedPrice float64      `json:"suggested_price"`
	Warning        string       `json:"warning,omitempty"`
}

// Busy reports whether the session has the operation in flight.
func (s *Service) Busy(actor Actor, op Op) bool {
	return s.guards.busy(actor.guardKey(string(op)))
}

func (s *Service) AddPatient(ctx context.Context, actor Actor, req AddPatientRequest) (PatientResult, error) {
	if err := s.begin(actor, OpAddPatient); err != nil {
		return PatientResult{}, err
	}
	release, err := s.guards.acquire(actor.guardKey(string(OpAddPatient)))
	if err != nil {
		return PatientResult{}, s.reject(actor, OpAddPatient, err)
	}
	defer release()
	if err := req.normalize(s.gateway.Location()); err != nil {
		return PatientResult{}, s.reject(actor, OpAddPatient, err)
	}

	ctx, cancel := s.detach(ctx)
	defer cancel()

	p := req.patient()
	payload := sheets.PatientPayload(p)
	res, err := s.gateway.Write(ctx, sheets.SheetPatients, payload)
	if err != nil {
		s.record(ctx, actor, OpAddPatient, sheets.SheetPatients, payload, OutcomeFailed, 0, err)
		return PatientResult{}, fmt.Errorf("frontdesk: add patient: %w", err)
	}
	s.refresh(ctx, OpAddPatient)

	p.ID = s.echoedID(sheets.PatientsSchema, res)
	if p.ID == 0 {
		p.ID = lastMatch(s.cache.View().Patients, func(x clinic.Patient) bool {
			return x.Name == p.Name && x.Phone == p.Phone && x.DOB == p.DOB
		}, func(x clinic.Patient) int64 { return x.ID })
	}
	outcome := s.outcomeFor(p.ID)
	s.record(ctx, actor, OpAddPatient, sheets.SheetPatients, payload, outcome, p.ID, nil)
	return PatientResult{Patient: p, Confirmed: p.ID > 0}, nil
}

// AddVisit queues a patient. A ConfirmationTimeoutError is returned along
// with the submitted visit when the write could not be verified.
func (s *Service) AddVisit(ctx context.Context, actor Actor, req AddVisitRequest) (VisitResult, error) {
	if err := s.begin(actor, OpAddVisit); err != nil {
		return VisitResult{}, err
	}
	release, err := s.guards.acquire(actor.guardKey(string(OpAddVisit)))
	if err != nil {
		return VisitResult{}, s.reject(actor, OpAddVisit, err)
	}
	defer release()
	if err := req.fields().Err(); err != nil {
		return VisitResult{}, s.reject(actor, OpAddVisit, err)
	}

	data := s.view(ctx)
	if err := req.validate(data); err != nil {
		return VisitResult{}, s.reject(actor, OpAddVisit, err)
	}
	c, _ := data.Clinic(req.ClinicID)

	ctx, cancel := s.detach(ctx)
	defer cancel()

	v, err := s.coordinator.CreateVisit(ctx, visits.NewVisit{
		PatientID: req.PatientID,
		ClinicID:  req.ClinicID,
		VisitType: req.VisitType,
	})
	result := VisitResult{Visit: v, SuggestedPrice: c.Price(req.VisitType)}
	payload := sheets.VisitPayload(v)
	key := visits.KeyOf(v)
	if err != nil && v.QueueNumber == 0 {
		payload = sheets.VisitPayload(clinic.Visit{
			PatientID: req.PatientID,
			ClinicID:  req.ClinicID,
			Status:    clinic.StatusWaiting,
			VisitType: req.VisitType,
		})
	}
	switch {
	case err == nil:
		result.Confirmed = true
		s.recordVisit(ctx, actor, payload, OutcomeConfirmed, v.ID, &key, nil)
		return result, nil
	case visits.IsConfirmationTimeout(err):
		result.Warning = "the visit was submitted but could not be confirmed; check the visits list before adding it again"
		s.recordVisit(ctx, actor, payload, OutcomeUnconfirmed, 0, &key, err)
		return result, err
	default:
		s.record(ctx, actor, OpAddVisit, sheets.SheetVisits, payload, OutcomeFailed, 0, err)
		return VisitResult{}, fmt.Errorf("frontdesk: add visit: %w", err)
	}
}

// BeginDiagnosis marks a visit InProgress locally when a doctor opens it.
func (s *Service) BeginDiagnosis(ctx context.Context, actor Actor, visitID int64) (state.Patch, error) {
	return s.UpdateVisitStatus(ctx, actor, UpdateVisitStatusRequest{VisitID: visitID, Status: clinic.StatusInProgress})
}

// UpdateVisitStatus is optimistic and local-only; the next refresh
// replaces it with whatever the remote store holds.
func (s *Service) UpdateVisitStatus(ctx context.Context, actor Actor, req UpdateVisitStatusRequest) (state.Patch, error) {
	if err := s.begin(actor, OpUpdateVisitStatus); err != nil {
		return state.Patch{}, err
	}
	v, ok := s.view(ctx).Visit(req.VisitID)
	if !ok {
		return state.Patch{}, s.reject(actor, OpUpdateVisitStatus, clinic.ErrVisitNotFound)
	}
	if err := authorizeClinic(actor, v.ClinicID); err != nil {
		return state.Patch{}, s.reject(actor, OpUpdateVisitStatus, err)
	}
	p, err := s.coordinator.SetStatus(req.VisitID, req.Status)
	if err != nil {
		return state.Patch{}, s.reject(actor, OpUpdateVisitStatus, err)
	}
	s.metrics.ObserveMutation(string(OpUpdateVisitStatus), string(OutcomeLocal))
	return p, nil
}

// AddDiagnosis records a diagnosis and completes its visit.
func (s *Service) AddDiagnosis(ctx context.Context, actor Actor, req AddDiagnosisRequest) (visits.DiagnosisOutcome, error) {
	if err := s.begin(actor, OpAddDiagnosis); err != nil {
		return visits.DiagnosisOutcome{}, err
	}
	release, err := s.guards.acquire(actor.guardKey(string(OpAddDiagnosis), strconv.FormatInt(req.VisitID, 10)))
	if err != nil {
		return visits.DiagnosisOutcome{}, s.reject(actor, OpAddDiagnosis, err)
	}
	defer release()
	if err := req.fields().Err(); err != nil {
		return visits.DiagnosisOutcome{}, s.reject(actor, OpAddDiagnosis, err)
	}

	visit, err := req.validate(s.view(ctx), actor)
	if err != nil {
		return visits.DiagnosisOutcome{}, s.reject(actor, OpAddDiagnosis, err)
	}
	if err := authorizeClinic(actor, visit.ClinicID); err != nil {
		return visits.DiagnosisOutcome{}, s.reject(actor, OpAddDiagnosis, err)
	}

	ctx, cancel := s.detach(ctx)
	defer cancel()

	d := req.diagnosis()
	payload := sheets.DiagnosisPayload(d)
	out, err := s.coordinator.SubmitDiagnosis(ctx, d)
	if err != nil {
		if errors.Is(err, visits.ErrAlreadyDiagnosed) || errors.Is(err, visits.ErrInvalidTransition) || errors.Is(err, clinic.ErrVisitNotFound) {
			return visits.DiagnosisOutcome{}, s.reject(actor, OpAddDiagnosis, err)
		}
		s.record(ctx, actor, OpAddDiagnosis, sheets.SheetDiagnosis, payload, OutcomeFailed, 0, err)
		return visits.DiagnosisOutcome{}, fmt.Errorf("frontdesk: add diagnosis: %w", err)
	}
	rec := s.newRecord(actor, OpAddDiagnosis, sheets.SheetDiagnosis, payload, OutcomeConfirmed, out.Diagnosis.ID, nil)
	rec.Warnings = out.Warnings
	s.emit(ctx, rec)
	return out, nil
}

func (s *Service) AddManualRevenue(ctx context.Context, actor Actor, req AddManualRevenueRequest) (clinic.Revenue, error) {
	if err := s.begin(actor, OpAddManualRevenue); err != nil {
		return clinic.Revenue{}, err
	}
	release, err := s.guards.acquire(actor.guardKey(string(OpAddManualRevenue)))
	if err != nil {
		return clinic.Revenue{}, s.reject(actor, OpAddManualRevenue, err)
	}
	defer release()
	if err := req.fields(s.gateway.Location()).Err(); err != nil {
		return clinic.Revenue{}, s.reject(actor, OpAddManualRevenue, err)
	}
	if err := req.normalize(s.view(ctx), s.gateway.Location()); err != nil {
		return clinic.Revenue{}, s.reject(actor, OpAddManualRevenue, err)
	}

	ctx, cancel := s.detach(ctx)
	defer cancel()

	r := req.revenue()
	payload := sheets.RevenuePayload(r)
	res, err := s.gateway.Write(ctx, sheets.SheetRevenues, payload)
	if err != nil {
		s.record(ctx, actor, OpAddManualRevenue, sheets.SheetRevenues, payload, OutcomeFailed, 0, err)
		return clinic.Revenue{}, fmt.Errorf("frontdesk: add revenue: %w", err)
	}
	s.refresh(ctx, OpAddManualRevenue)
	r.ID = s.echoedID(sheets.RevenuesSchema, res)
	if r.ID == 0 {
		r.ID = lastMatch(s.cache.View().Revenues, func(x clinic.Revenue) bool {
			return x.PatientName == r.PatientName && x.ClinicID == r.ClinicID && x.Date == r.Date && x.Amount == r.Amount && x.VisitID == r.VisitID
		}, func(x clinic.Revenue) int64 { return x.ID })
	}
	s.record(ctx, actor, OpAddManualRevenue, sheets.SheetRevenues, payload, s.outcomeFor(r.ID), r.ID, nil)
	return r, nil
}

func (s *Service) AddUser(ctx context.Context, actor Actor, req AddUserRequest) (clinic.User, error) {
	if err := s.begin(actor, OpAddUser); err != nil {
		return clinic.User{}, err
	}
	release, err := s.guards.acquire(actor.guardKey(string(OpAddUser)))
	if err != nil {
		return clinic.User{}, s.reject(actor, OpAddUser, err)
	}
	defer release()
	if err := req.fields().Err(); err != nil {
		return clinic.User{}, s.reject(actor, OpAddUser, err)
	}
	u, err := req.validate(s.view(ctx))
	if err != nil {
		return clinic.User{}, s.reject(actor, OpAddUser, err)
	}

	ctx, cancel := s.detach(ctx)
	defer cancel()

	payload := sheets.UserPayload(u)
	res, err := s.gateway.Write(ctx, sheets.SheetUsers, payload)
	if err != nil {
		s.record(ctx, actor, OpAddUser, sheets.SheetUsers, redactPassword(payload), OutcomeFailed, 0, err)
		return clinic.User{}, fmt.Errorf("frontdesk: add user: %w", err)
	}
	s.refresh(ctx, OpAddUser)
	u.ID = s.echoedID(sheets.UsersSchema, res)
	if u.ID == 0 {
		if stored, ok := s.cache.View().UserByUsername(u.Username); ok {
			u.ID = stored.ID
		}
	}
	s.record(ctx, actor, OpAddUser, sheets.SheetUsers, redactPassword(payload), s.outcomeFor(u.ID), u.ID, nil)
	return u.Public(), nil
}

// UpdateUser edits a user, including password changes. Only managers may
// call it.
func (s *Service) UpdateUser(ctx context.Context, actor Actor, req UpdateUserRequest) (clinic.User, error) {
	if err := s.begin(actor, OpUpdateUser); err != nil {
		return clinic.User{}, err
	}
	release, err := s.guards.acquire(actor.guardKey(string(OpUpdateUser)))
	if err != nil {
		return clinic.User{}, s.reject(actor, OpUpdateUser, err)
	}
	defer release()
	if err := req.fields().Err(); err != nil {
		return clinic.User{}, s.reject(actor, OpUpdateUser, err)
	}
	upd, next, err := req.validate(s.view(ctx))
	if err != nil {
		return clinic.User{}, s.reject(actor, OpUpdateUser, err)
	}

	ctx, cancel := s.detach(ctx)
	defer cancel()

	payload := sheets.UserUpdatePayload(req.UserID, upd)
	if _, err := s.gateway.Write(ctx, sheets.SheetUsers, payload); err != nil {
		s.record(ctx, actor, OpUpdateUser, sheets.SheetUsers, redactPassword(payload), OutcomeFailed, req.UserID, err)
		return clinic.User{}, fmt.Errorf("frontdesk: update user: %w", err)
	}
	s.refresh(ctx, OpUpdateUser)
	s.record(ctx, actor, OpUpdateUser, sheets.SheetUsers, redactPassword(payload), OutcomeConfirmed, req.UserID, nil)
	return next.Public(), nil
}

func (s *Service) AddDoctor(ctx context.Context, actor Actor, req AddDoctorRequest) (clinic.Doctor, error) {
	if err := s.begin(actor, OpAddDoctor); err != nil {
		return clinic.Doctor{}, err
	}
	release, err := s.guards.acquire(actor.guardKey(string(OpAddDoctor)))
	if err != nil {
		return clinic.Doctor{}, s.reject(actor, OpAddDoctor, err)
	}
	defer release()
	if err := req.fields().Err(); err != nil {
		return clinic.Doctor{}, s.reject(actor, OpAddDoctor, err)
	}
	if err := req.validate(s.view(ctx)); err != nil {
		return clinic.Doctor{}, s.reject(actor, OpAddDoctor, err)
	}

	ctx, cancel := s.detach(ctx)
	defer cancel()

	d := req.doctor()
	payload := sheets.DoctorPayload(d)
	res, err := s.gateway.Write(ctx, sheets.SheetDoctors, payload)
	if err != nil {
		s.record(ctx, actor, OpAddDoctor, sheets.SheetDoctors, payload, OutcomeFailed, 0, err)
		return clinic.Doctor{}, fmt.Errorf("frontdesk: add doctor: %w", err)
	}
	s.refresh(ctx, OpAddDoctor)
	d.ID = s.echoedID(sheets.DoctorsSchema, res)
	if d.ID == 0 {
		d.ID = lastMatch(s.cache.View().Doctors, func(x clinic.Doctor) bool {
			return x.Name == d.Name && x.ClinicID == d.ClinicID
		}, func(x clinic.Doctor) int64 { return x.ID })
	}
	s.record(ctx, actor, OpAddDoctor, sheets.SheetDoctors, payload, s.outcomeFor(d.ID), d.ID, nil)
	return d, nil
}

// begin checks the role before anything else touches the network.
func (s *Service) begin(actor Actor, op Op) error {
	if err := authorize(actor, op); err != nil {
		return s.reject(actor, op, err)
	}
	return nil
}

func (s *Service) reject(actor Actor, op Op, err error) error {
	s.metrics.ObserveMutation(string(op), string(OutcomeRejected))
	s.logger.Info("mutation rejected", "op", op, "user", actor.User.Username, "error", err)
	return err
}

// view returns the patched snapshot, loading it first if nothing has been
// fetched yet. Callers run their snapshot-free checks before calling it.
func (s *Service) view(ctx context.Context) *clinic.Dataset {
	if err := s.cache.EnsureLoaded(ctx); err != nil {
		s.logger.Warn("validating against an empty snapshot", "error", err)
	}
	return s.cache.View()
}

// detach shields a mutation from client cancellation while bounding it.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

func (s *Service) refresh(ctx context.Context, op Op) {
	if err := s.cache.Refresh(ctx); err != nil {
		s.logger.Warn("post-mutation refresh failed", "op", op, "error", err)
	}
}

func (s *Service) echoedID(schema sheets.Schema, res *sheets.WriteResult) int64 {
	if res == nil || len(res.Row) == 0 {
		return 0
	}
	id, err := schema.RowID(res.Row, s.gateway.Location())
	if err != nil {
		return 0
	}
	return id
}

func (s *Service) outcomeFor(id int64) Outcome {
	if id > 0 {
		return OutcomeConfirmed
	}
	return OutcomeUnconfirmed
}

func (s *Service) recordVisit(ctx context.Context, actor Actor, payload *sheets.Payload, outcome Outcome, id int64, key *visits.VisitKey, err error) {
	rec := s.newRecord(actor, OpAddVisit, sheets.SheetVisits, payload, outcome, id, err)
	rec.VisitKey = key
	s.emit(ctx, rec)
}

func (s *Service) record(ctx context.Context, actor Actor, op Op, sheet string, payload *sheets.Payload, outcome Outcome, id int64, err error) {
	s.emit(ctx, s.newRecord(actor, op, sheet, payload, outcome, id, err))
}

func (s *Service) newRecord(actor Actor, op Op, sheet string, payload *sheets.Payload, outcome Outcome, id int64, err error) MutationRecord {
	rec := MutationRecord{
		Op:        op,
		Sheet:     sheet,
		SessionID: actor.SessionID,
		UserID:    actor.User.ID,
		Username:  actor.User.Username,
		Outcome:   outcome,
		EntityID:  id,
		At:        s.now(),
	}
	if payload != nil {
		if b, mErr := json.Marshal(payload); mErr == nil {
			rec.Payload = b
		}
	}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

func (s *Service) emit(ctx context.Context, rec MutationRecord) {
	s.metrics.ObserveMutation(string(rec.Op), string(rec.Outcome))
	if rec.Outcome == OutcomeFailed {
		s.logger.Warn("mutation failed", "op", rec.Op, "sheet", rec.Sheet, "user", rec.Username, "error", rec.Error)
	} else {
		s.logger.Info("mutation applied", "op", rec.Op, "sheet", rec.Sheet, "user", rec.Username, "outcome", rec.Outcome, "entity_id", rec.EntityID)
	}
	for _, r := range s.recorders {
		r.Record(ctx, rec)
	}
}

func redactPassword(p *sheets.Payload) *sheets.Payload {
	out := sheets.NewPayload()
	for _, k := range p.Keys() {
		v, _ := p.Get(k)
		if k == "password" {
			v = "[redacted]"
		}
		out.Set(k, v)
	}
	return out
}

func lastMatch[T any](items []T, match func(T) bool, id func(T) int64) int64 {
	for i := len(items) - 1; i >= 0; i-- {
		if match(items[i]) {
			return id(items[i])
		}
	}
	return 0
}
