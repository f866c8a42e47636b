// Package service orchestrates the blood request lifecycle: creation, donor
// matching, scheduling, status transitions and their side effects. Every
// operation takes the acting identity explicitly; nothing is read from
// ambient state.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"bloodlink/internal/audit"
	"bloodlink/internal/blood"
	"bloodlink/internal/donor"
	"bloodlink/internal/eligibility"
	"bloodlink/internal/hospital"
	"bloodlink/internal/notify"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/request"
	"bloodlink/internal/user"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
	"bloodlink/pkg/requestcontext"
)

// DonorStore is the donor persistence the lifecycle needs.
type DonorStore interface {
	Get(ctx context.Context, id uuid.UUID) (*donor.Donor, error)
	SetLastDonationDate(ctx context.Context, id uuid.UUID, donatedAt time.Time) error
}

// HospitalStore is the hospital persistence the lifecycle needs: stock checks
// on directed creation and deduction on hospital fulfilment.
type HospitalStore interface {
	Get(ctx context.Context, id uuid.UUID) (*hospital.Hospital, error)
	Adjust(ctx context.Context, id uuid.UUID, key string, quantity int, action hospital.Action) (hospital.AdjustResult, error)
}

// UserDirectory resolves requester contact details for notifications.
type UserDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// MatchingCache is the optional feed cache; a nil cache disables caching.
type MatchingCache interface {
	Get(ctx context.Context, group blood.Group) ([]*request.Request, bool, error)
	Set(ctx context.Context, group blood.Group, requests []*request.Request) error
}

// AuditSink records lifecycle events; a nil sink disables the trail.
type AuditSink interface {
	Emit(ctx context.Context, event audit.Event)
}

// AuditReader lists the trail for a request.
type AuditReader interface {
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]audit.Event, error)
}

// Service implements the request lifecycle.
type Service struct {
	requests  request.Store
	donors    DonorStore
	hospitals HospitalStore
	users     UserDirectory
	notifier  notify.Notifier
	cache     MatchingCache
	auditSink AuditSink
	auditRead AuditReader
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures optional collaborators.
type Option func(*Service)

func WithMatchingCache(c MatchingCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithAudit(sink AuditSink, reader AuditReader) Option {
	return func(s *Service) {
		s.auditSink = sink
		s.auditRead = reader
	}
}

func New(
	requests request.Store,
	donors DonorStore,
	hospitals HospitalStore,
	users UserDirectory,
	notifier notify.Notifier,
	logger *slog.Logger,
	m *metrics.Metrics,
	opts ...Option,
) *Service {
	s := &Service{
		requests:  requests,
		donors:    donors,
		hospitals: hospitals,
		users:     users,
		notifier:  notifier,
		logger:    logger,
		metrics:   m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the request-creation form.
type CreateInput struct {
	PatientName     string
	Age             int
	PatientGender   string
	BloodGroup      string
	Units           int
	Reason          string
	HospitalName    string
	DoctorName      string
	HospitalAddress string
	HospitalPhone   string
	Urgency         string
	// TargetHospital is set only for hospital-directed requests.
	TargetHospital uuid.UUID
}

func (in *CreateInput) validate() (blood.Group, request.Urgency, error) {
	if in.PatientName == "" {
		return "", "", dErrors.New(dErrors.CodeValidation, "patient name is required")
	}
	if in.HospitalName == "" {
		return "", "", dErrors.New(dErrors.CodeValidation, "hospital name is required")
	}
	if in.HospitalAddress == "" {
		return "", "", dErrors.New(dErrors.CodeValidation, "hospital address is required")
	}
	group, err := blood.ParseGroup(in.BloodGroup)
	if err != nil {
		return "", "", err
	}
	urgency, err := blood.ParseUrgency(in.Urgency)
	if err != nil {
		return "", "", err
	}
	if in.Units < 0 {
		return "", "", dErrors.New(dErrors.CodeValidation, "units must be positive")
	}
	return group, urgency, nil
}

// Create opens a new Pending request owned by the acting user.
func (s *Service) Create(ctx context.Context, actor id.Actor, in CreateInput) (*request.Request, error) {
	if actor.Role != id.RoleUser {
		return nil, dErrors.New(dErrors.CodeForbidden, "only users create requests")
	}
	group, urgency, err := in.validate()
	if err != nil {
		return nil, err
	}

	units := in.Units
	if units == 0 {
		units = 1
	}

	now := requestcontext.Now(ctx)
	req := &request.Request{
		ID:              uuid.New(),
		Requester:       actor.ID,
		PatientName:     in.PatientName,
		Age:             in.Age,
		PatientGender:   in.PatientGender,
		BloodGroup:      group,
		Units:           units,
		Reason:          in.Reason,
		HospitalName:    in.HospitalName,
		DoctorName:      in.DoctorName,
		HospitalAddress: in.HospitalAddress,
		HospitalPhone:   in.HospitalPhone,
		Urgency:         urgency,
		Status:          request.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if in.TargetHospital != uuid.Nil {
		if err := s.checkHospitalStock(ctx, in.TargetHospital, group, units); err != nil {
			return nil, err
		}
		req.TargetHospital = uuid.NullUUID{UUID: in.TargetHospital, Valid: true}
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "create request", err)
	}

	s.metrics.IncRequestsCreated()
	s.emit(ctx, audit.Event{
		RequestID: req.ID,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Action:    audit.ActionCreated,
		ToStatus:  string(request.StatusPending),
		Timestamp: now,
	})
	return req, nil
}

// checkHospitalStock rejects a directed request when the target hospital
// cannot cover it. The read is advisory; the authoritative deduction happens
// at fulfilment.
func (s *Service) checkHospitalStock(ctx context.Context, hospitalID uuid.UUID, group blood.Group, units int) error {
	h, err := s.hospitals.Get(ctx, hospitalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "hospital not found")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "load hospital", err)
	}
	available := h.Inventory[group.InventoryKey()]
	if units > available {
		return dErrors.New(dErrors.CodeValidation,
			"insufficient stock: "+h.HospitalName+" has "+strconv.Itoa(available)+" unit(s) of "+string(group))
	}
	return nil
}

// ListMine returns the acting user's requests, newest first.
func (s *Service) ListMine(ctx context.Context, actor id.Actor) ([]*request.Request, error) {
	if actor.Role != id.RoleUser {
		return nil, dErrors.New(dErrors.CodeForbidden, "only users list their requests")
	}
	out, err := s.requests.ListByRequester(ctx, actor.ID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list requests", err)
	}
	return out, nil
}

// Get returns one request. Any authenticated actor may read request details;
// writes are what the lifecycle guards.
func (s *Service) Get(ctx context.Context, actor id.Actor, requestID uuid.UUID) (*request.Request, error) {
	if actor.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load request", err)
	}
	return req, nil
}

// MatchingFeed is the donor-facing opportunities response.
type MatchingFeed struct {
	Count      int                `json:"count"`
	BloodGroup blood.Group        `json:"bloodGroup"`
	Requests   []*request.Request `json:"requests"`
}

// Matching returns Pending requests exactly matching the donor's blood group,
// urgency-first then newest-first. Exact match only: cross-compatibility
// (e.g. O- universal donor) is deliberately not applied.
func (s *Service) Matching(ctx context.Context, actor id.Actor) (*MatchingFeed, error) {
	if actor.Role != id.RoleDonor {
		return nil, dErrors.New(dErrors.CodeForbidden, "only donors browse matching requests")
	}
	d, err := s.donors.Get(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "donor profile not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load donor", err)
	}

	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, d.BloodGroup); err != nil {
			s.logger.WarnContext(ctx, "matching cache read failed", "error", err)
		} else if ok {
			return &MatchingFeed{Count: len(cached), BloodGroup: d.BloodGroup, Requests: cached}, nil
		}
	}

	matches, err := s.requests.FindMatching(ctx, d.BloodGroup)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "find matching requests", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, d.BloodGroup, matches); err != nil {
			s.logger.WarnContext(ctx, "matching cache write failed", "error", err)
		}
	}
	return &MatchingFeed{Count: len(matches), BloodGroup: d.BloodGroup, Requests: matches}, nil
}

// DonorHistory returns the requests the acting donor has committed to.
func (s *Service) DonorHistory(ctx context.Context, actor id.Actor) ([]*request.Request, error) {
	if actor.Role != id.RoleDonor {
		return nil, dErrors.New(dErrors.CodeForbidden, "only donors list donation history")
	}
	out, err := s.requests.ListByFulfiller(ctx, actor.ID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list donor history", err)
	}
	return out, nil
}

// HospitalRequests returns requests directed at the acting hospital, newest
// first, all statuses.
func (s *Service) HospitalRequests(ctx context.Context, actor id.Actor) ([]*request.Request, error) {
	if actor.Role != id.RoleHospital {
		return nil, dErrors.New(dErrors.CodeForbidden, "only hospitals list their requests")
	}
	out, err := s.requests.ListByTargetHospital(ctx, actor.ID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list hospital requests", err)
	}
	return out, nil
}

// ScheduleInput is the donor commitment form. Pregnant is the interactive
// answer collected when the donor is female; it is ignored otherwise.
type ScheduleInput struct {
	Date     string
	Time     string
	Comments string
	Pregnant bool
}

// Schedule commits the acting donor to a Pending request: eligibility is
// re-evaluated now (never cached), then Pending->Scheduled and the fulfiller
// fields are applied in one CAS write. The requester is notified afterwards;
// a failed send is logged and swallowed, the state change stands.
func (s *Service) Schedule(ctx context.Context, actor id.Actor, requestID uuid.UUID, in ScheduleInput) (*request.Request, error) {
	if actor.Role != id.RoleDonor {
		return nil, dErrors.New(dErrors.CodeForbidden, "only donors schedule donations")
	}
	if in.Date == "" || in.Time == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "appointment date and time are required")
	}

	d, err := s.donors.Get(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "donor profile not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load donor", err)
	}

	now := requestcontext.Now(ctx)
	result := eligibility.Evaluate(d.Gender, d.LastDonationDate, in.Pregnant, now)
	switch result.Status {
	case eligibility.DeferredPregnancy:
		s.metrics.IncDonorDeferred("pregnancy")
		return nil, dErrors.New(dErrors.CodeValidation, "pregnancy defers donation for safety reasons")
	case eligibility.DeferredRecency:
		s.metrics.IncDonorDeferred("recency")
		return nil, dErrors.New(dErrors.CodeValidation,
			"last donation too recent, wait "+strconv.Itoa(result.DaysRemaining)+" more day(s)")
	}

	req, err := s.requests.Schedule(ctx, requestID, request.ScheduleCommit{
		DonorID: actor.ID,
		Slot:    request.AppointmentSlot{Date: in.Date, Time: in.Time},
		Message: in.Comments,
		Now:     now,
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			s.metrics.IncTransitionRejected("precondition")
			return nil, dErrors.New(dErrors.CodePreconditionFailed, "this request is no longer Pending")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "schedule request", err)
	}

	s.metrics.IncTransition(string(request.StatusScheduled))
	s.emit(ctx, audit.Event{
		RequestID:  req.ID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     audit.ActionScheduled,
		FromStatus: string(request.StatusPending),
		ToStatus:   string(request.StatusScheduled),
		Detail:     in.Date + " " + in.Time,
		Timestamp:  now,
	})

	s.notifyScheduled(ctx, req, d, in)
	return req, nil
}

// notifyScheduled sends the appointment confirmation. Failures never
// propagate: the status write has already committed.
func (s *Service) notifyScheduled(ctx context.Context, req *request.Request, d *donor.Donor, in ScheduleInput) {
	requester, err := s.users.Get(ctx, req.Requester)
	if err != nil {
		s.metrics.IncNotificationFailed()
		s.logger.WarnContext(ctx, "resolve requester for notification",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
			"blood_request_id", req.ID.String(),
		)
		return
	}
	notice := notify.AppointmentNotice{
		RequesterName:  requester.FullName,
		RequesterEmail: requester.Email,
		PatientName:    req.PatientName,
		DonorName:      d.FullName,
		DonorMobile:    d.Mobile,
		Date:           in.Date,
		Time:           in.Time,
		Message:        in.Comments,
	}
	if err := s.notifier.AppointmentScheduled(ctx, notice); err != nil {
		s.metrics.IncNotificationFailed()
		s.logger.WarnContext(ctx, "appointment notification failed",
			"error", dErrors.Wrap(dErrors.CodeDependencyFailed, "send appointment mail", err),
			"request_id", requestcontext.RequestID(ctx),
			"blood_request_id", req.ID.String(),
		)
	}
}

// UpdateStatus drives a terminal or Scheduled->Fulfilled transition per the
// lifecycle table. The status write is the commit point: side effects
// (donor stamp, inventory deduction) run only after it succeeds, and a side
// effect failure is returned to the caller rather than rolled back — the
// documented recoverable-inconsistency window of the storage model.
func (s *Service) UpdateStatus(ctx context.Context, actor id.Actor, requestID uuid.UUID, to request.Status, deductInventory bool) (*request.Request, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load request", err)
	}
	if err := req.CheckFulfilmentInvariant(); err != nil {
		return nil, err
	}

	decision, err := request.Decide(actor, req, to)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeForbidden) {
			s.metrics.IncTransitionRejected("authorization")
		} else if dErrors.Is(err, dErrors.CodePreconditionFailed) {
			s.metrics.IncTransitionRejected("precondition")
		}
		return nil, err
	}

	now := requestcontext.Now(ctx)
	updated, err := s.requests.UpdateStatus(ctx, requestID, decision.From, to, now)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "request not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			// Lost the race between our read and the write.
			s.metrics.IncTransitionRejected("precondition")
			return nil, dErrors.New(dErrors.CodePreconditionFailed,
				"request status changed concurrently, refetch and retry")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "update status", err)
	}

	s.metrics.IncTransition(string(to))
	s.emit(ctx, audit.Event{
		RequestID:  updated.ID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     audit.ActionStatusChanged,
		FromStatus: string(decision.From),
		ToStatus:   string(to),
		Timestamp:  now,
	})

	if decision.UpdateDonorDate {
		if err := s.donors.SetLastDonationDate(ctx, updated.FulfilledBy.UUID, now); err != nil {
			s.logger.ErrorContext(ctx, "stamp donor last donation date",
				"error", err,
				"donor_id", updated.FulfilledBy.UUID.String(),
				"blood_request_id", updated.ID.String(),
			)
			return nil, dErrors.Wrap(dErrors.CodeInternal, "update donor record", err)
		}
	}

	if decision.AllowDeduct && deductInventory {
		key := updated.BloodGroup.InventoryKey()
		result, err := s.hospitals.Adjust(ctx, actor.ID, key, updated.Units, hospital.ActionRemove)
		if err != nil {
			s.logger.ErrorContext(ctx, "deduct inventory after fulfilment",
				"error", err,
				"hospital_id", actor.ID.String(),
				"blood_request_id", updated.ID.String(),
			)
			return nil, dErrors.Wrap(dErrors.CodeInternal, "deduct inventory", err)
		}
		s.metrics.IncInventoryAdjusted(string(hospital.ActionRemove))
		if result.Clamped {
			s.metrics.IncInventoryClamped()
			s.logger.WarnContext(ctx, "fulfilment deduction clamped at zero",
				"hospital_id", actor.ID.String(),
				"blood_key", key,
				"units", updated.Units,
			)
		}
	}

	return updated, nil
}

// Delete removes a request. Only the owning requester may delete.
func (s *Service) Delete(ctx context.Context, actor id.Actor, requestID uuid.UUID) error {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "request not found")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "load request", err)
	}
	if actor.Role != id.RoleUser || actor.ID != req.Requester {
		return dErrors.New(dErrors.CodeForbidden, "not authorized to delete this request")
	}
	if err := s.requests.Delete(ctx, requestID); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "delete request", err)
	}
	s.emit(ctx, audit.Event{
		RequestID:  requestID,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     audit.ActionDeleted,
		FromStatus: string(req.Status),
		Timestamp:  requestcontext.Now(ctx),
	})
	return nil
}

// AuditTrail lists the lifecycle events of a request for its requester or
// target hospital.
func (s *Service) AuditTrail(ctx context.Context, actor id.Actor, requestID uuid.UUID) ([]audit.Event, error) {
	if s.auditRead == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "audit trail not enabled")
	}
	req, err := s.Get(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	isRequester := actor.Role == id.RoleUser && actor.ID == req.Requester
	isTarget := actor.Role == id.RoleHospital && req.TargetHospital.Valid && actor.ID == req.TargetHospital.UUID
	if !isRequester && !isTarget {
		return nil, dErrors.New(dErrors.CodeForbidden, "not authorized to read this trail")
	}
	events, err := s.auditRead.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list audit trail", err)
	}
	return events, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditSink == nil {
		return
	}
	s.auditSink.Emit(ctx, event)
}
