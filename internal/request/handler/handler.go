// Package handler exposes the blood request lifecycle over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bloodlink/internal/audit"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/middleware"
	"bloodlink/internal/request"
	"bloodlink/internal/request/service"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/httputil"
)

// Service defines the interface for request lifecycle operations.
type Service interface {
	Create(ctx context.Context, actor id.Actor, in service.CreateInput) (*request.Request, error)
	ListMine(ctx context.Context, actor id.Actor) ([]*request.Request, error)
	Matching(ctx context.Context, actor id.Actor) (*service.MatchingFeed, error)
	DonorHistory(ctx context.Context, actor id.Actor) ([]*request.Request, error)
	Get(ctx context.Context, actor id.Actor, requestID uuid.UUID) (*request.Request, error)
	Schedule(ctx context.Context, actor id.Actor, requestID uuid.UUID, in service.ScheduleInput) (*request.Request, error)
	UpdateStatus(ctx context.Context, actor id.Actor, requestID uuid.UUID, to request.Status, deductInventory bool) (*request.Request, error)
	Delete(ctx context.Context, actor id.Actor, requestID uuid.UUID) error
	AuditTrail(ctx context.Context, actor id.Actor, requestID uuid.UUID) ([]audit.Event, error)
}

// Handler handles blood request endpoints.
type Handler struct {
	logger       *slog.Logger
	requests     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new request Handler.
func New(
	requests Service,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		requests:     requests,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the request routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	requestRouter := chi.NewRouter()
	requestRouter.Use(middleware.Recovery(h.logger))
	requestRouter.Use(middleware.RequestID)
	requestRouter.Use(middleware.Logger(h.logger))
	requestRouter.Use(middleware.Timeout(30 * time.Second))
	requestRouter.Use(middleware.ContentTypeJSON)
	requestRouter.Use(middleware.LatencyMiddleware(h.metrics))
	requestRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	requestRouter.Post("/api/requests", h.handleCreate)
	requestRouter.Post("/api/requests/hospital", h.handleCreateHospitalDirected)
	requestRouter.Get("/api/requests/mine", h.handleListMine)
	requestRouter.Get("/api/requests/matching", h.handleMatching)
	requestRouter.Get("/api/requests/history", h.handleDonorHistory)
	requestRouter.Get("/api/requests/{id}", h.handleGet)
	requestRouter.Put("/api/requests/{id}/schedule", h.handleSchedule)
	requestRouter.Put("/api/requests/{id}/status", h.handleUpdateStatus)
	requestRouter.Delete("/api/requests/{id}", h.handleDelete)
	requestRouter.Get("/api/requests/{id}/audit", h.handleAuditTrail)

	r.Mount("/", requestRouter)
}

// createRequestBody is the request-creation payload.
type createRequestBody struct {
	PatientName     string `json:"patientName"`
	Age             int    `json:"age"`
	PatientGender   string `json:"patientGender"`
	BloodGroup      string `json:"bloodGroup"`
	Units           int    `json:"units"`
	Reason          string `json:"reason"`
	HospitalName    string `json:"hospitalName"`
	DoctorName      string `json:"doctorName"`
	HospitalAddress string `json:"hospitalAddress"`
	HospitalPhone   string `json:"hospitalPhone"`
	Urgency         string `json:"urgency"`
	TargetHospital  string `json:"targetHospitalId,omitempty"`
}

func (b createRequestBody) toInput() service.CreateInput {
	return service.CreateInput{
		PatientName:     b.PatientName,
		Age:             b.Age,
		PatientGender:   b.PatientGender,
		BloodGroup:      b.BloodGroup,
		Units:           b.Units,
		Reason:          b.Reason,
		HospitalName:    b.HospitalName,
		DoctorName:      b.DoctorName,
		HospitalAddress: b.HospitalAddress,
		HospitalPhone:   b.HospitalPhone,
		Urgency:         b.Urgency,
	}
}

// requestResponse is the wire shape of a blood request.
type requestResponse struct {
	ID              string                   `json:"id"`
	Requester       string                   `json:"requester"`
	TargetHospital  string                   `json:"targetHospitalId,omitempty"`
	PatientName     string                   `json:"patientName"`
	Age             int                      `json:"age"`
	PatientGender   string                   `json:"patientGender,omitempty"`
	BloodGroup      string                   `json:"bloodGroup"`
	Units           int                      `json:"units"`
	Reason          string                   `json:"reason,omitempty"`
	HospitalName    string                   `json:"hospitalName"`
	DoctorName      string                   `json:"doctorName,omitempty"`
	HospitalAddress string                   `json:"hospitalAddress"`
	HospitalPhone   string                   `json:"hospitalPhone,omitempty"`
	Urgency         string                   `json:"urgency"`
	Status          string                   `json:"status"`
	FulfilledBy     string                   `json:"fulfilledBy,omitempty"`
	AppointmentSlot *request.AppointmentSlot `json:"appointmentSlot,omitempty"`
	DonorMessage    string                   `json:"donorMessage,omitempty"`
	CreatedAt       time.Time                `json:"createdAt"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

func toResponse(r *request.Request) requestResponse {
	resp := requestResponse{
		ID:              r.ID.String(),
		Requester:       r.Requester.String(),
		PatientName:     r.PatientName,
		Age:             r.Age,
		PatientGender:   r.PatientGender,
		BloodGroup:      string(r.BloodGroup),
		Units:           r.Units,
		Reason:          r.Reason,
		HospitalName:    r.HospitalName,
		DoctorName:      r.DoctorName,
		HospitalAddress: r.HospitalAddress,
		HospitalPhone:   r.HospitalPhone,
		Urgency:         string(r.Urgency),
		Status:          string(r.Status),
		DonorMessage:    r.DonorMessage,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.TargetHospital.Valid {
		resp.TargetHospital = r.TargetHospital.UUID.String()
	}
	if r.FulfilledBy.Valid {
		resp.FulfilledBy = r.FulfilledBy.UUID.String()
	}
	if !r.AppointmentSlot.IsZero() {
		slot := r.AppointmentSlot
		resp.AppointmentSlot = &slot
	}
	return resp
}

func toResponses(requests []*request.Request) []requestResponse {
	out := make([]requestResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, toResponse(r))
	}
	return out
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.warn(ctx, "invalid create request body", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	created, err := h.requests.Create(ctx, actor, body.toInput())
	if err != nil {
		h.writeServiceError(ctx, w, "create request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) handleCreateHospitalDirected(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.warn(ctx, "invalid create request body", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	targetID, err := uuid.Parse(body.TargetHospital)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid target hospital id"))
		return
	}
	in := body.toInput()
	in.TargetHospital = targetID

	created, err := h.requests.Create(ctx, actor, in)
	if err != nil {
		h.writeServiceError(ctx, w, "create hospital request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listed, err := h.requests.ListMine(ctx, middleware.GetActor(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "list requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(listed))
}

// matchingResponse wraps the feed with its count, what donor clients render.
type matchingResponse struct {
	Count      int               `json:"count"`
	BloodGroup string            `json:"bloodGroup"`
	Requests   []requestResponse `json:"requests"`
}

func (h *Handler) handleMatching(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	feed, err := h.requests.Matching(ctx, middleware.GetActor(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "matching requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, matchingResponse{
		Count:      feed.Count,
		BloodGroup: string(feed.BloodGroup),
		Requests:   toResponses(feed.Requests),
	})
}

func (h *Handler) handleDonorHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	history, err := h.requests.DonorHistory(ctx, middleware.GetActor(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "donor history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponses(history))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	got, err := h.requests.Get(ctx, middleware.GetActor(ctx), requestID)
	if err != nil {
		h.writeServiceError(ctx, w, "get request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(got))
}

// scheduleBody is the donor commitment payload.
type scheduleBody struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Comments string `json:"comments"`
	Pregnant bool   `json:"pregnant"`
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body scheduleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.warn(ctx, "invalid schedule body", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	updated, err := h.requests.Schedule(ctx, middleware.GetActor(ctx), requestID, service.ScheduleInput{
		Date:     body.Date,
		Time:     body.Time,
		Comments: body.Comments,
		Pregnant: body.Pregnant,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "schedule donation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(updated))
}

// updateStatusBody is the transition payload. DeductInventory is honored only
// on hospital-path fulfilment.
type updateStatusBody struct {
	Status          string `json:"status"`
	DeductInventory bool   `json:"deductInventory"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var body updateStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.warn(ctx, "invalid status body", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	to, err := request.ParseStatus(body.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := h.requests.UpdateStatus(ctx, middleware.GetActor(ctx), requestID, to, body.DeductInventory)
	if err != nil {
		h.writeServiceError(ctx, w, "update status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.requests.Delete(ctx, middleware.GetActor(ctx), requestID); err != nil {
		h.writeServiceError(ctx, w, "delete request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// auditEventResponse is the wire shape of one trail entry.
type auditEventResponse struct {
	Action     string    `json:"action"`
	ActorID    string    `json:"actorId"`
	ActorRole  string    `json:"actorRole"`
	FromStatus string    `json:"fromStatus,omitempty"`
	ToStatus   string    `json:"toStatus,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, ok := h.pathID(w, r)
	if !ok {
		return
	}
	events, err := h.requests.AuditTrail(ctx, middleware.GetActor(ctx), requestID)
	if err != nil {
		h.writeServiceError(ctx, w, "audit trail", err)
		return
	}
	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			Action:     string(e.Action),
			ActorID:    e.ActorID.String(),
			ActorRole:  string(e.ActorRole),
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Detail:     e.Detail,
			OccurredAt: e.Timestamp,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return uuid.Nil, false
	}
	return requestID, true
}

func (h *Handler) warn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
}

// writeServiceError logs internal failures and maps everything onto the coded
// error response.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.warn(ctx, "rejected "+op, err)
	}
	httputil.WriteError(w, err)
}
