// Package handler exposes the hospital inventory ledger over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bloodlink/internal/hospital"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/middleware"
	"bloodlink/internal/request"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/httputil"
)

// Service defines the interface for inventory operations.
type Service interface {
	Inventory(ctx context.Context, actor id.Actor) (hospital.Inventory, error)
	Adjust(ctx context.Context, actor id.Actor, key string, quantity int, action string) (hospital.AdjustResult, hospital.Inventory, error)
}

// RequestLister lists requests directed at the acting hospital.
type RequestLister interface {
	HospitalRequests(ctx context.Context, actor id.Actor) ([]*request.Request, error)
}

// Handler handles hospital-facing endpoints.
type Handler struct {
	logger       *slog.Logger
	inventory    Service
	requests     RequestLister
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new hospital Handler.
func New(
	inventory Service,
	requests RequestLister,
	logger *slog.Logger,
	metrics *metrics.Metrics,
	jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		inventory:    inventory,
		requests:     requests,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the hospital routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	hospitalRouter := chi.NewRouter()
	hospitalRouter.Use(middleware.Recovery(h.logger))
	hospitalRouter.Use(middleware.RequestID)
	hospitalRouter.Use(middleware.Logger(h.logger))
	hospitalRouter.Use(middleware.Timeout(30 * time.Second))
	hospitalRouter.Use(middleware.ContentTypeJSON)
	hospitalRouter.Use(middleware.LatencyMiddleware(h.metrics))
	hospitalRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	hospitalRouter.Get("/api/hospitals/inventory", h.handleGetInventory)
	hospitalRouter.Put("/api/hospitals/inventory", h.handleAdjustInventory)
	hospitalRouter.Get("/api/hospitals/requests", h.handleListRequests)

	r.Mount("/", hospitalRouter)
}

// inventoryResponse is the ledger wire shape.
type inventoryResponse struct {
	Inventory hospital.Inventory `json:"inventory"`
}

func (h *Handler) handleGetInventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inv, err := h.inventory.Inventory(ctx, middleware.GetActor(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "get inventory", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inventoryResponse{Inventory: inv})
}

// adjustBody is the ledger adjustment payload.
type adjustBody struct {
	BloodKey string `json:"bloodKey"`
	Quantity int    `json:"quantity"`
	Action   string `json:"action"`
}

// adjustResponse reports the adjusted counter and the full ledger. Clamped
// surfaces floored removals so hospital dashboards can flag the discrepancy.
type adjustResponse struct {
	BloodKey  string             `json:"bloodKey"`
	Units     int                `json:"units"`
	Clamped   bool               `json:"clamped"`
	Inventory hospital.Inventory `json:"inventory"`
}

func (h *Handler) handleAdjustInventory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body adjustBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.WarnContext(ctx, "invalid adjust body",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, inv, err := h.inventory.Adjust(ctx, middleware.GetActor(ctx), body.BloodKey, body.Quantity, body.Action)
	if err != nil {
		h.writeServiceError(ctx, w, "adjust inventory", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, adjustResponse{
		BloodKey:  result.Key,
		Units:     result.Units,
		Clamped:   result.Clamped,
		Inventory: inv,
	})
}

// hospitalRequestItem is the wire shape of a directed request as hospitals
// see it.
type hospitalRequestItem struct {
	ID           string    `json:"id"`
	PatientName  string    `json:"patientName"`
	BloodGroup   string    `json:"bloodGroup"`
	Units        int       `json:"units"`
	Urgency      string    `json:"urgency"`
	Status       string    `json:"status"`
	HospitalName string    `json:"hospitalName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listed, err := h.requests.HospitalRequests(ctx, middleware.GetActor(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "list hospital requests", err)
		return
	}
	out := make([]hospitalRequestItem, 0, len(listed))
	for _, req := range listed {
		out = append(out, hospitalRequestItem{
			ID:           req.ID.String(),
			PatientName:  req.PatientName,
			BloodGroup:   string(req.BloodGroup),
			Units:        req.Units,
			Urgency:      string(req.Urgency),
			Status:       string(req.Status),
			HospitalName: req.HospitalName,
			CreatedAt:    req.CreatedAt,
			UpdatedAt:    req.UpdatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, "rejected "+op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
