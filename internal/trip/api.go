package trip

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Moosv/simplefleet/internal/authz"
	"github.com/Moosv/simplefleet/internal/shared/auth"
	"github.com/Moosv/simplefleet/internal/shared/errors"
	"github.com/Moosv/simplefleet/internal/shared/events"
	"github.com/Moosv/simplefleet/internal/shared/metrics"
	"github.com/Moosv/simplefleet/internal/shared/types"
)

// ActorResolver derives the caller's authorization state. The driver
// service provides the production implementation.
type ActorResolver interface {
	ResolveActor(ctx context.Context, session *auth.Session) (authz.Resolution, error)
}

// VehicleRegistry checks plates against the legacy motor-pool registry.
type VehicleRegistry interface {
	Exists(ctx context.Context, vehicleNumber string) (bool, error)
}

// Handler provides HTTP handlers for driving records
type Handler struct {
	store    Store
	resolver ActorResolver
	bus      events.EventBus
	vehicles VehicleRegistry
}

// NewHandler creates a new trip handler. vehicles is optional; without
// it vehicle numbers are accepted unchecked.
func NewHandler(store Store, resolver ActorResolver, bus events.EventBus, vehicles VehicleRegistry) *Handler {
	return &Handler{store: store, resolver: resolver, bus: bus, vehicles: vehicles}
}

// Routes registers the trip routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListTrips)
	r.Post("/", h.CreateTrip)

	r.Route("/{tripID}", func(r chi.Router) {
		r.Get("/", h.GetTrip)
		r.Put("/", h.UpdateTrip)
		r.Delete("/", h.DeleteTrip)
	})

	return r
}

// CreateTrip records a driving record. Any authenticated driver can
// log their own trips.
func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSession(r.Context())
	if session == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req CreateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	t := &Trip{
		ID:                 types.NewID(),
		AccountID:          &session.AccountID,
		StartDate:          req.StartDate,
		StartTime:          req.StartTime,
		EndDate:            req.EndDate,
		EndTime:            req.EndTime,
		VehicleNumber:      req.VehicleNumber,
		Department:         req.Department,
		DriverName:         req.DriverName,
		Purpose:            req.Purpose,
		Destination:        req.Destination,
		Waypoint:           req.Waypoint,
		CumulativeDistance: req.CumulativeDistance,
		FuelAmount:         req.FuelAmount,
	}

	if err := t.Validate(); err != nil {
		writeError(w, err)
		return
	}

	if h.vehicles != nil {
		known, err := h.vehicles.Exists(r.Context(), t.VehicleNumber)
		if err != nil {
			writeError(w, errors.Wrap(err, "vehicle registry lookup failed"))
			return
		}
		if !known {
			writeError(w, errors.Validation("validation failed", map[string]string{
				"vehicle_number": "not a registered fleet vehicle",
			}))
			return
		}
	}

	if err := h.store.Create(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}

	department := ""
	if t.Department != nil {
		department = *t.Department
	}
	metrics.RecordTrip(department)

	if h.bus != nil {
		event := events.NewEvent("trip.recorded", "trip", map[string]any{
			"trip_id":        t.ID,
			"vehicle_number": t.VehicleNumber,
			"department":     department,
		}).WithActor(session.AccountID, "account")
		h.bus.Publish(r.Context(), event)
	}

	writeJSON(w, http.StatusCreated, t)
}

// ListTrips lists driving records with optional filters
func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Department:    r.URL.Query().Get("department"),
		VehicleNumber: r.URL.Query().Get("vehicle_number"),
		From:          r.URL.Query().Get("from"),
		To:            r.URL.Query().Get("to"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	trips, total, err := h.store.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	if trips == nil {
		trips = []Trip{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  trips,
		"total": total,
	})
}

// GetTrip gets a driving record by ID
func (h *Handler) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "tripID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid trip ID"))
		return
	}

	t, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// checkGate records the decision and turns a denial into an error.
func (h *Handler) checkGate(ctx context.Context, session *auth.Session, action string, gate func(authz.Resolution) authz.Decision) error {
	actor, err := h.resolver.ResolveActor(ctx, session)
	if err != nil {
		return err
	}

	d := gate(actor)
	metrics.RecordAuthorizationDecision(action, d.Allowed)
	if !d.Allowed {
		return errors.Forbidden(d.Reason)
	}
	return nil
}

// UpdateTrip corrects a driving record. Admin privilege required.
func (h *Handler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSession(r.Context())
	if session == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "tripID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid trip ID"))
		return
	}

	if err := h.checkGate(r.Context(), session, "edit_trip", authz.CanEditTrip); err != nil {
		writeError(w, err)
		return
	}

	t, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.StartDate != nil {
		t.StartDate = *req.StartDate
	}
	if req.StartTime != nil {
		t.StartTime = req.StartTime
	}
	if req.EndDate != nil {
		t.EndDate = *req.EndDate
	}
	if req.EndTime != nil {
		t.EndTime = req.EndTime
	}
	if req.VehicleNumber != nil {
		t.VehicleNumber = *req.VehicleNumber
	}
	if req.Department != nil {
		t.Department = req.Department
	}
	if req.DriverName != nil {
		t.DriverName = *req.DriverName
	}
	if req.Purpose != nil {
		t.Purpose = *req.Purpose
	}
	if req.Destination != nil {
		t.Destination = *req.Destination
	}
	if req.Waypoint != nil {
		t.Waypoint = req.Waypoint
	}
	if req.CumulativeDistance != nil {
		t.CumulativeDistance = req.CumulativeDistance
	}
	if req.FuelAmount != nil {
		t.FuelAmount = req.FuelAmount
	}

	if err := t.Validate(); err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.Update(r.Context(), t); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// DeleteTrip removes a driving record. Admin privilege required.
func (h *Handler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSession(r.Context())
	if session == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "tripID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid trip ID"))
		return
	}

	if err := h.checkGate(r.Context(), session, "delete_trip", authz.CanDeleteTrip); err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		body := map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		}
		if cause := appErr.Cause(); cause != "" {
			body["cause"] = cause
		}
		json.NewEncoder(w).Encode(body)
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
