package registry

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Handler exposes read-only lookups against the legacy registry
type Handler struct {
	adapter *Adapter
}

// NewHandler creates a new registry handler
func NewHandler(adapter *Adapter) *Handler {
	return &Handler{adapter: adapter}
}

// Routes registers the vehicle lookup routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListVehicles)
	r.Get("/{number}", h.GetVehicle)

	return r
}

// GetVehicle looks up a vehicle by plate number
func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	v, err := h.adapter.Lookup(r.Context(), number)
	if err != nil {
		status := http.StatusBadGateway
		if strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, v)
}

// ListVehicles lists vehicles for a department
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	department := r.URL.Query().Get("department")
	if department == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "department query parameter is required"})
		return
	}

	vehicles, err := h.adapter.ListByDepartment(r.Context(), department)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	if vehicles == nil {
		vehicles = []Vehicle{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  vehicles,
		"total": len(vehicles),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
