package driver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Moosv/simplefleet/internal/shared/auth"
	"github.com/Moosv/simplefleet/internal/shared/errors"
	"github.com/Moosv/simplefleet/internal/shared/types"
)

// Handler provides HTTP handlers for the driver module
type Handler struct {
	service *Service
}

// NewHandler creates a new driver handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the driver and department routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/drivers", func(r chi.Router) {
		r.Get("/", h.ListDrivers)
		r.Get("/stats", h.Stats)
		r.Get("/me", h.Me)

		r.Route("/{driverID}", func(r chi.Router) {
			r.Get("/", h.GetDriver)
			r.Patch("/name", h.UpdateName)
			r.Patch("/department", h.UpdateDepartment)
			r.Patch("/vehicle", h.UpdateVehicle)
			r.Patch("/role", h.UpdateRole)
			r.Post("/promote", h.Promote)
			r.Delete("/", h.DeleteDriver)
		})
	})

	r.Route("/departments", func(r chi.Router) {
		r.Get("/", h.ListDepartments)
		r.Put("/{name}", h.RenameDepartment)
		r.Delete("/{name}", h.DeleteDepartment)
	})

	return r
}

// ListDrivers lists the roster, newest first
func (h *Handler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if drivers == nil {
		drivers = []Driver{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  drivers,
		"total": len(drivers),
	})
}

// Stats returns the projected roster view
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	roster, err := h.service.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, roster)
}

// Me reports the caller's resolved authorization state
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSession(r.Context())
	if session == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	resolution, err := h.service.ResolveActor(r.Context(), session)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"email":           session.Email,
		"role":            resolution.Role,
		"admin_privilege": resolution.AdminPrivilege,
		"master":          resolution.Master,
		"pending":         resolution.Pending,
	})
}

// GetDriver gets a driver by ID
func (h *Handler) GetDriver(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "driverID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid driver ID"))
		return
	}

	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) sessionAndID(w http.ResponseWriter, r *http.Request) (*auth.Session, types.ID, bool) {
	session := auth.GetSession(r.Context())
	if session == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return nil, "", false
	}

	id, err := types.ParseID(chi.URLParam(r, "driverID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid driver ID"))
		return nil, "", false
	}

	return session, id, true
}

// UpdateName updates a driver's display name
func (h *Handler) UpdateName(w http.ResponseWriter, r *http.Request) {
	session, id, ok := h.sessionAndID(w, r)
	if !ok {
		return
	}

	var req UpdateNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	d, err := h.service.UpdateName(r.Context(), session, id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// UpdateDepartment assigns or clears a driver's department
func (h *Handler) UpdateDepartment(w http.ResponseWriter, r *http.Request) {
	session, id, ok := h.sessionAndID(w, r)
	if !ok {
		return
	}

	var req UpdateDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	d, err := h.service.UpdateDepartment(r.Context(), session, id, req.Department)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// UpdateVehicle updates a driver's primary vehicle number
func (h *Handler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	session, id, ok := h.sessionAndID(w, r)
	if !ok {
		return
	}

	var req UpdateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	d, err := h.service.UpdateVehicle(r.Context(), session, id, req.VehicleNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// UpdateRole changes a driver's role. A partial success, where the
// profile row changed but the account metadata write failed, answers
// 207 with a warning.
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	session, id, ok := h.sessionAndID(w, r)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	result, err := h.service.UpdateRole(r.Context(), session, id, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeRoleResult(w, result)
}

// Promote grants admin to a pending request
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	session, id, ok := h.sessionAndID(w, r)
	if !ok {
		return
	}

	result, err := h.service.Promote(r.Context(), session, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeRoleResult(w, result)
}

// DeleteDriver removes a driver and its linked account
func (h *Handler) DeleteDriver(w http.ResponseWriter, r *http.Request) {
	session, id, ok := h.sessionAndID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), session, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListDepartments lists departments with member counts
func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.service.Departments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  departments,
		"total": len(departments),
	})
}

// RenameDepartment renames a department by bulk-updating its members
func (h *Handler) RenameDepartment(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSession(r.Context())
	if session == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req RenameDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	result, err := h.service.RenameDepartment(r.Context(), session, chi.URLParam(r, "name"), req.NewName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// DeleteDepartment detaches every member of a department
func (h *Handler) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	session := auth.GetSession(r.Context())
	if session == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	result, err := h.service.DeleteDepartment(r.Context(), session, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// --- Helpers ---

func writeRoleResult(w http.ResponseWriter, result *RoleUpdateResult) {
	status := http.StatusOK
	if result.Warning != "" {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

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
