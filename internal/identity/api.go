package identity

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Moosv/simplefleet/internal/authz"
	"github.com/Moosv/simplefleet/internal/shared/auth"
	"github.com/Moosv/simplefleet/internal/shared/config"
	"github.com/Moosv/simplefleet/internal/shared/errors"
	"github.com/Moosv/simplefleet/internal/shared/events"
	"github.com/Moosv/simplefleet/internal/shared/types"
)

// Handler provides HTTP handlers for signup and login
type Handler struct {
	store     Store
	authCfg   config.AuthConfig
	signupCfg config.SignupConfig
	bus       events.EventBus
}

// NewHandler creates a new identity handler
func NewHandler(store Store, authCfg config.AuthConfig, signupCfg config.SignupConfig, bus events.EventBus) *Handler {
	return &Handler{store: store, authCfg: authCfg, signupCfg: signupCfg, bus: bus}
}

// Routes registers the auth routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/verify-user", h.VerifyUser)
	r.Get("/departments", h.Departments)

	return r
}

// Signup creates an account and its driver profile. Accounts asking
// for admin access start as pending_admin and wait for promotion.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	details := map[string]string{}
	if req.Email == "" {
		details["email"] = "email is required"
	} else if !strings.HasSuffix(req.Email, "@"+h.signupCfg.AllowedDomain) {
		details["email"] = "email must belong to the " + h.signupCfg.AllowedDomain + " domain"
	}
	if len(req.Password) < 8 {
		details["password"] = "password must be at least 8 characters"
	}
	if req.Name == "" {
		details["name"] = "name is required"
	}
	if len(details) > 0 {
		writeError(w, errors.Validation("validation failed", details))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	role := string(authz.RoleUser)
	if req.RequestAdmin {
		role = string(authz.RolePendingAdmin)
	}

	account := &Account{
		ID:           types.NewID(),
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	if err := h.store.CreateSignup(r.Context(), account, req.Name, req.Department, role, req.RequestAdmin); err != nil {
		writeError(w, err)
		return
	}

	if h.bus != nil {
		event := events.NewEvent("auth.signup", "identity", map[string]any{
			"account_id":    account.ID,
			"email":         account.Email,
			"request_admin": req.RequestAdmin,
		}).WithActor(account.ID, "account")
		h.bus.Publish(r.Context(), event)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"account_id": account.ID,
		"email":      account.Email,
		"role":       role,
	})
}

// Login checks the password and issues a bearer token carrying the
// account's metadata role.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	account, err := h.store.GetAccountByEmail(r.Context(), email)
	if err != nil {
		if errors.IsNotFound(err) {
			writeError(w, errors.Unauthorized("invalid credentials"))
			return
		}
		writeError(w, err)
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, errors.Unauthorized("invalid credentials"))
		return
	}

	token, err := auth.IssueToken(h.authCfg, account.ID, account.Email, account.MetadataRole)
	if err != nil {
		writeError(w, errors.Internal(err))
		return
	}

	if h.bus != nil {
		event := events.NewEvent("auth.login", "identity", map[string]any{
			"account_id": account.ID,
		}).WithActor(account.ID, "account")
		h.bus.Publish(r.Context(), event)
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:        token,
		AccountID:    account.ID,
		Email:        account.Email,
		MetadataRole: account.MetadataRole,
	})
}

// VerifyUser is the lightweight login for drivers without an account.
// A matching name and department pair identifies the driver; no token
// is issued.
func (h *Handler) VerifyUser(w http.ResponseWriter, r *http.Request) {
	var req VerifyUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Department = strings.TrimSpace(req.Department)
	if req.Name == "" || req.Department == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name":       "name is required",
			"department": "department is required",
		}))
		return
	}

	verified, err := h.store.VerifyDriver(r.Context(), req.Name, req.Department)
	if err != nil {
		if errors.IsNotFound(err) {
			writeError(w, errors.Unauthorized("no driver matches this name and department"))
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verified)
}

// Departments lists department names for the signup form
func (h *Handler) Departments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.store.Departments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if departments == nil {
		departments = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": departments})
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
