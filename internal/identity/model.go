package identity

import (
	"time"

	"github.com/Moosv/simplefleet/internal/shared/types"
)

// Account is a login account. MetadataRole is the session-side role
// source carried into the JWT at login.
type Account struct {
	ID           types.ID  `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	MetadataRole string    `json:"metadata_role,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AdminRequest records a signup that asked for admin access. It stays
// pending until an administrator promotes the driver.
type AdminRequest struct {
	ID         types.ID  `json:"id"`
	AccountID  types.ID  `json:"account_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department *string   `json:"department,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// --- Requests ---

type SignupRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	Department   string `json:"department"`
	RequestAdmin bool   `json:"request_admin"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyUserRequest is the lightweight login path for drivers without
// an account: a name and department pair identifies them.
type VerifyUserRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
}

// --- Responses ---

type LoginResponse struct {
	Token        string   `json:"token"`
	AccountID    types.ID `json:"account_id"`
	Email        string   `json:"email"`
	MetadataRole string   `json:"metadata_role,omitempty"`
}

type VerifiedDriver struct {
	DriverID   types.ID `json:"driver_id"`
	Name       string   `json:"name"`
	Department *string  `json:"department,omitempty"`
	Role       string   `json:"role"`
}
