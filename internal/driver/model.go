package driver

import (
	"time"

	"github.com/Moosv/simplefleet/internal/authz"
	"github.com/Moosv/simplefleet/internal/shared/types"
)

// Driver is one row of the roster. AccountID is nil for people
// registered through the name+department path without a login account.
type Driver struct {
	ID                   types.ID   `json:"id"`
	AccountID            *types.ID  `json:"account_id,omitempty"`
	Name                 string     `json:"name"`
	Email                *string    `json:"email,omitempty"`
	Department           *string    `json:"department,omitempty"`
	Role                 authz.Role `json:"role"`
	PrimaryVehicleNumber *string    `json:"primary_vehicle_number,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// --- Requests ---

type UpdateNameRequest struct {
	Name string `json:"name"`
}

// UpdateDepartmentRequest assigns or clears a driver's department.
// A null department detaches the driver from every department.
type UpdateDepartmentRequest struct {
	Department *string `json:"department"`
}

type UpdateVehicleRequest struct {
	VehicleNumber *string `json:"vehicle_number"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

type RenameDepartmentRequest struct {
	NewName string `json:"new_name"`
}

// --- Projections ---

// RoleCounts buckets the roster by profile role.
type RoleCounts struct {
	Users         int `json:"users"`
	PendingAdmins int `json:"pending_admins"`
	Admins        int `json:"admins"`
	MasterAdmins  int `json:"master_admins"`
}

// DepartmentSummary is one entry of the derived department list.
type DepartmentSummary struct {
	Name        string `json:"name"`
	DriverCount int    `json:"driver_count"`
}

// Roster is the aggregate view served by the stats endpoint.
type Roster struct {
	Total       int                 `json:"total"`
	Counts      RoleCounts          `json:"counts"`
	Departments []DepartmentSummary `json:"departments"`
	Unassigned  int                 `json:"unassigned"`
}

// RoleUpdateResult reports the outcome of a two-phase role change.
// Warning is set when the profile row was updated but the account
// metadata write failed.
type RoleUpdateResult struct {
	Driver  *Driver `json:"driver"`
	Warning string  `json:"warning,omitempty"`
}

// BulkResult reports how many rows a department operation touched.
type BulkResult struct {
	Department string `json:"department"`
	Affected   int64  `json:"affected"`
}
