package driver

import (
	"context"
	"strings"

	"github.com/Moosv/simplefleet/internal/authz"
	"github.com/Moosv/simplefleet/internal/shared/auth"
	"github.com/Moosv/simplefleet/internal/shared/errors"
	"github.com/Moosv/simplefleet/internal/shared/events"
	"github.com/Moosv/simplefleet/internal/shared/metrics"
	"github.com/Moosv/simplefleet/internal/shared/types"
)

// VehicleRegistry checks plates against the legacy motor-pool registry.
type VehicleRegistry interface {
	Exists(ctx context.Context, vehicleNumber string) (bool, error)
}

// Service applies access rules to roster mutations. Every mutation
// re-resolves the actor from the current rows, so a role change takes
// effect on the next request without a new token.
type Service struct {
	store    Store
	resolver authz.Resolver
	bus      events.EventBus
	vehicles VehicleRegistry

	roster *Watcher
}

// NewService creates a new driver service. vehicles is optional; without
// it vehicle numbers are accepted unchecked.
func NewService(store Store, resolver authz.Resolver, bus events.EventBus, vehicles VehicleRegistry) *Service {
	return &Service{store: store, resolver: resolver, bus: bus, vehicles: vehicles}
}

// UseRoster serves stats from the watcher's snapshot instead of
// re-aggregating on every request.
func (s *Service) UseRoster(w *Watcher) {
	s.roster = w
}

// ResolveActor derives the caller's authorization state from both role
// sources: the profile row and the session metadata.
func (s *Service) ResolveActor(ctx context.Context, session *auth.Session) (authz.Resolution, error) {
	profileRole := ""
	profile, err := s.store.GetByAccountID(ctx, session.AccountID)
	if err != nil && !errors.IsNotFound(err) {
		return authz.Resolution{}, err
	}
	if profile != nil {
		profileRole = string(profile.Role)
	}

	return s.resolver.Resolve(session.Email, session.MetadataRole, profileRole), nil
}

// checkGate records the decision and converts a denial into an error.
// Denied mutations never reach the store.
func checkGate(action string, d authz.Decision) error {
	metrics.RecordAuthorizationDecision(action, d.Allowed)
	if !d.Allowed {
		return errors.Forbidden(d.Reason)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, session *auth.Session, eventType string, data map[string]any) {
	if s.bus == nil {
		return
	}
	event := events.NewEvent(eventType, "driver", data).WithActor(session.AccountID, "account")
	s.bus.Publish(ctx, event)
}

// List returns the roster, newest first
func (s *Service) List(ctx context.Context) ([]Driver, error) {
	return s.store.List(ctx)
}

// Get returns a single driver
func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.GetByID(ctx, id)
}

// Stats returns the projected roster view. With a watcher attached the
// snapshot it keeps warm is served; otherwise the roster is aggregated
// per request.
func (s *Service) Stats(ctx context.Context) (Roster, error) {
	if s.roster != nil {
		roster := s.roster.Snapshot()
		recordRosterSizes(roster)
		return roster, nil
	}

	drivers, err := s.store.List(ctx)
	if err != nil {
		return Roster{}, err
	}

	roster := BuildRoster(drivers)
	recordRosterSizes(roster)
	return roster, nil
}

func recordRosterSizes(roster Roster) {
	metrics.RecordRosterSize(string(authz.RoleUser), roster.Counts.Users)
	metrics.RecordRosterSize(string(authz.RolePendingAdmin), roster.Counts.PendingAdmins)
	metrics.RecordRosterSize(string(authz.RoleAdmin), roster.Counts.Admins)
	metrics.RecordRosterSize(string(authz.RoleMasterAdmin), roster.Counts.MasterAdmins)
}

// UpdateName changes a driver's display name
func (s *Service) UpdateName(ctx context.Context, session *auth.Session, driverID types.ID, name string) (*Driver, error) {
	actor, err := s.ResolveActor(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := checkGate("edit_name", authz.CanEditName(actor)); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.Validation("validation failed", map[string]string{
			"name": "name is required",
		})
	}

	if err := s.store.UpdateName(ctx, driverID, name); err != nil {
		return nil, err
	}
	metrics.RecordDriverMutation("name")

	s.publish(ctx, session, "driver.updated", map[string]any{
		"driver_id": driverID,
		"field":     "name",
	})

	return s.store.GetByID(ctx, driverID)
}

// UpdateDepartment assigns or clears a driver's department
func (s *Service) UpdateDepartment(ctx context.Context, session *auth.Session, driverID types.ID, department *string) (*Driver, error) {
	actor, err := s.ResolveActor(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := checkGate("edit_department", authz.CanEditDepartmentField(actor)); err != nil {
		return nil, err
	}

	if department != nil {
		trimmed := strings.TrimSpace(*department)
		if trimmed == "" {
			department = nil
		} else {
			department = &trimmed
		}
	}

	if err := s.store.UpdateDepartment(ctx, driverID, department); err != nil {
		return nil, err
	}
	metrics.RecordDriverMutation("department")

	s.publish(ctx, session, "driver.updated", map[string]any{
		"driver_id": driverID,
		"field":     "department",
	})

	return s.store.GetByID(ctx, driverID)
}

// UpdateVehicle changes a driver's primary vehicle number
func (s *Service) UpdateVehicle(ctx context.Context, session *auth.Session, driverID types.ID, vehicleNumber *string) (*Driver, error) {
	actor, err := s.ResolveActor(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := checkGate("edit_vehicle", authz.CanEditVehicle(actor)); err != nil {
		return nil, err
	}

	if s.vehicles != nil && vehicleNumber != nil && *vehicleNumber != "" {
		known, err := s.vehicles.Exists(ctx, *vehicleNumber)
		if err != nil {
			return nil, errors.Wrap(err, "vehicle registry lookup failed")
		}
		if !known {
			return nil, errors.Validation("validation failed", map[string]string{
				"vehicle_number": "not a registered fleet vehicle",
			})
		}
	}

	if err := s.store.UpdateVehicle(ctx, driverID, vehicleNumber); err != nil {
		return nil, err
	}
	metrics.RecordDriverMutation("vehicle")

	s.publish(ctx, session, "driver.updated", map[string]any{
		"driver_id": driverID,
		"field":     "vehicle",
	})

	return s.store.GetByID(ctx, driverID)
}

// UpdateRole changes a driver's role in two phases: the profile row
// first, then the metadata role on the linked account. A phase two
// failure is reported as a warning; the profile change is kept.
func (s *Service) UpdateRole(ctx context.Context, session *auth.Session, driverID types.ID, newRoleStr string) (*RoleUpdateResult, error) {
	newRole, ok := authz.ParseRole(newRoleStr)
	if !ok {
		return nil, errors.Validation("validation failed", map[string]string{
			"role": "role must be one of user, pending_admin, admin, master_admin",
		})
	}

	actor, err := s.ResolveActor(ctx, session)
	if err != nil {
		return nil, err
	}

	target, err := s.store.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	// Leaving the role unselected on a pending request approves it.
	if newRole == "" {
		if target.Role != authz.RolePendingAdmin {
			return nil, errors.Validation("validation failed", map[string]string{
				"role": "role is required",
			})
		}
		newRole = authz.RoleAdmin
	}

	if err := checkGate("edit_role", authz.CanEditRole(actor, target.Role, newRole)); err != nil {
		return nil, err
	}

	return s.applyRoleChange(ctx, session, target, newRole)
}

// Promote grants admin to a pending request
func (s *Service) Promote(ctx context.Context, session *auth.Session, driverID types.ID) (*RoleUpdateResult, error) {
	actor, err := s.ResolveActor(ctx, session)
	if err != nil {
		return nil, err
	}

	target, err := s.store.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if target.Role != authz.RolePendingAdmin {
		return nil, errors.Conflict("driver has no pending admin request")
	}

	if err := checkGate("promote", authz.CanPromote(actor)); err != nil {
		return nil, err
	}

	return s.applyRoleChange(ctx, session, target, authz.RoleAdmin)
}

func (s *Service) applyRoleChange(ctx context.Context, session *auth.Session, target *Driver, newRole authz.Role) (*RoleUpdateResult, error) {
	if err := s.store.UpdateRole(ctx, target.ID, string(newRole)); err != nil {
		return nil, err
	}
	metrics.RecordDriverMutation("role")

	result := &RoleUpdateResult{}
	if target.AccountID != nil {
		if err := s.store.UpdateAccountMetadataRole(ctx, *target.AccountID, string(newRole)); err != nil {
			// No rollback. The profile change stands and the caller is
			// told the two sources are now out of sync.
			partial := errors.Partial("role updated on the driver profile, but updating the account metadata failed", err)
			result.Warning = partial.Error()
		}
	}

	updated, err := s.store.GetByID(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	result.Driver = updated

	s.publish(ctx, session, "driver.role_changed", map[string]any{
		"driver_id": target.ID,
		"old_role":  target.Role,
		"new_role":  newRole,
		"partial":   result.Warning != "",
	})

	return result, nil
}

// Delete removes a driver, and the linked account when one exists
func (s *Service) Delete(ctx context.Context, session *auth.Session, driverID types.ID) error {
	actor, err := s.ResolveActor(ctx, session)
	if err != nil {
		return err
	}

	target, err := s.store.GetByID(ctx, driverID)
	if err != nil {
		return err
	}

	if err := checkGate("delete_driver", authz.CanDeleteDriver(actor, target.Role)); err != nil {
		return err
	}

	if err := s.store.DeleteCompletely(ctx, target); err != nil {
		return err
	}
	metrics.RecordDriverMutation("delete")

	s.publish(ctx, session, "driver.deleted", map[string]any{
		"driver_id": target.ID,
		"role":      target.Role,
	})

	return nil
}

// Departments returns the derived department list with member counts
func (s *Service) Departments(ctx context.Context) ([]DepartmentSummary, error) {
	drivers, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	roster := BuildRoster(drivers)
	if roster.Departments == nil {
		return []DepartmentSummary{}, nil
	}
	return roster.Departments, nil
}

// RenameDepartment moves every member of a department to a new name
func (s *Service) RenameDepartment(ctx context.Context, session *auth.Session, from, to string) (*BulkResult, error) {
	actor, err := s.ResolveActor(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := checkGate("rename_department", authz.CanRenameDepartment(actor)); err != nil {
		return nil, err
	}

	to = strings.TrimSpace(to)
	if to == "" {
		return nil, errors.Validation("validation failed", map[string]string{
			"new_name": "new department name is required",
		})
	}

	affected, err := s.store.RenameDepartment(ctx, from, to)
	if err != nil {
		return nil, err
	}
	metrics.RecordDriverMutation("rename_department")

	s.publish(ctx, session, "department.renamed", map[string]any{
		"from":     from,
		"to":       to,
		"affected": affected,
	})

	return &BulkResult{Department: to, Affected: affected}, nil
}

// DeleteDepartment detaches every member of a department. The drivers
// themselves are kept; only the grouping disappears.
func (s *Service) DeleteDepartment(ctx context.Context, session *auth.Session, name string) (*BulkResult, error) {
	actor, err := s.ResolveActor(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := checkGate("delete_department", authz.CanDeleteDepartment(actor)); err != nil {
		return nil, err
	}

	affected, err := s.store.ClearDepartment(ctx, name)
	if err != nil {
		return nil, err
	}
	metrics.RecordDriverMutation("delete_department")

	s.publish(ctx, session, "department.deleted", map[string]any{
		"department": name,
		"affected":   affected,
	})

	return &BulkResult{Department: name, Affected: affected}, nil
}
