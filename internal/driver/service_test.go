package driver

import (
	"context"
	"fmt"
	"testing"

	"github.com/Moosv/simplefleet/internal/authz"
	"github.com/Moosv/simplefleet/internal/shared/auth"
	"github.com/Moosv/simplefleet/internal/shared/errors"
	"github.com/Moosv/simplefleet/internal/shared/types"
)

type fakeStore struct {
	drivers map[types.ID]*Driver

	mutations    []string
	failMetadata bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{drivers: make(map[types.ID]*Driver)}
}

func (f *fakeStore) add(role authz.Role, withAccount bool) *Driver {
	d := &Driver{
		ID:   types.NewID(),
		Name: fmt.Sprintf("driver-%s", role),
		Role: role,
	}
	if withAccount {
		accountID := types.NewID()
		d.AccountID = &accountID
	}
	f.drivers[d.ID] = d
	return d
}

func (f *fakeStore) GetByID(ctx context.Context, id types.ID) (*Driver, error) {
	if d, ok := f.drivers[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, errors.NotFound("driver", id.String())
}

func (f *fakeStore) GetByAccountID(ctx context.Context, accountID types.ID) (*Driver, error) {
	for _, d := range f.drivers {
		if d.AccountID != nil && *d.AccountID == accountID {
			copied := *d
			return &copied, nil
		}
	}
	return nil, errors.NotFound("driver", accountID.String())
}

func (f *fakeStore) List(ctx context.Context) ([]Driver, error) {
	var out []Driver
	for _, d := range f.drivers {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeStore) UpdateName(ctx context.Context, id types.ID, name string) error {
	f.mutations = append(f.mutations, "update_name")
	d, ok := f.drivers[id]
	if !ok {
		return errors.NotFound("driver", id.String())
	}
	d.Name = name
	return nil
}

func (f *fakeStore) UpdateDepartment(ctx context.Context, id types.ID, department *string) error {
	f.mutations = append(f.mutations, "update_department")
	d, ok := f.drivers[id]
	if !ok {
		return errors.NotFound("driver", id.String())
	}
	d.Department = department
	return nil
}

func (f *fakeStore) UpdateVehicle(ctx context.Context, id types.ID, vehicleNumber *string) error {
	f.mutations = append(f.mutations, "update_vehicle")
	d, ok := f.drivers[id]
	if !ok {
		return errors.NotFound("driver", id.String())
	}
	d.PrimaryVehicleNumber = vehicleNumber
	return nil
}

func (f *fakeStore) UpdateRole(ctx context.Context, id types.ID, role string) error {
	f.mutations = append(f.mutations, "update_role")
	d, ok := f.drivers[id]
	if !ok {
		return errors.NotFound("driver", id.String())
	}
	d.Role = authz.Role(role)
	return nil
}

func (f *fakeStore) UpdateAccountMetadataRole(ctx context.Context, accountID types.ID, role string) error {
	f.mutations = append(f.mutations, "update_metadata_role")
	if f.failMetadata {
		return errors.Wrap(fmt.Errorf("connection reset"), "failed to update account metadata role")
	}
	return nil
}

func (f *fakeStore) DeleteCompletely(ctx context.Context, d *Driver) error {
	f.mutations = append(f.mutations, "delete")
	delete(f.drivers, d.ID)
	return nil
}

func (f *fakeStore) RenameDepartment(ctx context.Context, from, to string) (int64, error) {
	f.mutations = append(f.mutations, "rename_department")
	var n int64
	for _, d := range f.drivers {
		if d.Department != nil && *d.Department == from {
			renamed := to
			d.Department = &renamed
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ClearDepartment(ctx context.Context, name string) (int64, error) {
	f.mutations = append(f.mutations, "clear_department")
	var n int64
	for _, d := range f.drivers {
		if d.Department != nil && *d.Department == name {
			d.Department = nil
			n++
		}
	}
	return n, nil
}

var _ Store = (*fakeStore)(nil)

const testMasterEmail = "master@korea.kr"

func newTestService(store *fakeStore) *Service {
	return NewService(store, authz.Resolver{MasterEmail: testMasterEmail}, nil, nil)
}

// fakeRegistry stands in for the legacy vehicle registry.
type fakeRegistry struct {
	known map[string]bool
	err   error
}

func (f *fakeRegistry) Exists(ctx context.Context, vehicleNumber string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[vehicleNumber], nil
}

// sessionFor registers an actor profile in the store and returns a
// matching session.
func sessionFor(store *fakeStore, role authz.Role) *auth.Session {
	actor := store.add(role, true)
	return &auth.Session{
		AccountID: *actor.AccountID,
		Email:     fmt.Sprintf("%s@korea.kr", role),
	}
}

func TestDeniedMutationNeverReachesStore(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleUser)
	target := store.add(authz.RoleUser, false)

	_, err := svc.UpdateName(context.Background(), session, target.ID, "New Name")
	if err == nil {
		t.Fatal("Expected denial")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.HTTPStatus != 403 {
		t.Fatalf("Expected 403 AppError, got %v", err)
	}
	if len(store.mutations) != 0 {
		t.Errorf("Denied mutation must not touch the store, saw %v", store.mutations)
	}
}

func TestDeleteMatrixThroughService(t *testing.T) {
	tests := []struct {
		actor   authz.Role
		target  authz.Role
		allowed bool
	}{
		{authz.RoleUser, authz.RoleUser, false},
		{authz.RolePendingAdmin, authz.RoleUser, false},
		{authz.RoleAdmin, authz.RoleUser, true},
		{authz.RoleAdmin, authz.RolePendingAdmin, true},
		{authz.RoleAdmin, authz.RoleAdmin, false},
		{authz.RoleAdmin, authz.RoleMasterAdmin, false},
		{authz.RoleMasterAdmin, authz.RoleAdmin, true},
		{authz.RoleMasterAdmin, authz.RoleMasterAdmin, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_deletes_%s", tt.actor, tt.target), func(t *testing.T) {
			store := newFakeStore()
			svc := newTestService(store)

			session := sessionFor(store, tt.actor)
			target := store.add(tt.target, true)

			err := svc.Delete(context.Background(), session, target.ID)
			if tt.allowed {
				if err != nil {
					t.Fatalf("Expected success, got %v", err)
				}
				if _, exists := store.drivers[target.ID]; exists {
					t.Error("Target should be gone")
				}
			} else {
				if err == nil {
					t.Fatal("Expected denial")
				}
				if len(store.mutations) != 0 {
					t.Errorf("Denied delete must not touch the store, saw %v", store.mutations)
				}
				if _, exists := store.drivers[target.ID]; !exists {
					t.Error("Target should survive a denied delete")
				}
			}
		})
	}
}

func TestUpdateRolePartialSuccess(t *testing.T) {
	store := newFakeStore()
	store.failMetadata = true
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleMasterAdmin)
	target := store.add(authz.RoleUser, true)

	result, err := svc.UpdateRole(context.Background(), session, target.ID, "admin")
	if err != nil {
		t.Fatalf("Partial success must not be an error, got %v", err)
	}
	if result.Warning == "" {
		t.Error("Expected a warning about the failed metadata write")
	}
	if result.Driver.Role != authz.RoleAdmin {
		t.Errorf("Profile role should be updated despite the warning, got %s", result.Driver.Role)
	}
}

func TestUpdateRoleFullSuccessHasNoWarning(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleMasterAdmin)
	target := store.add(authz.RoleUser, true)

	result, err := svc.UpdateRole(context.Background(), session, target.ID, "admin")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result.Warning != "" {
		t.Errorf("Unexpected warning: %s", result.Warning)
	}
}

func TestUpdateRoleSkipsMetadataForAccountlessDriver(t *testing.T) {
	store := newFakeStore()
	store.failMetadata = true
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleMasterAdmin)
	target := store.add(authz.RoleUser, false)

	result, err := svc.UpdateRole(context.Background(), session, target.ID, "admin")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result.Warning != "" {
		t.Error("Driver without an account has no metadata phase, no warning expected")
	}
	for _, m := range store.mutations {
		if m == "update_metadata_role" {
			t.Error("Metadata phase should be skipped without a linked account")
		}
	}
}

func TestUpdateRoleRejectsUnknownRole(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleMasterAdmin)
	target := store.add(authz.RoleUser, true)

	if _, err := svc.UpdateRole(context.Background(), session, target.ID, "superuser"); err == nil {
		t.Fatal("Expected validation error")
	}
	if len(store.mutations) != 0 {
		t.Errorf("Invalid role must not touch the store, saw %v", store.mutations)
	}
}

func TestUpdateRoleEmptySelectionApprovesPending(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleMasterAdmin)
	target := store.add(authz.RolePendingAdmin, true)

	result, err := svc.UpdateRole(context.Background(), session, target.ID, "")
	if err != nil {
		t.Fatalf("Empty selection on a pending request should promote, got %v", err)
	}
	if result.Driver.Role != authz.RoleAdmin {
		t.Errorf("Expected admin after approval, got %s", result.Driver.Role)
	}
}

func TestUpdateRoleEmptySelectionRejectsNonPending(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleMasterAdmin)
	target := store.add(authz.RoleUser, true)

	if _, err := svc.UpdateRole(context.Background(), session, target.ID, ""); err == nil {
		t.Fatal("Empty selection without a pending request must be rejected")
	}
	if len(store.mutations) != 0 {
		t.Errorf("Rejected role update must not touch the store, saw %v", store.mutations)
	}
}

func TestUpdateVehicleRejectsUnregisteredPlate(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	svc.vehicles = &fakeRegistry{known: map[string]bool{"12가3456": true}}

	session := sessionFor(store, authz.RoleAdmin)
	target := store.add(authz.RoleUser, false)

	plate := "99허0000"
	_, err := svc.UpdateVehicle(context.Background(), session, target.ID, &plate)
	if err == nil {
		t.Fatal("Expected validation error for an unregistered plate")
	}
	if len(store.mutations) != 0 {
		t.Errorf("Rejected plate must not touch the store, saw %v", store.mutations)
	}

	registered := "12가3456"
	if _, err := svc.UpdateVehicle(context.Background(), session, target.ID, &registered); err != nil {
		t.Fatalf("Registered plate should be accepted, got %v", err)
	}
}

func TestUpdateVehicleWithoutRegistryAcceptsAnyPlate(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleAdmin)
	target := store.add(authz.RoleUser, false)

	plate := "99허0000"
	if _, err := svc.UpdateVehicle(context.Background(), session, target.ID, &plate); err != nil {
		t.Fatalf("Without a registry any plate is accepted, got %v", err)
	}
}

func TestStatsServedFromWatcherSnapshot(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	store.add(authz.RoleUser, false)

	watcher := NewWatcher(store, nil)
	if err := watcher.reload(context.Background()); err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	svc.UseRoster(watcher)

	// A write the watcher has not seen yet stays invisible.
	store.add(authz.RoleUser, false)

	roster, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if roster.Total != 1 {
		t.Errorf("Stats should serve the snapshot, got total %d", roster.Total)
	}

	if err := watcher.reload(context.Background()); err != nil {
		t.Fatalf("Failed to reload snapshot: %v", err)
	}
	roster, err = svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if roster.Total != 2 {
		t.Errorf("Reload should refresh the served snapshot, got total %d", roster.Total)
	}
}

func TestAdminCannotEditMasterRole(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleAdmin)
	target := store.add(authz.RoleMasterAdmin, true)

	_, err := svc.UpdateRole(context.Background(), session, target.ID, "user")
	if err == nil {
		t.Fatal("Expected denial")
	}
	if len(store.mutations) != 0 {
		t.Errorf("Denied role edit must not touch the store, saw %v", store.mutations)
	}
}

func TestPromote(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleAdmin)
	target := store.add(authz.RolePendingAdmin, true)

	result, err := svc.Promote(context.Background(), session, target.ID)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result.Driver.Role != authz.RoleAdmin {
		t.Errorf("Promotion should grant admin, got %s", result.Driver.Role)
	}
}

func TestPromoteRejectsNonPending(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleAdmin)
	target := store.add(authz.RoleUser, true)

	if _, err := svc.Promote(context.Background(), session, target.ID); err == nil {
		t.Fatal("Expected conflict for a driver without a pending request")
	}
	if len(store.mutations) != 0 {
		t.Errorf("Rejected promotion must not touch the store, saw %v", store.mutations)
	}
}

func TestRenameDepartmentRejectsEmptyName(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleAdmin)

	if _, err := svc.RenameDepartment(context.Background(), session, "Motor Pool", "   "); err == nil {
		t.Fatal("Expected validation error for blank name")
	}
	if len(store.mutations) != 0 {
		t.Errorf("Rejected rename must not touch the store, saw %v", store.mutations)
	}
}

func TestRenameDepartmentMovesAllMembers(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleAdmin)
	dept := "Motor Pool"
	for i := 0; i < 3; i++ {
		d := store.add(authz.RoleUser, false)
		name := dept
		d.Department = &name
	}

	result, err := svc.RenameDepartment(context.Background(), session, dept, "Transport")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result.Affected != 3 {
		t.Errorf("Expected 3 rows affected, got %d", result.Affected)
	}
}

func TestDeleteDepartmentRequiresMaster(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	admin := sessionFor(store, authz.RoleAdmin)
	if _, err := svc.DeleteDepartment(context.Background(), admin, "Motor Pool"); err == nil {
		t.Fatal("Plain admin must not delete a department")
	}
	if len(store.mutations) != 0 {
		t.Errorf("Denied delete must not touch the store, saw %v", store.mutations)
	}

	master := sessionFor(store, authz.RoleMasterAdmin)
	dept := "Motor Pool"
	member := store.add(authz.RoleUser, false)
	member.Department = &dept

	result, err := svc.DeleteDepartment(context.Background(), master, dept)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result.Affected != 1 {
		t.Errorf("Expected 1 row affected, got %d", result.Affected)
	}
	if member.Department != nil {
		t.Error("Member should be detached, not deleted")
	}
	if _, exists := store.drivers[member.ID]; !exists {
		t.Error("Deleting a department must keep its drivers")
	}
}

func TestResolveActorUsesFreshProfileRole(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	session := sessionFor(store, authz.RoleUser)
	target := store.add(authz.RoleUser, false)

	// Denied while the profile says user.
	if _, err := svc.UpdateDepartment(context.Background(), session, target.ID, nil); err == nil {
		t.Fatal("Expected denial for a plain user")
	}

	// Promote the actor's row directly. The stale session token still
	// carries no metadata role; the next request must see the new
	// profile role.
	for _, d := range store.drivers {
		if d.AccountID != nil && *d.AccountID == session.AccountID {
			d.Role = authz.RoleAdmin
		}
	}

	if _, err := svc.UpdateDepartment(context.Background(), session, target.ID, nil); err != nil {
		t.Fatalf("Expected fresh resolution to allow the edit, got %v", err)
	}
}

func TestMasterEmailBreakGlass(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	// The break-glass account has a plain user profile.
	actor := store.add(authz.RoleUser, true)
	session := &auth.Session{AccountID: *actor.AccountID, Email: testMasterEmail}

	target := store.add(authz.RoleMasterAdmin, true)
	if err := svc.Delete(context.Background(), session, target.ID); err != nil {
		t.Fatalf("Break-glass account should act as master, got %v", err)
	}
}
