package driver

import (
	"context"

	"github.com/Moosv/simplefleet/internal/shared/types"
)

// Store abstracts roster persistence so the service layer can be
// tested without a database.
type Store interface {
	GetByID(ctx context.Context, id types.ID) (*Driver, error)
	GetByAccountID(ctx context.Context, accountID types.ID) (*Driver, error)
	List(ctx context.Context) ([]Driver, error)

	UpdateName(ctx context.Context, id types.ID, name string) error
	UpdateDepartment(ctx context.Context, id types.ID, department *string) error
	UpdateVehicle(ctx context.Context, id types.ID, vehicleNumber *string) error
	UpdateRole(ctx context.Context, id types.ID, role string) error

	// UpdateAccountMetadataRole is phase two of a role change. It
	// writes the session-metadata role source on the linked account.
	UpdateAccountMetadataRole(ctx context.Context, accountID types.ID, role string) error

	// DeleteCompletely removes the driver row and, when an account is
	// linked, the account row in the same transaction.
	DeleteCompletely(ctx context.Context, d *Driver) error

	RenameDepartment(ctx context.Context, from, to string) (int64, error)
	ClearDepartment(ctx context.Context, name string) (int64, error)
}

var _ Store = (*Repository)(nil)
