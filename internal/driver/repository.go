package driver

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Moosv/simplefleet/internal/shared/errors"
	"github.com/Moosv/simplefleet/internal/shared/metrics"
	"github.com/Moosv/simplefleet/internal/shared/types"
)

// Repository provides database operations for the driver roster
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new driver repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const driverColumns = `id, account_id, name, email, department, role, primary_vehicle_number, created_at, updated_at`

func scanDriver(row pgx.Row) (*Driver, error) {
	d := &Driver{}
	err := row.Scan(
		&d.ID, &d.AccountID, &d.Name, &d.Email, &d.Department,
		&d.Role, &d.PrimaryVehicleNumber, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetByID retrieves a driver by ID
func (r *Repository) GetByID(ctx context.Context, id types.ID) (*Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM fleet.drivers WHERE id = $1`

	d, err := scanDriver(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("driver", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get driver")
	}

	return d, nil
}

// GetByAccountID retrieves the driver profile linked to an account
func (r *Repository) GetByAccountID(ctx context.Context, accountID types.ID) (*Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM fleet.drivers WHERE account_id = $1`

	d, err := scanDriver(r.pool.QueryRow(ctx, query, accountID))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("driver", accountID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get driver by account")
	}

	return d, nil
}

// List returns the full roster, newest first
func (r *Repository) List(ctx context.Context) ([]Driver, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_drivers", time.Since(start)) }()

	query := `SELECT ` + driverColumns + ` FROM fleet.drivers ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list drivers")
	}
	defer rows.Close()

	var drivers []Driver
	for rows.Next() {
		var d Driver
		err := rows.Scan(
			&d.ID, &d.AccountID, &d.Name, &d.Email, &d.Department,
			&d.Role, &d.PrimaryVehicleNumber, &d.CreatedAt, &d.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan driver")
		}
		drivers = append(drivers, d)
	}

	return drivers, nil
}

func (r *Repository) updateField(ctx context.Context, id types.ID, column string, value any) error {
	query := `UPDATE fleet.drivers SET ` + column + ` = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, value)
	if err != nil {
		return errors.Wrap(err, "failed to update driver "+column)
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("driver", id.String())
	}

	return nil
}

// UpdateName updates a driver's name
func (r *Repository) UpdateName(ctx context.Context, id types.ID, name string) error {
	return r.updateField(ctx, id, "name", name)
}

// UpdateDepartment assigns or clears a driver's department
func (r *Repository) UpdateDepartment(ctx context.Context, id types.ID, department *string) error {
	return r.updateField(ctx, id, "department", department)
}

// UpdateVehicle updates a driver's primary vehicle number
func (r *Repository) UpdateVehicle(ctx context.Context, id types.ID, vehicleNumber *string) error {
	return r.updateField(ctx, id, "primary_vehicle_number", vehicleNumber)
}

// UpdateRole updates the profile role on the driver row
func (r *Repository) UpdateRole(ctx context.Context, id types.ID, role string) error {
	return r.updateField(ctx, id, "role", role)
}

// UpdateAccountMetadataRole updates the metadata role on the account row
func (r *Repository) UpdateAccountMetadataRole(ctx context.Context, accountID types.ID, role string) error {
	query := `UPDATE fleet.accounts SET metadata_role = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, accountID, role)
	if err != nil {
		return errors.Wrap(err, "failed to update account metadata role")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("account", accountID.String())
	}

	return nil
}

// DeleteCompletely removes a driver and its linked account, if any
func (r *Repository) DeleteCompletely(ctx context.Context, d *Driver) error {
	if d.AccountID != nil {
		_, err := r.pool.Exec(ctx, `SELECT fleet.delete_driver_completely($1)`, *d.AccountID)
		if err != nil {
			return errors.Wrap(err, "failed to delete driver and account")
		}
		return nil
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM fleet.drivers WHERE id = $1`, d.ID)
	if err != nil {
		return errors.Wrap(err, "failed to delete driver")
	}
	if result.RowsAffected() == 0 {
		return errors.NotFound("driver", d.ID.String())
	}

	return nil
}

// RenameDepartment moves every member of a department to a new name
func (r *Repository) RenameDepartment(ctx context.Context, from, to string) (int64, error) {
	query := `UPDATE fleet.drivers SET department = $2, updated_at = NOW() WHERE department = $1`

	result, err := r.pool.Exec(ctx, query, from, to)
	if err != nil {
		return 0, errors.Wrap(err, "failed to rename department")
	}

	return result.RowsAffected(), nil
}

// ClearDepartment detaches every member of a department
func (r *Repository) ClearDepartment(ctx context.Context, name string) (int64, error) {
	query := `UPDATE fleet.drivers SET department = NULL, updated_at = NOW() WHERE department = $1`

	result, err := r.pool.Exec(ctx, query, name)
	if err != nil {
		return 0, errors.Wrap(err, "failed to clear department")
	}

	return result.RowsAffected(), nil
}
