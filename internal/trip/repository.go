package trip

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Moosv/simplefleet/internal/shared/errors"
	"github.com/Moosv/simplefleet/internal/shared/metrics"
	"github.com/Moosv/simplefleet/internal/shared/types"
)

// Repository provides database operations for driving records
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new trip repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Dates and times travel as text on both sides; the casts keep the
// columns typed while the Go model stays plain strings.
const tripColumns = `
	id, account_id, start_date::text, start_time::text, end_date::text, end_time::text,
	vehicle_number, department, driver_name, purpose, destination, waypoint,
	cumulative_distance, fuel_amount, created_at, updated_at`

func scanTrip(row pgx.Row) (*Trip, error) {
	t := &Trip{}
	err := row.Scan(
		&t.ID, &t.AccountID, &t.StartDate, &t.StartTime, &t.EndDate, &t.EndTime,
		&t.VehicleNumber, &t.Department, &t.DriverName, &t.Purpose, &t.Destination, &t.Waypoint,
		&t.CumulativeDistance, &t.FuelAmount, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a driving record
func (r *Repository) Create(ctx context.Context, t *Trip) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_trip", time.Since(start)) }()

	query := `
		INSERT INTO fleet.driving_records (
			id, account_id, start_date, start_time, end_date, end_time,
			vehicle_number, department, driver_name, purpose, destination, waypoint,
			cumulative_distance, fuel_amount
		) VALUES (
			$1, $2, $3::date, $4::time, $5::date, $6::time,
			$7, $8, $9, $10, $11, $12, $13, $14
		)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.AccountID, t.StartDate, t.StartTime, t.EndDate, t.EndTime,
		t.VehicleNumber, t.Department, t.DriverName, t.Purpose, t.Destination, t.Waypoint,
		t.CumulativeDistance, t.FuelAmount,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create trip")
	}

	return nil
}

// Get retrieves a driving record by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM fleet.driving_records WHERE id = $1`

	t, err := scanTrip(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("trip", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get trip")
	}

	return t, nil
}

// List returns driving records matching the filter, newest first
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Trip, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", argNum))
		args = append(args, filter.Department)
		argNum++
	}

	if filter.VehicleNumber != "" {
		conditions = append(conditions, fmt.Sprintf("vehicle_number = $%d", argNum))
		args = append(args, filter.VehicleNumber)
		argNum++
	}

	if filter.From != "" {
		conditions = append(conditions, fmt.Sprintf("start_date >= $%d::date", argNum))
		args = append(args, filter.From)
		argNum++
	}

	if filter.To != "" {
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d::date", argNum))
		args = append(args, filter.To)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM fleet.driving_records %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count trips")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 200 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM fleet.driving_records
		%s
		ORDER BY start_date DESC, created_at DESC
		LIMIT $%d OFFSET $%d`, tripColumns, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list trips")
	}
	defer rows.Close()

	var trips []Trip
	for rows.Next() {
		var t Trip
		err := rows.Scan(
			&t.ID, &t.AccountID, &t.StartDate, &t.StartTime, &t.EndDate, &t.EndTime,
			&t.VehicleNumber, &t.Department, &t.DriverName, &t.Purpose, &t.Destination, &t.Waypoint,
			&t.CumulativeDistance, &t.FuelAmount, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan trip")
		}
		trips = append(trips, t)
	}

	return trips, total, nil
}

// Update rewrites a driving record
func (r *Repository) Update(ctx context.Context, t *Trip) error {
	query := `
		UPDATE fleet.driving_records SET
			start_date = $2::date, start_time = $3::time,
			end_date = $4::date, end_time = $5::time,
			vehicle_number = $6, department = $7, driver_name = $8,
			purpose = $9, destination = $10, waypoint = $11,
			cumulative_distance = $12, fuel_amount = $13,
			updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query,
		t.ID, t.StartDate, t.StartTime, t.EndDate, t.EndTime,
		t.VehicleNumber, t.Department, t.DriverName,
		t.Purpose, t.Destination, t.Waypoint,
		t.CumulativeDistance, t.FuelAmount,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update trip")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("trip", t.ID.String())
	}

	return nil
}

// Delete removes a driving record
func (r *Repository) Delete(ctx context.Context, id types.ID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM fleet.driving_records WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete trip")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("trip", id.String())
	}

	return nil
}
