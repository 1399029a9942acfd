package registry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver

	"github.com/Moosv/simplefleet/internal/shared/config"
)

// Vehicle is a record from the legacy registry the office keeps on an
// old SQL Server instance. SimpleFleet reads it, never writes it.
type Vehicle struct {
	VehicleNumber  string     `json:"vehicle_number"`
	Model          string     `json:"model"`
	Department     string     `json:"department,omitempty"`
	Status         string     `json:"status"`
	LastInspection *time.Time `json:"last_inspection,omitempty"`
}

// Adapter reads the legacy vehicle registry
type Adapter struct {
	db     *sql.DB
	config config.RegistryConfig

	running bool
	mu      sync.RWMutex
}

// New creates a new registry adapter
func New(cfg config.RegistryConfig) *Adapter {
	return &Adapter{config: cfg}
}

// Start opens the database connection
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		a.config.Host,
		a.config.Port,
		a.config.Database,
		a.config.User,
		a.config.Password,
	)

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open registry database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping registry database: %w", err)
	}

	a.db = db
	a.running = true
	return nil
}

// Stop closes the connection
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	a.running = false
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Health checks registry connectivity
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("registry adapter not running")
	}
	return a.db.PingContext(ctx)
}

// IsConnected returns connection status
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running && a.db != nil
}

// Exists reports whether a plate number is in the registry
func (a *Adapter) Exists(ctx context.Context, vehicleNumber string) (bool, error) {
	if !a.IsConnected() {
		return false, fmt.Errorf("registry adapter not connected")
	}

	query := fmt.Sprintf(`
		SELECT COUNT(1)
		FROM %s
		WHERE VehicleNumber = @number
	`, a.config.VehicleTable)

	var n int
	if err := a.db.QueryRowContext(ctx, query, sql.Named("number", vehicleNumber)).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check vehicle: %w", err)
	}
	return n > 0, nil
}

// Lookup retrieves a vehicle by its plate number
func (a *Adapter) Lookup(ctx context.Context, vehicleNumber string) (*Vehicle, error) {
	if !a.IsConnected() {
		return nil, fmt.Errorf("registry adapter not connected")
	}

	query := fmt.Sprintf(`
		SELECT VehicleNumber, Model, Department, Status, LastInspection
		FROM %s
		WHERE VehicleNumber = @number
	`, a.config.VehicleTable)

	row := a.db.QueryRowContext(ctx, query, sql.Named("number", vehicleNumber))

	var v Vehicle
	var department sql.NullString
	var lastInspection sql.NullTime

	err := row.Scan(&v.VehicleNumber, &v.Model, &department, &v.Status, &lastInspection)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("vehicle not found: %s", vehicleNumber)
		}
		return nil, fmt.Errorf("failed to fetch vehicle: %w", err)
	}

	if department.Valid {
		v.Department = department.String
	}
	if lastInspection.Valid {
		v.LastInspection = &lastInspection.Time
	}

	return &v, nil
}

// ListByDepartment retrieves vehicles assigned to a department
func (a *Adapter) ListByDepartment(ctx context.Context, department string) ([]Vehicle, error) {
	if !a.IsConnected() {
		return nil, fmt.Errorf("registry adapter not connected")
	}

	query := fmt.Sprintf(`
		SELECT VehicleNumber, Model, Department, Status, LastInspection
		FROM %s
		WHERE Department = @department
		ORDER BY VehicleNumber
	`, a.config.VehicleTable)

	rows, err := a.db.QueryContext(ctx, query, sql.Named("department", department))
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		var v Vehicle
		var dept sql.NullString
		var lastInspection sql.NullTime

		if err := rows.Scan(&v.VehicleNumber, &v.Model, &dept, &v.Status, &lastInspection); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		if dept.Valid {
			v.Department = dept.String
		}
		if lastInspection.Valid {
			v.LastInspection = &lastInspection.Time
		}

		vehicles = append(vehicles, v)
	}

	return vehicles, nil
}
