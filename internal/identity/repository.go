package identity

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Moosv/simplefleet/internal/shared/errors"
	"github.com/Moosv/simplefleet/internal/shared/types"
)

// Repository provides database operations for accounts
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new identity repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateSignup creates the account, its driver profile and, when admin
// access was requested, the pending request, all in one transaction.
func (r *Repository) CreateSignup(ctx context.Context, account *Account, driverName, department, role string, requestAdmin bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO fleet.accounts (id, email, password_hash, metadata_role)
		VALUES ($1, $2, $3, NULLIF($4, ''))`,
		account.ID, account.Email, account.PasswordHash, account.MetadataRole,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("account with this email already exists")
		}
		return errors.Wrap(err, "failed to create account")
	}

	var dept *string
	if d := strings.TrimSpace(department); d != "" {
		dept = &d
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO fleet.drivers (id, account_id, name, email, department, role)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		types.NewID(), account.ID, driverName, account.Email, dept, role,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create driver profile")
	}

	if requestAdmin {
		_, err = tx.Exec(ctx, `
			INSERT INTO fleet.admin_requests (id, account_id, name, email, department)
			VALUES ($1, $2, $3, $4, $5)`,
			types.NewID(), account.ID, driverName, account.Email, dept,
		)
		if err != nil {
			return errors.Wrap(err, "failed to record admin request")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// GetAccountByEmail retrieves an account by email
func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	query := `
		SELECT id, email, password_hash, COALESCE(metadata_role, ''), created_at, updated_at
		FROM fleet.accounts
		WHERE email = $1`

	account := &Account{}
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&account.ID, &account.Email, &account.PasswordHash,
		&account.MetadataRole, &account.CreatedAt, &account.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("account", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get account")
	}

	return account, nil
}

// VerifyDriver finds the driver matching a name and department pair
func (r *Repository) VerifyDriver(ctx context.Context, name, department string) (*VerifiedDriver, error) {
	query := `
		SELECT id, name, department, role
		FROM fleet.drivers
		WHERE name = $1 AND department = $2
		ORDER BY created_at
		LIMIT 1`

	v := &VerifiedDriver{}
	err := r.pool.QueryRow(ctx, query, name, department).Scan(
		&v.DriverID, &v.Name, &v.Department, &v.Role,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("driver", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify driver")
	}

	return v, nil
}

// Departments lists department names for the signup form
func (r *Repository) Departments(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT department FROM fleet.drivers
		WHERE department IS NOT NULL AND department <> ''
		ORDER BY department`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list departments")
	}
	defer rows.Close()

	var departments []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "failed to scan department")
		}
		departments = append(departments, name)
	}

	return departments, nil
}
