package identity

import "context"

// Store abstracts account persistence for the handlers.
type Store interface {
	CreateSignup(ctx context.Context, account *Account, driverName, department, role string, requestAdmin bool) error
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	VerifyDriver(ctx context.Context, name, department string) (*VerifiedDriver, error)
	Departments(ctx context.Context) ([]string, error)
}

var _ Store = (*Repository)(nil)
