package trip

import (
	"context"

	"github.com/Moosv/simplefleet/internal/shared/types"
)

// Store abstracts trip persistence for the handlers.
type Store interface {
	Create(ctx context.Context, t *Trip) error
	Get(ctx context.Context, id types.ID) (*Trip, error)
	List(ctx context.Context, filter ListFilter) ([]Trip, int, error)
	Update(ctx context.Context, t *Trip) error
	Delete(ctx context.Context, id types.ID) error
}

var _ Store = (*Repository)(nil)
