package shopconfig

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a shop has no configuration yet.
	ErrNotFound = errors.New("shopconfig: configuration not found")
	// ErrDuplicateShop is returned by Insert when a record for the shop already exists.
	ErrDuplicateShop = errors.New("shopconfig: configuration already exists for shop")
)

// Store is the persistence contract. Backends must enforce uniqueness of
// Shop so that a second Insert for the same shop fails with ErrDuplicateShop.
type Store interface {
	Find(ctx context.Context, shop string) (Configuration, error)
	Insert(ctx context.Context, cfg Configuration) (Configuration, error)
	// Update changes the unit and price of an existing record in place.
	Update(ctx context.Context, cfg Configuration) (Configuration, error)
}
