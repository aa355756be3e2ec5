// Package catalog holds the purchasable item records. Items are managed by
// back-office tooling; the checkout flow only reads them.
package catalog

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/stripeshop/internal/domain/money"
)

// ErrNotFound is returned when a requested item does not exist.
var ErrNotFound = errors.New("item not found")

// Item is a catalog record with its unit price in the item's native currency.
type Item struct {
	ID          int64
	Name        string
	Description string
	Price       money.Money
}

// Repository defines persistence operations for catalog items.
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	GetByID(ctx context.Context, id int64) (*Item, error)
	Create(ctx context.Context, item *Item) error
}
