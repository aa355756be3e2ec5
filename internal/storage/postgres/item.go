package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/stripeshop/internal/domain/catalog"
	"github.com/xenking/stripeshop/internal/domain/money"
)

const (
	listItemsSQL = `SELECT id, name, description, price, currency FROM items ORDER BY id`

	getItemSQL = `SELECT id, name, description, price, currency FROM items WHERE id = $1`

	createItemSQL = `INSERT INTO items (name, description, price, currency)
	VALUES ($1, $2, $3, $4) RETURNING id`
)

var _ catalog.Repository = (*ItemRepository)(nil)

// ItemRepository implements catalog.Repository backed by PostgreSQL.
type ItemRepository struct {
	pool *pgxpool.Pool
}

// NewItemRepository returns an ItemRepository that uses the given pool.
func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

// List returns all catalog items ordered by id.
func (r *ItemRepository) List(ctx context.Context) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, listItemsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetByID returns a single item, or catalog.ErrNotFound.
func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*catalog.Item, error) {
	row := r.pool.QueryRow(ctx, getItemSQL, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting item %d: %w", id, err)
	}
	return &item, nil
}

// Create persists a new item and fills in its generated id.
func (r *ItemRepository) Create(ctx context.Context, item *catalog.Item) error {
	err := r.pool.QueryRow(ctx, createItemSQL,
		item.Name, item.Description, item.Price.AmountMinor, string(item.Price.Currency),
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("creating item %q: %w", item.Name, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (catalog.Item, error) {
	var (
		item     catalog.Item
		amount   int64
		currency string
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Description, &amount, &currency); err != nil {
		return catalog.Item{}, err
	}
	item.Price = money.Money{AmountMinor: amount, Currency: money.Currency(currency)}
	return item, nil
}
