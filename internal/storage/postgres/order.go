package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/stripeshop/internal/domain/catalog"
	"github.com/xenking/stripeshop/internal/domain/money"
	"github.com/xenking/stripeshop/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (currency) VALUES ($1) RETURNING id`

	getOrderSQL = `SELECT id, currency, paid, checkout_session_id FROM orders WHERE id = $1`

	orderLinesSQL = `SELECT i.id, i.name, i.description, i.price, i.currency, l.quantity
	FROM order_lines l JOIN items i ON i.id = l.item_id
	WHERE l.order_id = $1 ORDER BY i.id`

	orderDiscountsSQL = `SELECT d.id, d.name, d.discount_type, d.percent_off, d.amount_off, d.currency
	FROM order_discounts od JOIN discounts d ON d.id = od.discount_id
	WHERE od.order_id = $1 ORDER BY d.id`

	orderTaxesSQL = `SELECT t.id, t.name, t.percentage, t.inclusive
	FROM order_taxes ot JOIN taxes t ON t.id = ot.tax_id
	WHERE ot.order_id = $1 ORDER BY t.id`

	// Merge-on-add: one line per (order, item), repeated adds accumulate.
	addLineSQL = `INSERT INTO order_lines (order_id, item_id, quantity) VALUES ($1, $2, $3)
	ON CONFLICT (order_id, item_id) DO UPDATE SET quantity = order_lines.quantity + excluded.quantity`

	setCurrencySQL = `UPDATE orders SET currency = $2 WHERE id = $1`

	attachDiscountSQL = `INSERT INTO order_discounts (order_id, discount_id) VALUES ($1, $2)
	ON CONFLICT DO NOTHING`

	attachTaxSQL = `INSERT INTO order_taxes (order_id, tax_id) VALUES ($1, $2)
	ON CONFLICT DO NOTHING`

	setSessionSQL = `UPDATE orders SET checkout_session_id = $2 WHERE id = $1`

	// Compare-and-set: only an unpaid order transitions, so two concurrent
	// completion deliveries cannot both claim the update.
	markPaidSQL = `UPDATE orders SET paid = true
	WHERE checkout_session_id = $1 AND NOT paid`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts an empty order in the given settlement currency.
func (r *OrderRepository) Create(ctx context.Context, currency money.Currency) (*order.Order, error) {
	o := &order.Order{Currency: currency}
	err := r.pool.QueryRow(ctx, createOrderSQL, string(currency)).Scan(&o.ID)
	if err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}
	return o, nil
}

// Get loads the full aggregate: the order row plus its lines, discounts,
// and taxes.
func (r *OrderRepository) Get(ctx context.Context, id int64) (*order.Order, error) {
	var (
		o        order.Order
		currency string
	)
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(&o.ID, &currency, &o.Paid, &o.CheckoutSessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o.Currency = money.Currency(currency)

	if o.Lines, err = r.lines(ctx, id); err != nil {
		return nil, err
	}
	if o.Discounts, err = r.discounts(ctx, id); err != nil {
		return nil, err
	}
	if o.Taxes, err = r.taxes(ctx, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) lines(ctx context.Context, orderID int64) ([]order.Line, error) {
	rows, err := r.pool.Query(ctx, orderLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading lines for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var lines []order.Line
	for rows.Next() {
		var (
			item     catalog.Item
			amount   int64
			currency string
			qty      int
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &amount, &currency, &qty); err != nil {
			return nil, err
		}
		item.Price = money.Money{AmountMinor: amount, Currency: money.Currency(currency)}
		lines = append(lines, order.Line{Item: item, Quantity: qty})
	}
	return lines, rows.Err()
}

func (r *OrderRepository) discounts(ctx context.Context, orderID int64) ([]order.Discount, error) {
	rows, err := r.pool.Query(ctx, orderDiscountsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading discounts for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var discounts []order.Discount
	for rows.Next() {
		var (
			d        order.Discount
			dtype    string
			percent  decimal.Decimal
			amount   int64
			currency string
		)
		if err := rows.Scan(&d.ID, &d.Name, &dtype, &percent, &amount, &currency); err != nil {
			return nil, err
		}
		d.Type = order.DiscountType(dtype)
		d.PercentOff = percent
		d.AmountOff = money.Money{AmountMinor: amount, Currency: money.Currency(currency)}
		discounts = append(discounts, d)
	}
	return discounts, rows.Err()
}

func (r *OrderRepository) taxes(ctx context.Context, orderID int64) ([]order.Tax, error) {
	rows, err := r.pool.Query(ctx, orderTaxesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading taxes for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var taxes []order.Tax
	for rows.Next() {
		var t order.Tax
		if err := rows.Scan(&t.ID, &t.Name, &t.Percentage, &t.Inclusive); err != nil {
			return nil, err
		}
		taxes = append(taxes, t)
	}
	return taxes, rows.Err()
}

// AddLine merges the item into the order in a single upsert.
func (r *OrderRepository) AddLine(ctx context.Context, orderID, itemID int64, quantity int) error {
	if quantity <= 0 {
		return order.ErrInvalidQuantity
	}
	if _, err := r.pool.Exec(ctx, addLineSQL, orderID, itemID, quantity); err != nil {
		return fmt.Errorf("adding item %d to order %d: %w", itemID, orderID, err)
	}
	return nil
}

// SetCurrency changes the order's settlement currency.
func (r *OrderRepository) SetCurrency(ctx context.Context, orderID int64, currency money.Currency) error {
	tag, err := r.pool.Exec(ctx, setCurrencySQL, orderID, string(currency))
	if err != nil {
		return fmt.Errorf("setting currency for order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// AttachDiscount links an existing discount to the order.
func (r *OrderRepository) AttachDiscount(ctx context.Context, orderID, discountID int64) error {
	if _, err := r.pool.Exec(ctx, attachDiscountSQL, orderID, discountID); err != nil {
		return fmt.Errorf("attaching discount %d to order %d: %w", discountID, orderID, err)
	}
	return nil
}

// AttachTax links an existing tax to the order.
func (r *OrderRepository) AttachTax(ctx context.Context, orderID, taxID int64) error {
	if _, err := r.pool.Exec(ctx, attachTaxSQL, orderID, taxID); err != nil {
		return fmt.Errorf("attaching tax %d to order %d: %w", taxID, orderID, err)
	}
	return nil
}

// SetCheckoutSession overwrites the order's provider session id. Last
// writer wins under concurrent submissions.
func (r *OrderRepository) SetCheckoutSession(ctx context.Context, orderID int64, sessionID string) error {
	tag, err := r.pool.Exec(ctx, setSessionSQL, orderID, sessionID)
	if err != nil {
		return fmt.Errorf("setting session for order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// MarkPaidBySession transitions the matching order unpaid -> paid. The
// conditional UPDATE makes replays and concurrent deliveries read as "no
// row updated" rather than a second side effect.
func (r *OrderRepository) MarkPaidBySession(ctx context.Context, sessionID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, markPaidSQL, sessionID)
	if err != nil {
		return false, fmt.Errorf("marking order paid for session %q: %w", sessionID, err)
	}
	return tag.RowsAffected() > 0, nil
}
