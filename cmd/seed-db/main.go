// Command seed-db loads the demo catalog: three items, a percent discount,
// a VAT tax, and one open order carrying all of them. Running it against an
// already-seeded database is a no-op.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/stripeshop/internal/storage/postgres"
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	var seeded bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items)`).Scan(&seeded); err != nil {
		return errors.Wrap(err, "check existing data")
	}
	if seeded {
		slog.Info("catalog already seeded, nothing to do")
		return nil
	}

	return seedDemoData(ctx, pool)
}

func seedDemoData(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo catalog")

	items := []struct {
		name        string
		description string
		price       int64
		currency    string
	}{
		{"Book", "A pragmatic guide to building things", 1999, "eur"},
		{"Pen", "Ballpoint, writes upside down", 499, "eur"},
		{"Mug", "Holds exactly one coffee", 1299, "usd"},
	}

	itemIDs := make(map[string]int64, len(items))
	for _, it := range items {
		var id int64
		err := pool.QueryRow(ctx,
			`INSERT INTO items (name, description, price, currency) VALUES ($1, $2, $3, $4) RETURNING id`,
			it.name, it.description, it.price, it.currency,
		).Scan(&id)
		if err != nil {
			return errors.Wrapf(err, "insert item %s", it.name)
		}
		itemIDs[it.name] = id
		slog.Info("inserted item", slog.String("name", it.name), slog.Int64("id", id))
	}

	var discountID int64
	err := pool.QueryRow(ctx,
		`INSERT INTO discounts (name, discount_type, percent_off) VALUES ($1, 'percent', $2) RETURNING id`,
		"Spring sale", 10,
	).Scan(&discountID)
	if err != nil {
		return errors.Wrap(err, "insert discount")
	}
	slog.Info("inserted discount", slog.String("name", "Spring sale"), slog.Int64("id", discountID))

	var taxID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO taxes (name, percentage, inclusive) VALUES ($1, $2, false) RETURNING id`,
		"VAT", 20,
	).Scan(&taxID)
	if err != nil {
		return errors.Wrap(err, "insert tax")
	}
	slog.Info("inserted tax", slog.String("name", "VAT"), slog.Int64("id", taxID))

	var orderID int64
	if err := pool.QueryRow(ctx,
		`INSERT INTO orders (currency) VALUES ('eur') RETURNING id`,
	).Scan(&orderID); err != nil {
		return errors.Wrap(err, "insert order")
	}

	lines := []struct {
		item string
		qty  int
	}{
		{"Book", 2},
		{"Pen", 3},
	}
	for _, l := range lines {
		if _, err := pool.Exec(ctx,
			`INSERT INTO order_lines (order_id, item_id, quantity) VALUES ($1, $2, $3)`,
			orderID, itemIDs[l.item], l.qty,
		); err != nil {
			return errors.Wrapf(err, "insert order line %s", l.item)
		}
	}

	if _, err := pool.Exec(ctx,
		`INSERT INTO order_discounts (order_id, discount_id) VALUES ($1, $2)`,
		orderID, discountID,
	); err != nil {
		return errors.Wrap(err, "attach discount")
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO order_taxes (order_id, tax_id) VALUES ($1, $2)`,
		orderID, taxID,
	); err != nil {
		return errors.Wrap(err, "attach tax")
	}

	slog.Info("inserted demo order", slog.Int64("id", orderID))
	return nil
}
