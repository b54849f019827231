package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"agrolink.org/internal/orders"
)

// Store implements orders.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ orders.Store = (*Store)(nil)

// Open connects to the database identified by dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle (used by tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// EnsureSchema creates the orders table when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		create table if not exists orders (
			id text primary key,
			customer_id text not null,
			items jsonb not null,
			subtotal bigint not null,
			delivery_fee bigint not null,
			total bigint not null,
			status text not null,
			delivery_address text not null,
			timeline jsonb not null,
			created_at timestamptz not null,
			updated_at timestamptz not null
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const orderColumns = `id, customer_id, items, subtotal, delivery_fee, total, status, delivery_address, timeline, created_at, updated_at`

func (s *Store) Create(ctx context.Context, order *orders.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return err
	}
	timeline, err := json.Marshal(order.Timeline)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into orders (`+orderColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		order.ID, order.CustomerID, items, order.Subtotal, order.DeliveryFee,
		order.Total, string(order.Status), order.DeliveryAddress, timeline,
		order.CreatedAt, order.UpdatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*orders.Order, error) {
	var (
		order    orders.Order
		status   string
		items    []byte
		timeline []byte
	)
	err := row.Scan(
		&order.ID, &order.CustomerID, &items, &order.Subtotal, &order.DeliveryFee,
		&order.Total, &status, &order.DeliveryAddress, &timeline,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orders.ErrNotFound
		}
		return nil, err
	}
	order.Status = orders.Status(status)
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if err := json.Unmarshal(timeline, &order.Timeline); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	return &order, nil
}

func (s *Store) Get(ctx context.Context, id string) (*orders.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+orderColumns+` from orders where id=$1`, id)
	return scanOrder(row)
}

func (s *Store) ListByCustomer(ctx context.Context, customerID string) ([]*orders.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+orderColumns+` from orders where customer_id=$1 order by created_at desc`,
		customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*orders.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, order)
	}
	return res, rows.Err()
}

// UpdateWith serializes per order via a row lock: concurrent transitions on
// the same order queue behind select ... for update.
func (s *Store) UpdateWith(ctx context.Context, id string, fn func(*orders.Order) error) (*orders.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`select `+orderColumns+` from orders where id=$1 for update`, id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if err := fn(order); err != nil {
		return nil, err
	}

	timeline, err := json.Marshal(order.Timeline)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`update orders set status=$1, timeline=$2, updated_at=$3 where id=$4`,
		string(order.Status), timeline, order.UpdatedAt, order.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `select count(*) from orders`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
