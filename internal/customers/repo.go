// Package customers keeps the durable user-to-customer mapping and the log
// of completed orders.
package customers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a user has no customer record yet.
var ErrNotFound = errors.New("customers: not found")

// Record is a stored user-to-customer mapping.
type Record struct {
	UserKey    string    `db:"user_key"`
	CustomerID string    `db:"customer_id"`
	Email      string    `db:"email"`
	CreatedAt  time.Time `db:"created_at"`
}

// Order is one completed, paid order.
type Order struct {
	UserKey        string `db:"user_key"`
	CustomerID     string `db:"customer_id"`
	TotalMinor     int    `db:"total_minor"`
	Currency       string `db:"currency"`
	Delivery       bool   `db:"delivery"`
	ServicePointID string `db:"service_point_id"`
}

// Repo wraps the Postgres pool.
type Repo struct {
	db *sqlx.DB
}

// NewRepo constructs a Repo over an established pool.
func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// CustomerID returns the stored customer id for a user, or ErrNotFound.
func (r *Repo) CustomerID(ctx context.Context, userKey string) (string, error) {
	var id string
	err := r.db.GetContext(ctx, &id,
		`SELECT customer_id FROM customers WHERE user_key = $1`, userKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("customers lookup %s: %w", userKey, err)
	}
	return id, nil
}

// Save upserts the mapping; the first write wins so a customer id never
// changes once assigned.
func (r *Repo) Save(ctx context.Context, userKey, customerID, email string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (user_key, customer_id, email)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_key) DO NOTHING`,
		userKey, customerID, email)
	if err != nil {
		return fmt.Errorf("customers save %s: %w", userKey, err)
	}
	return nil
}

// RecordOrder appends a completed order to the log.
func (r *Repo) RecordOrder(ctx context.Context, o Order) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (user_key, customer_id, total_minor, currency, delivery, service_point_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		o.UserKey, o.CustomerID, o.TotalMinor, o.Currency, o.Delivery, o.ServicePointID)
	if err != nil {
		return fmt.Errorf("orders record %s: %w", o.UserKey, err)
	}
	return nil
}
