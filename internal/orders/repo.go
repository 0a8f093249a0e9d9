package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/visit-scheduler/internal/crypto"
	"github.com/example/visit-scheduler/internal/db"
)

// Repo persists orders. Save codes are encrypted at rest.
type Repo struct {
	db   *db.DB
	aead *crypto.AEAD
}

func NewRepo(d *db.DB, aead *crypto.AEAD) *Repo {
	return &Repo{db: d, aead: aead}
}

const orderCols = `order_number, save_code, country_id, time_for_visit, if_accepted`

// Add inserts a new order. A duplicate order number is reported with
// ok=false, not an error.
func (r *Repo) Add(ctx context.Context, o Order) (bool, error) {
	if err := o.Validate(); err != nil {
		return false, err
	}
	enc, err := r.aead.EncryptToString(o.SaveCode)
	if err != nil {
		return false, err
	}
	err = r.db.Exec(ctx, `
INSERT INTO orders(order_number, save_code, country_id, time_for_visit, if_accepted)
VALUES ($1,$2,$3,$4,$5)`,
		o.OrderNumber, enc, o.CountryID, o.TimeForVisit, o.IfAccepted,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, nil
		}
		return false, fmt.Errorf("add order: %w", err)
	}
	return true, nil
}

func (r *Repo) Get(ctx context.Context, orderNumber int64) (Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE order_number=$1`, orderNumber)
	o, err := r.scan(row)
	if err != nil {
		return Order{}, db.WrapNotFound(err)
	}
	return o, nil
}

func (r *Repo) List(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderCols+` FROM orders ORDER BY country_id, order_number`)
}

func (r *Repo) ListByCountry(ctx context.Context, countryID int) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderCols+` FROM orders WHERE country_id=$1 ORDER BY order_number`, countryID)
}

func (r *Repo) ListConfirmedByCountry(ctx context.Context, countryID int) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderCols+` FROM orders WHERE country_id=$1 AND time_for_visit <> '' ORDER BY order_number`, countryID)
}

func (r *Repo) SetTimeForVisit(ctx context.Context, orderNumber int64, timeForVisit string) error {
	return r.db.Exec(ctx, `UPDATE orders SET time_for_visit=$2, updated_at=now() WHERE order_number=$1`, orderNumber, timeForVisit)
}

func (r *Repo) SetAccepted(ctx context.Context, orderNumber int64, accepted bool) error {
	return r.db.Exec(ctx, `UPDATE orders SET if_accepted=$2, updated_at=now() WHERE order_number=$1`, orderNumber, accepted)
}

func (r *Repo) Delete(ctx context.Context, orderNumber int64) error {
	return r.db.Exec(ctx, `DELETE FROM orders WHERE order_number=$1`, orderNumber)
}

func (r *Repo) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) scan(row db.Row) (Order, error) {
	var o Order
	var enc string
	if err := row.Scan(&o.OrderNumber, &enc, &o.CountryID, &o.TimeForVisit, &o.IfAccepted); err != nil {
		return Order{}, err
	}
	code, err := r.aead.DecryptString(enc)
	if err != nil {
		return Order{}, fmt.Errorf("decrypt save code for %d: %w", o.OrderNumber, err)
	}
	o.SaveCode = code
	return o, nil
}
