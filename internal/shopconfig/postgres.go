package shopconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

// PostgresQuerier is the subset of pgxpool.Pool used by PostgresStore.
type PostgresQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists configurations in PostgreSQL.
type PostgresStore struct {
	DB PostgresQuerier
}

const selectColumns = `shop, unit_of_measurement, unit_price::text, created_at, updated_at`

// Find implements Store.
func (s PostgresStore) Find(ctx context.Context, shop string) (Configuration, error) {
	row := s.DB.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM unit_of_measurement_settings WHERE shop = $1`, shop)
	cfg, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Configuration{}, ErrNotFound
	}
	return cfg, err
}

// Insert implements Store.
func (s PostgresStore) Insert(ctx context.Context, cfg Configuration) (Configuration, error) {
	row := s.DB.QueryRow(ctx,
		`INSERT INTO unit_of_measurement_settings (shop, unit_of_measurement, unit_price, created_at, updated_at)
		 VALUES ($1, $2, $3::text::numeric, $4, $4)
		 RETURNING `+selectColumns,
		cfg.Shop, string(cfg.UnitOfMeasurement), priceParam(cfg.UnitPrice), cfg.CreatedAt)
	saved, err := scanPostgres(row)
	if isPgUniqueViolation(err) {
		return Configuration{}, ErrDuplicateShop
	}
	return saved, err
}

// Update implements Store.
func (s PostgresStore) Update(ctx context.Context, cfg Configuration) (Configuration, error) {
	row := s.DB.QueryRow(ctx,
		`UPDATE unit_of_measurement_settings
		 SET unit_of_measurement = $2, unit_price = $3::text::numeric, updated_at = $4
		 WHERE shop = $1
		 RETURNING `+selectColumns,
		cfg.Shop, string(cfg.UnitOfMeasurement), priceParam(cfg.UnitPrice), cfg.UpdatedAt)
	saved, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Configuration{}, ErrNotFound
	}
	return saved, err
}

func scanPostgres(row pgx.Row) (Configuration, error) {
	var (
		cfg   Configuration
		unit  string
		price pgtype.Text
	)
	if err := row.Scan(&cfg.Shop, &unit, &price, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return Configuration{}, err
	}
	cfg.UnitOfMeasurement = Unit(unit)
	parsed, err := parsePrice(price.String, price.Valid)
	if err != nil {
		return Configuration{}, err
	}
	cfg.UnitPrice = parsed
	return cfg, nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// priceParam returns the textual price or nil for NULL.
func priceParam(price decimal.NullDecimal) any {
	if !price.Valid {
		return nil
	}
	return price.Decimal.String()
}

func parsePrice(raw string, valid bool) (decimal.NullDecimal, error) {
	if !valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse stored price %q: %w", raw, err)
	}
	return decimal.NewNullDecimal(d), nil
}

// storedTime normalises timestamps before they reach a backend.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
