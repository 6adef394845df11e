package shopconfig

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore persists configurations in a SQLite database opened by db.OpenSQLite.
type SQLiteStore struct {
	DB *sql.DB
}

// Find implements Store.
func (s SQLiteStore) Find(ctx context.Context, shop string) (Configuration, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT shop, unit_of_measurement, unit_price, created_at, updated_at
		 FROM unit_of_measurement_settings WHERE shop = ?`, shop)
	var (
		cfg              Configuration
		unit             string
		price            sql.NullString
		created, updated string
	)
	if err := row.Scan(&cfg.Shop, &unit, &price, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Configuration{}, ErrNotFound
		}
		return Configuration{}, err
	}
	cfg.UnitOfMeasurement = Unit(unit)
	parsed, err := parsePrice(price.String, price.Valid)
	if err != nil {
		return Configuration{}, err
	}
	cfg.UnitPrice = parsed
	if cfg.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Configuration{}, fmt.Errorf("parse created_at: %w", err)
	}
	if cfg.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Configuration{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return cfg, nil
}

// Insert implements Store.
func (s SQLiteStore) Insert(ctx context.Context, cfg Configuration) (Configuration, error) {
	ts := cfg.CreatedAt.UTC().Format(time.RFC3339Nano)
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO unit_of_measurement_settings (shop, unit_of_measurement, unit_price, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		cfg.Shop, string(cfg.UnitOfMeasurement), priceParam(cfg.UnitPrice), ts, ts)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return Configuration{}, ErrDuplicateShop
		}
		return Configuration{}, err
	}
	return s.Find(ctx, cfg.Shop)
}

// Update implements Store.
func (s SQLiteStore) Update(ctx context.Context, cfg Configuration) (Configuration, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE unit_of_measurement_settings
		 SET unit_of_measurement = ?, unit_price = ?, updated_at = ?
		 WHERE shop = ?`,
		string(cfg.UnitOfMeasurement), priceParam(cfg.UnitPrice), cfg.UpdatedAt.UTC().Format(time.RFC3339Nano), cfg.Shop)
	if err != nil {
		return Configuration{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Configuration{}, err
	}
	if n == 0 {
		return Configuration{}, ErrNotFound
	}
	return s.Find(ctx, cfg.Shop)
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	}
	return false
}
