package shopconfig

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubRow struct {
	err    error
	values []any
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *pgtype.Text:
			if r.values[i] == nil {
				*p = pgtype.Text{}
			} else {
				*p = pgtype.Text{String: r.values[i].(string), Valid: true}
			}
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			return errors.New("unexpected scan target")
		}
	}
	return nil
}

type stubQuerier struct {
	row     stubRow
	lastSQL string
	args    []any
}

func (q *stubQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL = sql
	q.args = args
	return q.row
}

func TestPostgresFindMapsNoRows(t *testing.T) {
	q := &stubQuerier{row: stubRow{err: pgx.ErrNoRows}}
	_, err := PostgresStore{DB: q}.Find(context.Background(), "a.myshopify.com")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, []any{"a.myshopify.com"}, q.args)
}

func TestPostgresInsertMapsUniqueViolation(t *testing.T) {
	q := &stubQuerier{row: stubRow{err: &pgconn.PgError{Code: "23505"}}}
	_, err := PostgresStore{DB: q}.Insert(context.Background(), Configuration{Shop: "a.myshopify.com", UnitOfMeasurement: UnitMeters})
	require.ErrorIs(t, err, ErrDuplicateShop)
}

func TestPostgresInsertPassesOtherErrors(t *testing.T) {
	boom := &pgconn.PgError{Code: "57P01"}
	q := &stubQuerier{row: stubRow{err: boom}}
	_, err := PostgresStore{DB: q}.Insert(context.Background(), Configuration{Shop: "a.myshopify.com"})
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrDuplicateShop)
}

func TestPostgresUpdateScansRow(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	q := &stubQuerier{row: stubRow{values: []any{"a.myshopify.com", "Meters (m)", "3.2500", created, updated}}}

	cfg, err := PostgresStore{DB: q}.Update(context.Background(), Configuration{
		Shop:              "a.myshopify.com",
		UnitOfMeasurement: UnitMeters,
		UnitPrice:         decimal.NewNullDecimal(decimal.RequireFromString("3.25")),
		UpdatedAt:         updated,
	})
	require.NoError(t, err)
	require.Equal(t, UnitMeters, cfg.UnitOfMeasurement)
	require.True(t, cfg.UnitPrice.Decimal.Equal(decimal.RequireFromString("3.25")))
	require.Equal(t, created, cfg.CreatedAt)
	require.Equal(t, "3.25", q.args[2])
}

func TestPostgresNullPrice(t *testing.T) {
	now := time.Now().UTC()
	q := &stubQuerier{row: stubRow{values: []any{"a.myshopify.com", "uom", nil, now, now}}}
	cfg, err := PostgresStore{DB: q}.Find(context.Background(), "a.myshopify.com")
	require.NoError(t, err)
	require.False(t, cfg.UnitPrice.Valid)
	require.Nil(t, priceParam(cfg.UnitPrice))
}
