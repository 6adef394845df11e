package shopconfig_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fabric-pricing/internal/db"
	"github.com/noah-isme/fabric-pricing/internal/shopconfig"
)

func newSQLiteStore(t *testing.T) shopconfig.SQLiteStore {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return shopconfig.SQLiteStore{DB: conn}
}

func TestSQLiteStoreContract(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

	_, err := store.Find(ctx, shop)
	require.ErrorIs(t, err, shopconfig.ErrNotFound)

	created, err := store.Insert(ctx, shopconfig.Configuration{
		Shop:              shop,
		UnitOfMeasurement: shopconfig.UnitMeters,
		UnitPrice:         price("12.5000"),
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	require.NoError(t, err)
	require.Equal(t, shopconfig.UnitMeters, created.UnitOfMeasurement)
	require.True(t, created.UnitPrice.Decimal.Equal(decimal.RequireFromString("12.5")))
	require.True(t, created.CreatedAt.Equal(now))

	_, err = store.Insert(ctx, shopconfig.Configuration{Shop: shop, UnitOfMeasurement: shopconfig.UnitFeet, CreatedAt: now})
	require.ErrorIs(t, err, shopconfig.ErrDuplicateShop)

	later := now.Add(time.Minute)
	updated, err := store.Update(ctx, shopconfig.Configuration{
		Shop:              shop,
		UnitOfMeasurement: shopconfig.UnitUnset,
		UpdatedAt:         later,
	})
	require.NoError(t, err)
	require.Equal(t, shopconfig.UnitUnset, updated.UnitOfMeasurement)
	require.False(t, updated.UnitPrice.Valid)
	require.True(t, updated.CreatedAt.Equal(now))
	require.True(t, updated.UpdatedAt.Equal(later))

	_, err = store.Update(ctx, shopconfig.Configuration{Shop: "other.myshopify.com", UpdatedAt: later})
	require.ErrorIs(t, err, shopconfig.ErrNotFound)
}

func TestSQLiteConcurrentSavesKeepOneRecord(t *testing.T) {
	store := newSQLiteStore(t)
	svc, err := shopconfig.NewService(shopconfig.ServiceConfig{Store: store, Logger: zerolog.Nop()})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Save(context.Background(), shop, shopconfig.UnitCentimeters, price("0.75"))
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	var count int
	require.NoError(t, store.DB.QueryRow(`SELECT count(*) FROM unit_of_measurement_settings WHERE shop = ?`, shop).Scan(&count))
	require.Equal(t, 1, count)
}
