package shopconfig

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/fabric-pricing/internal/common"
	"github.com/noah-isme/fabric-pricing/internal/obs"
)

const lockKeyPrefix = "shopconfig:lock:"

// Locker serialises work on a key across processes. lock.Locker satisfies it.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ServiceConfig wires the Service dependencies. Cache and Locker are optional.
type ServiceConfig struct {
	Store   Store
	Cache   *Cache
	Locker  Locker
	LockTTL time.Duration
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Service reads and upserts shop configurations.
type Service struct {
	store   Store
	cache   *Cache
	locker  Locker
	lockTTL time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("shopconfig: store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Service{
		store:   cfg.Store,
		cache:   cfg.Cache,
		locker:  cfg.Locker,
		lockTTL: ttl,
		logger:  cfg.Logger,
		now:     now,
	}, nil
}

// Get returns the configuration of shop. The boolean is false when the shop
// has never saved one.
func (s *Service) Get(ctx context.Context, shop string) (Configuration, bool, error) {
	shop = normaliseShop(shop)
	if shop == "" {
		return Configuration{}, false, common.ValidationError("shop is required")
	}

	cached, hit, err := s.cache.Get(ctx, shop)
	switch {
	case err != nil:
		obs.CountConfigCache("error")
		s.logger.Warn().Err(err).Str("shop", shop).Msg("config cache read failed")
	case hit:
		obs.CountConfigCache("hit")
		return cached, true, nil
	default:
		obs.CountConfigCache("miss")
	}

	cfg, err := s.store.Find(ctx, shop)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Configuration{}, false, nil
		}
		return Configuration{}, false, common.InfrastructureError(err)
	}
	if _, err := s.cache.Set(ctx, cfg); err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("config cache write failed")
	}
	return cfg, true, nil
}

// Save upserts the configuration of shop. Repeating a save with the same
// values leaves exactly one record carrying those values, and concurrent
// first saves for a shop never produce a second record.
func (s *Service) Save(ctx context.Context, shop string, unit Unit, price decimal.NullDecimal) (Configuration, error) {
	shop = normaliseShop(shop)
	if shop == "" {
		return Configuration{}, common.ValidationError("shop is required")
	}
	if !unit.Valid() {
		return Configuration{}, common.ValidationError(msgUnsupportedUnit)
	}

	var saved Configuration
	upsert := func(ctx context.Context) error {
		var err error
		saved, err = s.upsert(ctx, Configuration{
			Shop:              shop,
			UnitOfMeasurement: unit,
			UnitPrice:         price,
		}.normalise())
		return err
	}

	var err error
	if s.locker != nil {
		err = s.locker.WithLock(ctx, lockKeyPrefix+shop, s.lockTTL, upsert)
		if err != nil && saved.Shop == "" && ctx.Err() == nil && !isAppError(err) {
			// The store's unique key still guarantees a single record.
			s.logger.Warn().Err(err).Str("shop", shop).Msg("config save lock unavailable")
			err = upsert(ctx)
		}
	} else {
		err = upsert(ctx)
	}
	if err != nil {
		obs.CountConfigSave("error")
		return Configuration{}, err
	}

	s.refreshCache(ctx, saved)
	s.logger.Info().
		Str("shop", shop).
		Str("unit", string(saved.UnitOfMeasurement)).
		Msg("shop configuration saved")
	return saved, nil
}

// refreshCache writes the saved record through to the cache, where its newer
// version blocks fills from reads that started before the save. If the write
// fails the entry is dropped instead.
func (s *Service) refreshCache(ctx context.Context, saved Configuration) {
	_, err := s.cache.Set(ctx, saved)
	if err == nil {
		return
	}
	s.logger.Warn().Err(err).Str("shop", saved.Shop).Msg("config cache write failed")
	if err := s.cache.Invalidate(ctx, saved.Shop); err != nil {
		s.logger.Warn().Err(err).Str("shop", saved.Shop).Msg("config cache invalidate failed")
	}
}

func (s *Service) upsert(ctx context.Context, cfg Configuration) (Configuration, error) {
	now := storedTime(s.now())

	existing, err := s.store.Find(ctx, cfg.Shop)
	switch {
	case err == nil:
		return s.update(ctx, existing, cfg, now, "updated")
	case !errors.Is(err, ErrNotFound):
		return Configuration{}, common.InfrastructureError(err)
	}

	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	created, err := s.store.Insert(ctx, cfg)
	if err == nil {
		obs.CountConfigSave("created")
		return created, nil
	}
	if !errors.Is(err, ErrDuplicateShop) {
		return Configuration{}, common.InfrastructureError(err)
	}

	// Lost the race to a concurrent first save; apply ours on top.
	existing, err = s.store.Find(ctx, cfg.Shop)
	if err != nil {
		return Configuration{}, common.InfrastructureError(err)
	}
	return s.update(ctx, existing, cfg, now, "conflict_updated")
}

func (s *Service) update(ctx context.Context, existing, next Configuration, now time.Time, result string) (Configuration, error) {
	existing.UnitOfMeasurement = next.UnitOfMeasurement
	existing.UnitPrice = next.UnitPrice
	existing.UpdatedAt = now
	updated, err := s.store.Update(ctx, existing)
	if err != nil {
		return Configuration{}, common.InfrastructureError(err)
	}
	obs.CountConfigSave(result)
	return updated, nil
}

func normaliseShop(shop string) string {
	return strings.ToLower(strings.TrimSpace(shop))
}

func isAppError(err error) bool {
	var appErr *common.AppError
	return errors.As(err, &appErr)
}
