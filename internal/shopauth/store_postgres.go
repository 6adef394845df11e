package shopauth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// PostgresDB is the subset of pgxpool.Pool used by PostgresSessionStore.
type PostgresDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSessionStore persists sessions in PostgreSQL.
type PostgresSessionStore struct {
	DB PostgresDB
}

// Store implements SessionStore.
func (s PostgresSessionStore) Store(ctx context.Context, sess Session) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO shop_sessions (id, shop, state, is_online, scope, access_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (id) DO UPDATE SET
			shop = EXCLUDED.shop,
			state = EXCLUDED.state,
			is_online = EXCLUDED.is_online,
			scope = EXCLUDED.scope,
			access_token = EXCLUDED.access_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`,
		sess.ID, sess.Shop, sess.State, sess.IsOnline, sess.Scope, sess.AccessToken,
		pgTimestamptz(sess.ExpiresAt), sess.UpdatedAt)
	return err
}

// FindOffline implements SessionStore.
func (s PostgresSessionStore) FindOffline(ctx context.Context, shop string) (Session, error) {
	var (
		sess    Session
		expires pgtype.Timestamptz
	)
	err := s.DB.QueryRow(ctx, `
		SELECT id, shop, state, is_online, scope, access_token, expires_at, created_at, updated_at
		FROM shop_sessions WHERE id = $1`, OfflineSessionID(shop)).
		Scan(&sess.ID, &sess.Shop, &sess.State, &sess.IsOnline, &sess.Scope, &sess.AccessToken, &expires, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	if expires.Valid {
		t := expires.Time
		sess.ExpiresAt = &t
	}
	return sess, nil
}

// DeleteByShop implements SessionStore.
func (s PostgresSessionStore) DeleteByShop(ctx context.Context, shop string) (int64, error) {
	tag, err := s.DB.Exec(ctx, `DELETE FROM shop_sessions WHERE shop = $1`, shop)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func pgTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
