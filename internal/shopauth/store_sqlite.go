package shopauth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteSessionStore persists sessions in a SQLite database opened by db.OpenSQLite.
type SQLiteSessionStore struct {
	DB *sql.DB
}

// Store implements SessionStore.
func (s SQLiteSessionStore) Store(ctx context.Context, sess Session) error {
	var expires sql.NullString
	if sess.ExpiresAt != nil {
		expires = sql.NullString{String: sess.ExpiresAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	ts := sess.UpdatedAt.UTC().Format(time.RFC3339Nano)
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO shop_sessions (id, shop, state, is_online, scope, access_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			shop = excluded.shop,
			state = excluded.state,
			is_online = excluded.is_online,
			scope = excluded.scope,
			access_token = excluded.access_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		sess.ID, sess.Shop, sess.State, sess.IsOnline, sess.Scope, sess.AccessToken, expires, ts, ts)
	return err
}

// FindOffline implements SessionStore.
func (s SQLiteSessionStore) FindOffline(ctx context.Context, shop string) (Session, error) {
	var (
		sess             Session
		expires          sql.NullString
		created, updated string
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, shop, state, is_online, scope, access_token, expires_at, created_at, updated_at
		FROM shop_sessions WHERE id = ?`, OfflineSessionID(shop)).
		Scan(&sess.ID, &sess.Shop, &sess.State, &sess.IsOnline, &sess.Scope, &sess.AccessToken, &expires, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	if sess.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Session{}, fmt.Errorf("parse created_at: %w", err)
	}
	if sess.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Session{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if expires.Valid {
		t, err := time.Parse(time.RFC3339Nano, expires.String)
		if err != nil {
			return Session{}, fmt.Errorf("parse expires_at: %w", err)
		}
		sess.ExpiresAt = &t
	}
	return sess, nil
}

// DeleteByShop implements SessionStore.
func (s SQLiteSessionStore) DeleteByShop(ctx context.Context, shop string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM shop_sessions WHERE shop = ?`, shop)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
