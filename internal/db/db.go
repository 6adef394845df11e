// Package db opens the configured database and applies its schema.
package db

import (
	"errors"
	"fmt"
	"strings"
)

// Dialect identifies the storage backend selected by DATABASE_URL.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ErrUnsupportedURL is returned for database URLs with an unknown scheme.
var ErrUnsupportedURL = errors.New("db: unsupported database url")

// Parse resolves the dialect of a database URL. For SQLite it also returns
// the file path the driver should open.
func Parse(databaseURL string) (Dialect, string, error) {
	raw := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DialectPostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("%w: empty sqlite path", ErrUnsupportedURL)
		}
		return DialectSQLite, path, nil
	case strings.HasPrefix(raw, "file:"):
		return DialectSQLite, raw, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedURL, redact(raw))
	}
}

func redact(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		return raw[:i+3] + "..."
	}
	if len(raw) > 8 {
		return raw[:8] + "..."
	}
	return raw
}
