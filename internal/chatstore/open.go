package chatstore

import (
	"context"
	"strings"

	apperrors "github.com/darrellrafa/Nutribot/internal/errors"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open selects a backend by driver name. An empty driver means SQLite.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite, "sqlite3":
		return OpenSQLite(ctx, dsn)
	case DriverPostgres, "postgresql", "pgx":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, apperrors.Validationf("unsupported chat store driver %q", driver)
	}
}
