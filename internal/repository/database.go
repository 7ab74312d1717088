package repository

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"disaster-classifier/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// Driver returns the database/sql driver name for a locator.
// postgres:// and postgresql:// URLs go to PostgreSQL, anything else is a SQLite file path.
func Driver(locator string) string {
	if strings.HasPrefix(locator, "postgres://") || strings.HasPrefix(locator, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// NewDatabase opens and pings the message store behind locator.
// A SQLite path that does not exist is an error instead of a fresh empty database.
func NewDatabase(locator string, logger *zap.Logger) (*sqlx.DB, error) {
	driver := Driver(locator)

	if driver == "sqlite" {
		info, err := os.Stat(locator)
		if err != nil {
			return nil, &models.DataAccessError{Locator: locator, Err: err}
		}
		if info.IsDir() {
			return nil, &models.DataAccessError{Locator: locator, Err: fmt.Errorf("is a directory")}
		}
	}

	db, err := sqlx.Connect(driver, locator)
	if err != nil {
		return nil, &models.DataAccessError{Locator: redact(locator), Err: fmt.Errorf("failed to connect: %w", err)}
	}

	logger.Info("Connected to message store", zap.String("driver", driver), zap.String("locator", redact(locator)))
	return db, nil
}

// redact hides the password of a PostgreSQL URL
func redact(locator string) string {
	if Driver(locator) != "postgres" {
		return locator
	}
	u, err := url.Parse(locator)
	if err != nil {
		return "postgres://<unparseable>"
	}
	return u.Redacted()
}
