package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jsonblog/pkg/logger"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	connectAttempts = 5
	retryDelay      = 2 * time.Second
)

// Connect opens driver ("postgres" or "sqlite") and pings it, retrying a few
// times in case of temporary network blips.
func Connect(driver, dsn string) (*sql.DB, error) {
	if driver == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	for i := 0; i < connectAttempts; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		logger.Sugar.Infof("Database connection failed, retrying in %s... (%v)", retryDelay, err)
		time.Sleep(retryDelay)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database after %d attempts: %w", connectAttempts, err)
	}

	if driver == "sqlite" {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=5000;"} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to run %s: %w", pragma, err)
			}
		}
	}

	logger.Sugar.Infof("Successfully connected to the %s database", driver)
	return db, nil
}
