package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"jotter/pkg/logger"

	_ "github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS jots (
	token      TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
)`

// Connect opens the postgres pool, waits for it to answer and makes sure the jots table exists.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Retry a few times in case of temporary DNS/network blips
	for i := 0; i < 5; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		logger.Sugar.Infof("Database connection failed, retrying in 2s... (%v)", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database after retries: %w", err)
	}
	logger.Sugar.Info("Successfully connected to the database")

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create jots table: %w", err)
	}
	return nil
}
