package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jotter/internal/jot/model"
	"jotter/pkg/logger"
	"jotter/store"
)

// PostgresStore keeps one row per jot. Every write is a single upsert statement, which
// postgres applies atomically, so readers never see a partial document.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (r *PostgresStore) load(ctx context.Context, token string) (*store.Jot, error) {
	jot := &store.Jot{Token: token}
	err := r.DB.QueryRowContext(ctx, "SELECT content, updated_at FROM jots WHERE token = $1", token).
		Scan(&jot.Content, &jot.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to load jot: %v", err)
		return nil, err
	}
	return jot, nil
}

func (r *PostgresStore) Read(ctx context.Context, token string) (string, error) {
	jot, err := r.load(ctx, token)
	if err != nil {
		return "", err
	}
	return jot.Content, nil
}

func (r *PostgresStore) Write(ctx context.Context, token, content string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO jots (token, content, updated_at) VALUES ($1, $2, clock_timestamp())
		ON CONFLICT (token) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`, token, content)
	if err != nil {
		logger.Sugar.Errorf("Failed to write jot: %v", err)
		return fmt.Errorf("write jot: %w", err)
	}
	return nil
}

// LastModified reads only updated_at, the content length and the row's xmin.
func (r *PostgresStore) LastModified(ctx context.Context, token string) (model.Version, error) {
	var v model.Version
	err := r.DB.QueryRowContext(ctx, "SELECT updated_at, octet_length(content), xmin::text FROM jots WHERE token = $1", token).
		Scan(&v.ModTime, &v.Size, &v.Tag)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Version{}, model.ErrNotFound
	}
	if err != nil {
		return model.Version{}, fmt.Errorf("probe jot: %w", err)
	}
	return v, nil
}

func (r *PostgresStore) CreateIfAbsent(ctx context.Context, token, seed string) (bool, error) {
	result, err := r.DB.ExecContext(ctx, `INSERT INTO jots (token, content, updated_at) VALUES ($1, $2, clock_timestamp())
		ON CONFLICT (token) DO NOTHING`, token, seed)
	if err != nil {
		logger.Sugar.Errorf("Failed to create jot: %v", err)
		return false, fmt.Errorf("create jot: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func (r *PostgresStore) Exists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM jots WHERE token = $1)", token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking token: %w", err)
	}
	return exists, nil
}

func (r *PostgresStore) Empty(ctx context.Context) (bool, error) {
	var exists bool
	if err := r.DB.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM jots)").Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check existing jots: %w", err)
	}
	return !exists, nil
}
