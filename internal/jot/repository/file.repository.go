package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"jotter/internal/jot/model"
	"jotter/pkg/logger"
	"jotter/store"
)

// FileStore keeps each document in <dir>/jot_<token>.txt.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create jot directory: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(token string) string {
	return filepath.Join(s.Dir, store.FileName(token))
}

func (s *FileStore) Read(ctx context.Context, token string) (string, error) {
	data, err := os.ReadFile(s.path(token))
	if errors.Is(err, os.ErrNotExist) {
		return "", model.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read jot: %w", err)
	}
	return string(data), nil
}

// Write replaces the document by writing a temp file in the same directory and renaming it
// over the target, so readers never observe a truncated file.
func (s *FileStore) Write(ctx context.Context, token, content string) error {
	tmpName, err := s.writeTemp(content)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path(token)); err != nil {
		removeTemp(tmpName)
		return fmt.Errorf("replace jot: %w", err)
	}
	return nil
}

// writeTemp stores content in a fully written, synced temp file inside Dir.
func (s *FileStore) writeTemp(content string) (string, error) {
	tmp, err := os.CreateTemp(s.Dir, ".jot-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		removeTemp(tmpName)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		removeTemp(tmpName)
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		removeTemp(tmpName)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		removeTemp(tmpName)
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	return tmpName, nil
}

func removeTemp(name string) {
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Sugar.Warnf("Failed to remove temp file %s: %v", name, err)
	}
}

func (s *FileStore) LastModified(ctx context.Context, token string) (model.Version, error) {
	info, err := os.Stat(s.path(token))
	if errors.Is(err, os.ErrNotExist) {
		return model.Version{}, model.ErrNotFound
	}
	if err != nil {
		return model.Version{}, fmt.Errorf("stat jot: %w", err)
	}
	return model.Version{ModTime: info.ModTime(), Size: info.Size()}, nil
}

// CreateIfAbsent hard-links a fully written temp file into place. Link fails when the
// target exists, so racing first visits cannot both seed and nobody sees an empty file.
func (s *FileStore) CreateIfAbsent(ctx context.Context, token, seed string) (bool, error) {
	if ok, err := s.Exists(ctx, token); err != nil || ok {
		return false, err
	}

	tmpName, err := s.writeTemp(seed)
	if err != nil {
		return false, err
	}
	defer removeTemp(tmpName)

	if err := os.Link(tmpName, s.path(token)); err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create jot: %w", err)
	}
	return true, nil
}

func (s *FileStore) Exists(ctx context.Context, token string) (bool, error) {
	_, err := os.Stat(s.path(token))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking token: %w", err)
	}
	return true, nil
}

func (s *FileStore) Empty(ctx context.Context) (bool, error) {
	files, err := filepath.Glob(filepath.Join(s.Dir, "jot_*.txt"))
	if err != nil {
		return false, fmt.Errorf("failed to check existing files: %w", err)
	}
	return len(files) == 0, nil
}
