package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps one file per media ID under a single directory.
type LocalStorage struct {
	baseDir string
}

func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		baseDir = "fs/storage"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

func (s *LocalStorage) path(mediaID string) string {
	// Media IDs are UUIDs generated by us, but never trust them as paths.
	return filepath.Join(s.baseDir, filepath.Base(mediaID))
}

func (s *LocalStorage) Save(ctx context.Context, mediaID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("storage: empty payload")
	}
	if err := os.WriteFile(s.path(mediaID), data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", mediaID, err)
	}
	return nil
}

func (s *LocalStorage) Load(ctx context.Context, mediaID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(mediaID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: read %s: %w", mediaID, err)
	}
	return data, nil
}

func (s *LocalStorage) Delete(ctx context.Context, mediaID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(mediaID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", mediaID, err)
	}
	return nil
}

var _ Storage = (*LocalStorage)(nil)
