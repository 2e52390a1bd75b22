// Package storage is the flat-file blob store media bytes live in. The
// database row is the metadata; the blob is addressed by media ID alone.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	TypeLocal = "local"
	TypeS3    = "s3"
)

// ErrNotFound is returned when no blob exists for the ID.
var ErrNotFound = errors.New("storage: blob not found")

type Storage interface {
	Save(ctx context.Context, mediaID string, data []byte) error
	Load(ctx context.Context, mediaID string) ([]byte, error)
	Delete(ctx context.Context, mediaID string) error
}

type Config struct {
	Type        string
	LocalDir    string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

func New(cfg Config) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", TypeLocal:
		return NewLocalStorage(cfg.LocalDir)
	case TypeS3:
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("storage: unsupported type %q", cfg.Type)
	}
}
