package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/contentgen/internal/config"
)

var ErrInvalidKey = errors.New("invalid artifact key")

// ArtifactStore abstracts generated-file storage backends.
type ArtifactStore interface {
	// Save stores artifact data. key format: {generation_id}/{file_name}
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// URL returns a presigned download URL.
	// Returns "" for local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Open returns a reader for the artifact.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether the object behind key was written. Checked before
	// redirecting or streaming.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// New creates an ArtifactStore based on config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, artifactDir string, log zerolog.Logger) (ArtifactStore, error) {
	if !cfg.Enabled() {
		log.Info().Str("dir", artifactDir).Msg("using local artifact store")
		return NewLocalStore(artifactDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")
	return s3store, nil
}

// Key builds the storage key for one artifact of a generation.
func Key(generationID, fileName string) string {
	return generationID + "/" + fileName
}

// CleanKey rejects keys that are absolute or escape the store root.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
