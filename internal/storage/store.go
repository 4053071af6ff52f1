package storage

import (
	"context"
	"fmt"
	"log/slog"

	"avpackaging/internal/config"
	"avpackaging/internal/services"
)

// Object is a listed blob.
type Object struct {
	Key  string
	Size int64
}

// Store is the blob store surface the pipeline uses. Transfers stream to and
// from local files.
type Store interface {
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	Download(ctx context.Context, bucket, key, dest string) error
	Upload(ctx context.Context, bucket, key, src, contentType string) error
	Delete(ctx context.Context, bucket string, keys []string) error
}

// Open returns the Store selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Storage.Backend {
	case "s3", "":
		return NewS3(ctx, cfg, logger)
	case "minio":
		return NewMinIO(cfg, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "open storage", fmt.Sprintf("unsupported backend %q", cfg.Storage.Backend), nil)
	}
}

func transferError(op, bucket, key string, err error) error {
	return services.Wrap(services.ErrTransfer, "", op, fmt.Sprintf("%s/%s", bucket, key), err)
}
