package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"avpackaging/internal/config"
	"avpackaging/internal/logging"
	"avpackaging/internal/services"
)

// MinIOStore is a Store for S3-compatible servers reached through minio-go.
type MinIOStore struct {
	client      *minio.Client
	partSize    uint64
	concurrency uint
	logger      *slog.Logger
}

// NewMinIO constructs a MinIOStore from cfg.Storage.
func NewMinIO(cfg *config.Config, logger *slog.Logger) (*MinIOStore, error) {
	host, secure, err := splitEndpoint(cfg.Storage.Endpoint, cfg.Storage.UseSSL)
	if err != nil {
		return nil, err
	}
	lookup := minio.BucketLookupAuto
	if cfg.Storage.UsePathStyle {
		lookup = minio.BucketLookupPath
	}
	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.Storage.AccessKeyID, cfg.Storage.SecretAccessKey, ""),
		Secure:       secure,
		Region:       cfg.Storage.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "open minio", host, err)
	}
	partSize, concurrency := cfg.StorageTransfer()
	return &MinIOStore{
		client:      client,
		partSize:    uint64(partSize),
		concurrency: uint(concurrency),
		logger:      logging.NewComponentLogger(logger, "minio"),
	}, nil
}

// splitEndpoint accepts either host:port or a URL. A URL scheme decides TLS.
func splitEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", false, services.Wrap(services.ErrConfiguration, "", "open minio", "endpoint is empty", nil)
	}
	if !strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/"), useSSL, nil
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return "", false, services.Wrap(services.ErrConfiguration, "", "open minio", fmt.Sprintf("invalid endpoint %q", endpoint), err)
	}
	switch parsed.Scheme {
	case "https":
		return parsed.Host, true, nil
	case "http":
		return parsed.Host, false, nil
	default:
		return "", false, services.Wrap(services.ErrConfiguration, "", "open minio", fmt.Sprintf("unsupported scheme %q", parsed.Scheme), nil)
	}
}

func (m *MinIOStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var objects []Object
	for info := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, transferError("list objects", bucket, prefix, info.Err)
		}
		objects = append(objects, Object{Key: info.Key, Size: info.Size})
	}
	return objects, nil
}

func (m *MinIOStore) Download(ctx context.Context, bucket, key, dest string) error {
	if err := m.client.FGetObject(ctx, bucket, key, dest, minio.GetObjectOptions{}); err != nil {
		return transferError("download object", bucket, key, err)
	}
	m.logger.Debug("object downloaded", logging.String("bucket", bucket), logging.String("key", key))
	return nil
}

func (m *MinIOStore) Upload(ctx context.Context, bucket, key, src, contentType string) error {
	_, err := m.client.FPutObject(ctx, bucket, key, src, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    m.partSize,
		NumThreads:  m.concurrency,
	})
	if err != nil {
		return transferError("upload object", bucket, key, err)
	}
	m.logger.Debug("object uploaded", logging.String("bucket", bucket), logging.String("key", key), logging.String("content_type", contentType))
	return nil
}

func (m *MinIOStore) Delete(ctx context.Context, bucket string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	var failures []error
	for result := range m.client.RemoveObjects(ctx, bucket, objects, minio.RemoveObjectsOptions{}) {
		if result.Err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", result.ObjectName, result.Err))
		}
	}
	if len(failures) > 0 {
		return transferError("delete objects", bucket, keys[0], errors.Join(failures...))
	}
	return nil
}
