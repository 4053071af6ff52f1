package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateBuckets(); err != nil {
		return err
	}
	if err := c.validateArchivesSpace(); err != nil {
		return err
	}
	if err := c.validatePoster(); err != nil {
		return err
	}
	if c.Preflight.MinFreeGiB < 0 {
		return errors.New("preflight.min_free_gib must be >= 0")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "s3":
	case "minio":
		if c.Storage.Endpoint == "" {
			return errors.New("storage.endpoint must be set when storage.backend is minio")
		}
		if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
			return errors.New("storage.access_key_id and storage.secret_access_key must be set when storage.backend is minio")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (expected s3 or minio)", c.Storage.Backend)
	}
	if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
		return errors.New("storage.access_key_id and storage.secret_access_key must be set together")
	}
	if c.Storage.PartSizeMiB < minimumMultipartPartSize {
		return fmt.Errorf("storage.part_size_mib must be at least %d", minimumMultipartPartSize)
	}
	return ensurePositiveMap(map[string]int{
		"storage.concurrency": c.Storage.Concurrency,
	})
}

func (c *Config) validateBuckets() error {
	required := []struct {
		key   string
		value string
	}{
		{"buckets.source", c.Buckets.Source},
		{"buckets.package", c.Buckets.Package},
		{"buckets.video_mezzanine", c.Buckets.VideoMezzanine},
		{"buckets.video_access", c.Buckets.VideoAccess},
		{"buckets.audio_access", c.Buckets.AudioAccess},
		{"buckets.poster", c.Buckets.Poster},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%s must be set", field.key)
		}
	}
	return nil
}

func (c *Config) validateArchivesSpace() error {
	if c.ArchivesSpace.BaseURL == "" {
		return errors.New("archivesspace.base_url must be set (or AS_BASEURL)")
	}
	parsed, err := url.Parse(c.ArchivesSpace.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("archivesspace.base_url: invalid URL %q", c.ArchivesSpace.BaseURL)
	}
	if c.ArchivesSpace.Repository == "" {
		return errors.New("archivesspace.repository must be set")
	}
	return ensurePositiveMap(map[string]int{
		"archivesspace.timeout_seconds": c.ArchivesSpace.TimeoutSeconds,
	})
}

func (c *Config) validatePoster() error {
	if c.Poster.FFmpegBinary == "" {
		return errors.New("poster.ffmpeg_binary must be set")
	}
	return ensurePositiveMap(map[string]int{
		"poster.thumbnail_window": c.Poster.ThumbnailWindow,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
