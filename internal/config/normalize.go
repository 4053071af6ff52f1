package config

import (
	"fmt"
	"strings"
)

// envBindings maps the environment variables used by the container deployment
// onto config fields. A non-empty variable takes precedence over the file.
func (c *Config) envBindings() map[string]*string {
	return map[string]*string{
		"TMP_DIR":                                &c.Paths.TmpDir,
		"AWS_SOURCE_BUCKET":                      &c.Buckets.Source,
		"AWS_DESTINATION_BUCKET":                 &c.Buckets.Package,
		"AWS_DESTINATION_BUCKET_VIDEO_MEZZANINE": &c.Buckets.VideoMezzanine,
		"AWS_DESTINATION_BUCKET_VIDEO_ACCESS":    &c.Buckets.VideoAccess,
		"AWS_DESTINATION_BUCKET_AUDIO_ACCESS":    &c.Buckets.AudioAccess,
		"AWS_DESTINATION_BUCKET_POSTER":          &c.Buckets.Poster,
		"AWS_SNS_TOPIC":                          &c.Notifications.TopicARN,
		"AWS_REGION_NAME":                        &c.Storage.Region,
		"AWS_ACCESS_KEY_ID":                      &c.Storage.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY":                  &c.Storage.SecretAccessKey,
		"AWS_ENDPOINT_URL":                       &c.Storage.Endpoint,
		"AS_BASEURL":                             &c.ArchivesSpace.BaseURL,
		"AS_USERNAME":                            &c.ArchivesSpace.Username,
		"AS_PASSWORD":                            &c.ArchivesSpace.Password,
		"AS_REPO":                                &c.ArchivesSpace.Repository,
		"LOGGING_LEVEL":                          &c.Logging.Level,
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	for name, field := range c.envBindings() {
		if value, ok := lookup(name); ok && strings.TrimSpace(value) != "" {
			*field = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeBuckets()
	c.normalizeNotifications()
	c.normalizeArchivesSpace()
	c.normalizePoster()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.TmpDir) == "" {
		c.Paths.TmpDir = defaultTmpDir
	}
	if c.Paths.TmpDir, err = expandPath(c.Paths.TmpDir); err != nil {
		return fmt.Errorf("paths.tmp_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LedgerPath) == "" {
		c.Paths.LedgerPath = defaultLedgerPath
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaultStorageBackend
	}
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = defaultRegion
	}
	c.Storage.Endpoint = strings.TrimRight(strings.TrimSpace(c.Storage.Endpoint), "/")
	c.Storage.AccessKeyID = strings.TrimSpace(c.Storage.AccessKeyID)
	c.Storage.SecretAccessKey = strings.TrimSpace(c.Storage.SecretAccessKey)
	if c.Storage.Concurrency <= 0 {
		c.Storage.Concurrency = defaultConcurrency
	}
	if c.Storage.PartSizeMiB <= 0 {
		c.Storage.PartSizeMiB = defaultPartSizeMiB
	}
}

func (c *Config) normalizeBuckets() {
	c.Buckets.Source = strings.TrimSpace(c.Buckets.Source)
	c.Buckets.Package = strings.TrimSpace(c.Buckets.Package)
	c.Buckets.VideoMezzanine = strings.TrimSpace(c.Buckets.VideoMezzanine)
	c.Buckets.VideoAccess = strings.TrimSpace(c.Buckets.VideoAccess)
	c.Buckets.AudioAccess = strings.TrimSpace(c.Buckets.AudioAccess)
	c.Buckets.Poster = strings.TrimSpace(c.Buckets.Poster)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.TopicARN = strings.TrimSpace(c.Notifications.TopicARN)
	c.Notifications.Service = strings.TrimSpace(c.Notifications.Service)
	if c.Notifications.Service == "" {
		c.Notifications.Service = defaultService
	}
}

func (c *Config) normalizeArchivesSpace() {
	c.ArchivesSpace.BaseURL = strings.TrimRight(strings.TrimSpace(c.ArchivesSpace.BaseURL), "/")
	c.ArchivesSpace.Username = strings.TrimSpace(c.ArchivesSpace.Username)
	c.ArchivesSpace.Repository = strings.TrimSpace(c.ArchivesSpace.Repository)
	if c.ArchivesSpace.Repository == "" {
		c.ArchivesSpace.Repository = defaultASpaceRepository
	}
	if c.ArchivesSpace.TimeoutSeconds <= 0 {
		c.ArchivesSpace.TimeoutSeconds = defaultASpaceTimeout
	}
}

func (c *Config) normalizePoster() {
	c.Poster.FFmpegBinary = strings.TrimSpace(c.Poster.FFmpegBinary)
	if c.Poster.FFmpegBinary == "" {
		c.Poster.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Poster.ThumbnailWindow <= 0 {
		c.Poster.ThumbnailWindow = defaultThumbnailWindow
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
