package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory configuration.
type Paths struct {
	TmpDir     string `toml:"tmp_dir"`
	LogDir     string `toml:"log_dir"`
	LedgerPath string `toml:"ledger_path"`
}

// Storage contains blob store connection and transfer settings.
type Storage struct {
	Backend         string `toml:"backend"`
	Region          string `toml:"region"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	Endpoint        string `toml:"endpoint"`
	UsePathStyle    bool   `toml:"use_path_style"`
	UseSSL          bool   `toml:"use_ssl"`
	Concurrency     int    `toml:"concurrency"`
	PartSizeMiB     int    `toml:"part_size_mib"`
}

// Buckets names the source bucket and the five delivery destinations.
type Buckets struct {
	Source         string `toml:"source"`
	Package        string `toml:"package"`
	VideoMezzanine string `toml:"video_mezzanine"`
	VideoAccess    string `toml:"video_access"`
	AudioAccess    string `toml:"audio_access"`
	Poster         string `toml:"poster"`
}

// Notifications contains configuration for outcome events.
type Notifications struct {
	TopicARN string `toml:"topic_arn"`
	Service  string `toml:"service"`
}

// ArchivesSpace contains catalog connection settings.
type ArchivesSpace struct {
	BaseURL        string `toml:"base_url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	Repository     string `toml:"repository"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Poster contains poster frame extraction settings.
type Poster struct {
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	ThumbnailWindow int    `toml:"thumbnail_window"`
}

// Ledger controls the local run history database.
type Ledger struct {
	Enabled bool `toml:"enabled"`
}

// Preflight contains readiness thresholds checked before staging.
type Preflight struct {
	MinFreeGiB int `toml:"min_free_gib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the packaging service.
//
// Configuration sections by subsystem:
//   - Paths: working directory root, log directory, run ledger location
//   - Storage: blob store backend, credentials, transfer tuning
//   - Buckets: source and destination bucket names
//   - Notifications: outcome topic and service tag
//   - ArchivesSpace: catalog endpoint, credentials, repository
//   - Poster: ffmpeg binary and thumbnail window
//   - Ledger: run history toggle
//   - Preflight: readiness thresholds
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Buckets       Buckets       `toml:"buckets"`
	Notifications Notifications `toml:"notifications"`
	ArchivesSpace ArchivesSpace `toml:"archivesspace"`
	Poster        Poster        `toml:"poster"`
	Ledger        Ledger        `toml:"ledger"`
	Preflight     Preflight     `toml:"preflight"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Non-empty
// deployment environment variables (optionally seeded from a .env file in the
// working directory) override file values. The returned config has all path
// fields expanded and normalized and is not modified afterwards.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, "", false, err
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("avpackaging.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.TmpDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Ledger.Enabled && strings.TrimSpace(c.Paths.LedgerPath) != "" {
		if err := os.MkdirAll(filepath.Dir(c.Paths.LedgerPath), 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// StorageTransfer returns the multipart transfer tuning in bytes.
func (c *Config) StorageTransfer() (partSize int64, concurrency int) {
	return int64(c.Storage.PartSizeMiB) * 1024 * 1024, c.Storage.Concurrency
}
