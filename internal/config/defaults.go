package config

const (
	defaultConfigPath        = "~/.config/avpackaging/config.toml"
	defaultTmpDir            = "~/.local/share/avpackaging/tmp"
	defaultLogDir            = "~/.local/share/avpackaging/logs"
	defaultLedgerPath        = "~/.local/share/avpackaging/history.db"
	defaultStorageBackend    = "s3"
	defaultRegion            = "us-east-1"
	defaultConcurrency       = 10
	defaultPartSizeMiB       = 25
	defaultService           = "digitized_av_packaging"
	defaultASpaceBaseURL     = "http://localhost:8089"
	defaultASpaceRepository  = "2"
	defaultASpaceTimeout     = 30
	defaultFFmpegBinary      = "ffmpeg"
	defaultThumbnailWindow   = 300
	defaultPreflightFreeGiB  = 1
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	minimumMultipartPartSize = 5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TmpDir:     defaultTmpDir,
			LogDir:     defaultLogDir,
			LedgerPath: defaultLedgerPath,
		},
		Storage: Storage{
			Backend:     defaultStorageBackend,
			Region:      defaultRegion,
			UseSSL:      true,
			Concurrency: defaultConcurrency,
			PartSizeMiB: defaultPartSizeMiB,
		},
		Notifications: Notifications{
			Service: defaultService,
		},
		ArchivesSpace: ArchivesSpace{
			BaseURL:        defaultASpaceBaseURL,
			Repository:     defaultASpaceRepository,
			TimeoutSeconds: defaultASpaceTimeout,
		},
		Poster: Poster{
			FFmpegBinary:    defaultFFmpegBinary,
			ThumbnailWindow: defaultThumbnailWindow,
		},
		Ledger: Ledger{
			Enabled: true,
		},
		Preflight: Preflight{
			MinFreeGiB: defaultPreflightFreeGiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
