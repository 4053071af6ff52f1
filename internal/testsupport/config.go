package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"avpackaging/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.TmpDir = filepath.Join(base, "tmp")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "state", "history.db")
	cfgVal.Buckets = config.Buckets{
		Source:         "source",
		Package:        "packages",
		VideoMezzanine: "video-mezzanine",
		VideoAccess:    "video-access",
		AudioAccess:    "audio-access",
		Poster:         "posters",
	}
	cfgVal.Notifications.TopicARN = "arn:aws:sns:us-east-1:123456789012:digitized-av"
	cfgVal.ArchivesSpace.BaseURL = "http://127.0.0.1:0"
	cfgVal.Preflight.MinFreeGiB = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithLedgerDisabled turns off the run ledger.
func WithLedgerDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Enabled = false
	}
}

// WithCatalogURL points the catalog client at url.
func WithCatalogURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ArchivesSpace.BaseURL = url
	}
}

const (
	// FFmpegWritesOutput is a stub that writes a placeholder image to its last argument.
	FFmpegWritesOutput = "#!/bin/sh\nfor last; do :; done\nprintf 'PNG' > \"$last\"\n"
	// FFmpegFails is a stub that reports a decode error.
	FFmpegFails = "#!/bin/sh\necho 'Invalid data found when processing input' >&2\nexit 1\n"
)

// WithFFmpegStub installs an ffmpeg stub running script and points the poster
// settings at it.
func WithFFmpegStub(script string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Poster.FFmpegBinary = writeStub(b.t, filepath.Join(b.baseDir, "bin"), "ffmpeg", script)
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			writeStub(b.t, binDir, name, "#!/bin/sh\nexit 0\n")
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// WriteStub writes an executable script into dir and returns its path.
func WriteStub(t testing.TB, dir, name, script string) string {
	t.Helper()
	return writeStub(t, dir, name, script)
}

func writeStub(t testing.TB, dir, name, script string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.TmpDir)
}
