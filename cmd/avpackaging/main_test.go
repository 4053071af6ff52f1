package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"avpackaging/internal/config"
	"avpackaging/internal/notifications"
	"avpackaging/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	tmpDir     string
	configPath string
}

func setupCLITestEnv(t *testing.T, catalogURL string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("REFID", "")
	t.Setenv("RIGHTS_IDS", "")
	chdir(t, base)

	if catalogURL == "" {
		catalogURL = "http://127.0.0.1:1"
	}
	ffmpeg := testsupport.WriteStub(t, filepath.Join(base, "bin"), "ffmpeg", testsupport.FFmpegWritesOutput)
	env := &cliTestEnv{
		baseDir:    base,
		tmpDir:     filepath.Join(base, "tmp"),
		configPath: filepath.Join(base, "config.toml"),
	}
	content := fmt.Sprintf(`[paths]
tmp_dir = %q
log_dir = %q
ledger_path = %q

[buckets]
source = "source"
package = "packages"
video_mezzanine = "video-mezzanine"
video_access = "video-access"
audio_access = "audio-access"
poster = "posters"

[archivesspace]
base_url = %q
username = "archivist"
password = "secret"
repository = "2"

[poster]
ffmpeg_binary = %q

[preflight]
min_free_gib = 0
`, env.tmpDir, filepath.Join(base, "logs"), filepath.Join(base, "state", "history.db"), catalogURL, ffmpeg)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func (e *cliTestEnv) appendConfig(t *testing.T, extra string) {
	t.Helper()
	f, err := os.OpenFile(e.configPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(extra); err != nil {
		t.Fatalf("append config: %v", err)
	}
}

func (e *cliTestEnv) replaceConfig(t *testing.T, old, replacement string) {
	t.Helper()
	data, err := os.ReadFile(e.configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), old) {
		t.Fatalf("config does not contain %q", old)
	}
	updated := strings.Replace(string(data), old, replacement, 1)
	if err := os.WriteFile(e.configPath, []byte(updated), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func stubNotifier(t *testing.T) *testsupport.Notifier {
	t.Helper()
	notifier := &testsupport.Notifier{}
	previous := newNotifier
	newNotifier = func(context.Context, *config.Config, *slog.Logger) (notifications.Service, error) {
		return notifier, nil
	}
	t.Cleanup(func() { newNotifier = previous })
	return notifier
}

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/archivist/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"session": "token"})
	})
	mux.HandleFunc("GET /repositories/2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"uri": "/repositories/2"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Source bucket: source")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--overwrite", target}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateRejectsMissingBuckets(t *testing.T) {
	env := setupCLITestEnv(t, "")
	if err := os.WriteFile(env.configPath, []byte("[buckets]\nsource = \"source\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "buckets.package") {
		t.Fatalf("expected missing bucket error, got %v", err)
	}
}

func TestStatusReportsChecks(t *testing.T) {
	srv := newCatalogServer(t)
	env := setupCLITestEnv(t, srv.URL)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Tmp directory", "Free space", "FFmpeg", "ArchivesSpace", "Reachable", "No working files"} {
		requireContains(t, out, want)
	}
	if strings.Contains(out, "FAIL") {
		t.Fatalf("expected every check to pass:\n%s", out)
	}
}

func TestStatusListsWorkingFiles(t *testing.T) {
	env := setupCLITestEnv(t, "")
	testsupport.WriteFile(t, filepath.Join(env.tmpDir, "abc123", "abc123.wav"), 2048)

	out, _, err := runCLI(t, []string{"status", "--skip-catalog"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "abc123")
	requireContains(t, out, "2.0 KiB")
	if strings.Contains(out, "ArchivesSpace") {
		t.Fatalf("expected catalog check skipped:\n%s", out)
	}
}

func TestRunRequiresRefID(t *testing.T) {
	env := setupCLITestEnv(t, "")
	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "--refid") {
		t.Fatalf("expected refid error, got %v", err)
	}
}

func TestRunFailureIsRecordedInHistory(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	t.Setenv("REFID", "abc123")
	out, _, err = runCLI(t, []string{"run", "--kind", "film", "--rights-ids", "1"}, env.configPath)
	if err == nil {
		t.Fatal("expected run to fail for an unknown kind")
	}
	requireContains(t, err.Error(), "failed in staging")
	requireContains(t, out, "State:  Failed")
	requireContains(t, out, "configuration")

	out, _, err = runCLI(t, []string{"history", "--refid", "abc123"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "abc123")
	requireContains(t, out, "Failed (Staging)")
}

func TestRunWithoutLedgerStillNotifies(t *testing.T) {
	env := setupCLITestEnv(t, "")
	notifier := stubNotifier(t)
	ledgerDir := filepath.Join(env.baseDir, "ledger-is-a-dir")
	if err := os.MkdirAll(ledgerDir, 0o755); err != nil {
		t.Fatal(err)
	}
	env.replaceConfig(t, filepath.Join(env.baseDir, "state", "history.db"), ledgerDir)

	_, _, err := runCLI(t, []string{"run", "--refid", "abc123", "--kind", "film"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "failed in staging") {
		t.Fatalf("expected staging failure, got %v", err)
	}
	if len(notifier.Events) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.Events))
	}
	event := notifier.Events[0]
	if event.RefID != "abc123" || event.Outcome() != notifications.OutcomeFailure {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestRunStorageSetupFailureNotifies(t *testing.T) {
	env := setupCLITestEnv(t, "")
	notifier := stubNotifier(t)
	env.appendConfig(t, `
[storage]
backend = "minio"
endpoint = "ftp://minio.local"
access_key_id = "key"
secret_access_key = "secret"
`)

	_, _, err := runCLI(t, []string{"run", "--refid", "abc123", "--kind", "audio"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "open storage") {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(notifier.Events) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.Events))
	}
	event := notifier.Events[0]
	if event.RefID != "abc123" || event.Outcome() != notifications.OutcomeFailure {
		t.Fatalf("unexpected event %+v", event)
	}
	if !strings.Contains(event.Message(), "unknown package abc123 failed") {
		t.Fatalf("unexpected message %q", event.Message())
	}
}

func TestCleanRemovesStaleEntries(t *testing.T) {
	env := setupCLITestEnv(t, "")
	stale := filepath.Join(env.tmpDir, "old")
	fresh := filepath.Join(env.tmpDir, "new")
	testsupport.WriteFile(t, filepath.Join(stale, "old.wav"), 1)
	testsupport.WriteFile(t, filepath.Join(fresh, "new.wav"), 1)
	past := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"clean", "--max-age", "48h"}, env.configPath)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	requireContains(t, out, "Removed 1, skipped 0, failed 0")
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale dir removed, err=%v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("expected fresh dir kept: %v", err)
	}
}

func TestHelpers(t *testing.T) {
	cases := map[int64]string{0: "0 B", 1023: "1023 B", 2048: "2.0 KiB", 5 << 30: "5.0 GiB"}
	for size, want := range cases {
		if got := formatBytes(size); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", size, got, want)
		}
	}
	if got := formatDuration(90 * time.Minute); got != "1h30m" {
		t.Fatalf("formatDuration = %q", got)
	}
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Fatalf("truncate = %q", got)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if err := os.Chdir(oldwd); err != nil {
			panic("testing.Chdir: " + err.Error())
		}
	})
}
