package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"avpackaging/internal/config"
	"avpackaging/internal/services"
	"avpackaging/internal/testsupport"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 0); !result.Passed {
		t.Fatalf("expected pass with no threshold, got: %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, 1<<30)
	if result.Passed {
		t.Fatal("expected failure for an exabyte threshold")
	}
	if !strings.Contains(result.Detail, "required") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "missing"), 0); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckFFmpeg(t *testing.T) {
	stub := testsupport.WriteStub(t, t.TempDir(), "ffmpeg", testsupport.FFmpegWritesOutput)
	if result := CheckFFmpeg(stub); !result.Passed {
		t.Fatalf("expected stub to resolve, got: %s", result.Detail)
	}
	if result := CheckFFmpeg("clearly-not-present-ffmpeg"); result.Passed {
		t.Fatal("expected failure for missing binary")
	}
}

func TestCheckCatalog(t *testing.T) {
	ok := CheckCatalog(context.Background(), pingFunc(func(context.Context) error { return nil }))
	if !ok.Passed {
		t.Fatalf("expected pass, got: %s", ok.Detail)
	}

	denied := CheckCatalog(context.Background(), pingFunc(func(context.Context) error {
		return services.Wrap(services.ErrConfiguration, "", "catalog login", "", nil)
	}))
	if denied.Passed || !strings.Contains(denied.Detail, "auth failed") {
		t.Fatalf("unexpected result %+v", denied)
	}

	slow := CheckCatalog(context.Background(), pingFunc(func(ctx context.Context) error {
		return context.DeadlineExceeded
	}))
	if slow.Passed || !strings.Contains(slow.Detail, "timed out") {
		t.Fatalf("unexpected result %+v", slow)
	}

	other := CheckCatalog(context.Background(), pingFunc(func(context.Context) error { return errors.New("boom") }))
	if other.Passed || other.Detail != "boom" {
		t.Fatalf("unexpected result %+v", other)
	}
}

func TestCheckCatalogHonoursTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	result := CheckCatalog(ctx, pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	if result.Passed {
		t.Fatal("expected timeout failure")
	}
}

func TestRunLocal_NilConfig(t *testing.T) {
	if results := RunLocal(nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunLocal_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	results := RunLocal(cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if failed := Failures(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %+v", failed)
	}
}

func TestRunLocal_MissingTmpDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.TmpDir = filepath.Join(t.TempDir(), "missing")
	cfg.Poster.FFmpegBinary = "clearly-not-present-ffmpeg"

	failed := Failures(RunLocal(&cfg))
	if len(failed) != 3 {
		t.Fatalf("expected all checks to fail, got %+v", failed)
	}
}

func TestRunAll_IncludesCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	results := RunAll(context.Background(), cfg, pingFunc(func(context.Context) error { return nil }))
	found := false
	for _, r := range results {
		if r.Name == "ArchivesSpace" {
			found = true
			if !r.Passed {
				t.Errorf("catalog check failed: %s", r.Detail)
			}
		}
	}
	if !found {
		t.Fatal("expected catalog check in results")
	}
	if len(RunAll(context.Background(), cfg, nil)) != 3 {
		t.Fatal("expected catalog check skipped without a pinger")
	}
}
