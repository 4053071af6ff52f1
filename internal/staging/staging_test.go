package staging_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"avpackaging/internal/logging"
	"avpackaging/internal/services"
	"avpackaging/internal/staging"
	"avpackaging/internal/testsupport"
)

func TestLayoutPaths(t *testing.T) {
	layout := staging.Layout{Root: "/tmp/av"}
	if got := layout.WorkDir("r1"); got != "/tmp/av/r1" {
		t.Fatalf("WorkDir = %q", got)
	}
	if got := layout.DerivativeDir("r1"); got != "/tmp/av/r1.derivatives" {
		t.Fatalf("DerivativeDir = %q", got)
	}
	if got := layout.ArchivePath("r1"); got != "/tmp/av/r1.tar.gz" {
		t.Fatalf("ArchivePath = %q", got)
	}
	if got := layout.LockPath("r1"); got != "/tmp/av/r1.lock" {
		t.Fatalf("LockPath = %q", got)
	}
}

func TestValidateRefID(t *testing.T) {
	if err := staging.ValidateRefID("a1b2c3d4"); err != nil {
		t.Fatalf("expected valid refid, got %v", err)
	}
	for _, refID := range []string{"", " r1", "a/b", `a\b`, ".hidden", "..", "r1.tar.gz", "r1.lock"} {
		if err := staging.ValidateRefID(refID); !errors.Is(err, services.ErrConfiguration) {
			t.Fatalf("ValidateRefID(%q) expected configuration error, got %v", refID, err)
		}
	}
}

func TestAcquireIsExclusive(t *testing.T) {
	layout := staging.Layout{Root: t.TempDir()}
	lock, err := layout.Acquire("r1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := layout.Acquire("r1"); !errors.Is(err, staging.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if other, err := layout.Acquire("r2"); err != nil {
		t.Fatalf("Acquire r2: %v", err)
	} else {
		_ = other.Release()
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(layout.LockPath("r1")); err != nil {
		t.Fatalf("expected lock file kept after release: %v", err)
	}
	again, err := layout.Acquire("r1")
	if err != nil {
		t.Fatalf("re-Acquire: %v", err)
	}
	_ = again.Release()
}

func TestAcquireRefreshesLockFile(t *testing.T) {
	layout := staging.Layout{Root: t.TempDir()}
	testsupport.WriteFixture(t, layout.LockPath("r1"), "")
	age(t, layout.LockPath("r1"), 48*time.Hour)

	lock, err := layout.Acquire("r1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()
	info, err := os.Stat(layout.LockPath("r1"))
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(info.ModTime()) > time.Hour {
		t.Fatalf("expected lock file touched, mtime %s", info.ModTime())
	}

	result := staging.CleanStale(context.Background(), layout, 24*time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("held lock file must survive cleanup, removed %v", result.Removed)
	}
}

func TestCleanStaleRemovesReleasedLockFiles(t *testing.T) {
	layout := staging.Layout{Root: t.TempDir()}
	lock, err := layout.Acquire("r1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	age(t, layout.LockPath("r1"), 48*time.Hour)

	result := staging.CleanStale(context.Background(), layout, 24*time.Hour, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != layout.LockPath("r1") {
		t.Fatalf("expected released lock removed, got %v", result.Removed)
	}
}

func age(t *testing.T, path string, d time.Duration) {
	t.Helper()
	old := time.Now().Add(-d)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestCleanStaleRemovesOldUnlockedArtifacts(t *testing.T) {
	layout := staging.Layout{Root: t.TempDir()}
	testsupport.WriteFile(t, filepath.Join(layout.WorkDir("old"), "old.wav"), 10)
	testsupport.WriteFile(t, filepath.Join(layout.DerivativeDir("old"), "old_a.mp3"), 10)
	testsupport.WriteFile(t, layout.ArchivePath("old"), 10)
	testsupport.WriteFile(t, filepath.Join(layout.WorkDir("fresh"), "fresh.wav"), 10)
	testsupport.WriteFile(t, filepath.Join(layout.WorkDir("busy"), "busy.wav"), 10)

	for _, p := range []string{layout.WorkDir("old"), layout.DerivativeDir("old"), layout.ArchivePath("old"), layout.WorkDir("busy")} {
		age(t, p, 48*time.Hour)
	}

	lock, err := layout.Acquire("busy")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	result := staging.CleanStale(context.Background(), layout, 24*time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors %+v", result.Errors)
	}
	if len(result.Removed) != 3 {
		t.Fatalf("expected 3 removals, got %v", result.Removed)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != layout.WorkDir("busy") {
		t.Fatalf("expected busy dir skipped, got %v", result.Skipped)
	}
	for _, p := range []string{layout.WorkDir("fresh"), layout.WorkDir("busy")} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", p, err)
		}
	}
	if _, err := os.Stat(layout.ArchivePath("old")); !os.IsNotExist(err) {
		t.Fatalf("expected old archive removed, err=%v", err)
	}
}

func TestCleanStaleMissingRoot(t *testing.T) {
	result := staging.CleanStale(context.Background(), staging.Layout{Root: filepath.Join(t.TempDir(), "missing")}, time.Hour, nil)
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestListArtifacts(t *testing.T) {
	layout := staging.Layout{Root: t.TempDir()}
	testsupport.WriteFile(t, filepath.Join(layout.WorkDir("r1"), "a.wav"), 100)
	testsupport.WriteFile(t, filepath.Join(layout.WorkDir("r1"), "b", "c.txt"), 5)
	testsupport.WriteFile(t, layout.ArchivePath("r2"), 7)

	artifacts, err := staging.ListArtifacts(layout)
	if err != nil {
		t.Fatalf("ListArtifacts: %v", err)
	}
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %+v", artifacts)
	}
	if artifacts[0].Name != "r1" || artifacts[0].Size != 105 || artifacts[0].RefID != "r1" {
		t.Fatalf("unexpected first artifact %+v", artifacts[0])
	}
	if artifacts[1].RefID != "r2" || artifacts[1].Size != 7 || artifacts[1].Locked {
		t.Fatalf("unexpected second artifact %+v", artifacts[1])
	}
}
