package bagit_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"avpackaging/internal/bagit"
	"avpackaging/internal/services"
	"avpackaging/internal/testsupport"
)

func newBagDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "r1")
	testsupport.WriteFile(t, filepath.Join(dir, "r1.wav"), 1024)
	testsupport.WriteFile(t, filepath.Join(dir, "nested", "notes.txt"), 10)
	return dir
}

func fixedNow() time.Time {
	return time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
}

func TestMakeDeclaresVersion(t *testing.T) {
	dir := newBagDir(t)
	if err := bagit.Make(dir, nil, bagit.Options{Now: fixedNow}); err != nil {
		t.Fatalf("Make: %v", err)
	}
	got := testsupport.ReadFixture(t, filepath.Join(dir, "bagit.txt"))
	want := "BagIt-Version: 0.97\nTag-File-Character-Encoding: UTF-8\n"
	if got != want {
		t.Fatalf("bagit.txt = %q, want %q", got, want)
	}
}

func TestMakeWritesBagLayout(t *testing.T) {
	dir := newBagDir(t)
	tags := []bagit.Tag{
		{Key: "ArchivesSpace-URI", Value: "/repositories/2/archival_objects/7"},
		{Key: "Rights-ID", Value: "1"},
		{Key: "Rights-ID", Value: "2"},
	}
	if err := bagit.Make(dir, tags, bagit.Options{Now: fixedNow}); err != nil {
		t.Fatalf("Make: %v", err)
	}

	for _, name := range []string{
		"bagit.txt", "bag-info.txt",
		"manifest-sha256.txt", "manifest-sha512.txt",
		"tagmanifest-sha256.txt", "tagmanifest-sha512.txt",
		"data/r1.wav", "data/nested/notes.txt",
	} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "r1.wav")); !os.IsNotExist(err) {
		t.Fatalf("expected payload moved out of bag root, err=%v", err)
	}

	info, err := bagit.ReadInfo(dir)
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if got := info.First("Payload-Oxum"); got != "1034.2" {
		t.Fatalf("unexpected Payload-Oxum %q", got)
	}
	if got := info.First("Bagging-Date"); got != "2024-05-01" {
		t.Fatalf("unexpected Bagging-Date %q", got)
	}
	if got := info.All("Rights-ID"); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("unexpected Rights-ID values %v", got)
	}

	manifest, err := os.ReadFile(filepath.Join(dir, "manifest-sha256.txt"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(manifest)), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[0], "  data/nested/notes.txt") {
		t.Fatalf("unexpected manifest %q", manifest)
	}

	if err := bagit.Validate(dir); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestMakeHandlesExistingDataEntry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "r1")
	testsupport.WriteFile(t, filepath.Join(dir, "data"), 5)
	if err := bagit.Make(dir, nil, bagit.Options{}); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "data")); err != nil {
		t.Fatalf("expected data file nested in payload: %v", err)
	}
}

func TestMakeRejectsMultilineTag(t *testing.T) {
	dir := newBagDir(t)
	err := bagit.Make(dir, []bagit.Tag{{Key: "Origin", Value: "a\nb"}}, bagit.Options{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMakeMissingDirectory(t *testing.T) {
	err := bagit.Make(filepath.Join(t.TempDir(), "missing"), nil, bagit.Options{})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected tool error, got %v", err)
	}
}

func TestValidateDetectsTampering(t *testing.T) {
	dir := newBagDir(t)
	if err := bagit.Make(dir, nil, bagit.Options{}); err != nil {
		t.Fatalf("Make: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data", "r1.wav"), []byte("changed"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if err := bagit.Validate(dir); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateDetectsUnlistedPayload(t *testing.T) {
	dir := newBagDir(t)
	if err := bagit.Make(dir, nil, bagit.Options{}); err != nil {
		t.Fatalf("Make: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(dir, "data", "extra.bin"), 3)
	if err := bagit.Validate(dir); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
