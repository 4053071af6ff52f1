package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFixture creates path, and any missing parents, holding body.
func WriteFixture(t testing.TB, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteFile creates a stand-in media file of size bytes. Sizes below one are
// raised to one so the file is never empty.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	WriteFixture(t, path, string(bytes.Repeat([]byte{'B'}, int(max(size, 1)))))
}

// ReadFixture returns the contents of path.
func ReadFixture(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
