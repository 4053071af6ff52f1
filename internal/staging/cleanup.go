package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"avpackaging/internal/logging"
)

// CleanStaleResult contains the outcome of a stale artifact sweep.
type CleanStaleResult struct {
	Removed []string
	Skipped []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes working directories, set-aside derivative directories,
// archives and lock files older than maxAge. Entries whose refid lock is held
// by a running process are skipped.
func CleanStale(ctx context.Context, layout Layout, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	root := strings.TrimSpace(layout.Root)
	if root == "" {
		return result
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	heldCache := map[string]bool{}

	for _, entry := range entries {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: ctx.Err()})
			return result
		}

		path := filepath.Join(root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		refID := refIDOf(entry.Name())
		held, ok := heldCache[refID]
		if !ok {
			held = layout.held(refID)
			heldCache[refID] = held
		}
		if held {
			result.Skipped = append(result.Skipped, path)
			logger.Info("skipped locked artifact",
				logging.String("path", path),
				logging.String(logging.FieldRefID, refID),
				logging.String(logging.FieldEventType, "stale_cleanup_skipped"),
			)
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale artifact", "stale_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check tmp_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Info("removed stale artifact",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "stale_cleanup"),
		)
	}

	return result
}

// Artifact describes one entry in the tmp root.
type Artifact struct {
	Name    string
	Path    string
	RefID   string
	ModTime time.Time
	Size    int64
	Locked  bool
}

// ListArtifacts returns every entry in the tmp root with its size and lock state.
func ListArtifacts(layout Layout) ([]Artifact, error) {
	root := strings.TrimSpace(layout.Root)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	artifacts := make([]Artifact, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(root, entry.Name())
		refID := refIDOf(entry.Name())
		size := info.Size()
		if info.IsDir() {
			size, _ = dirSize(path)
		}
		artifacts = append(artifacts, Artifact{
			Name:    entry.Name(),
			Path:    path,
			RefID:   refID,
			ModTime: info.ModTime(),
			Size:    size,
			Locked:  layout.held(refID),
		})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
