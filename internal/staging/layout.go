package staging

import (
	"fmt"
	"path/filepath"
	"strings"

	"avpackaging/internal/services"
)

const (
	derivativeSuffix = ".derivatives"
	archiveSuffix    = ".tar.gz"
	lockSuffix       = ".lock"
)

// Layout derives every local path a run uses from the tmp root and refid.
type Layout struct {
	Root string
}

// WorkDir is the directory staged files land in and the bag is built from.
func (l Layout) WorkDir(refID string) string {
	return filepath.Join(l.Root, refID)
}

// DerivativeDir holds derivatives set aside before bagging.
func (l Layout) DerivativeDir(refID string) string {
	return filepath.Join(l.Root, refID+derivativeSuffix)
}

// ArchivePath is the compressed bag.
func (l Layout) ArchivePath(refID string) string {
	return filepath.Join(l.Root, refID+archiveSuffix)
}

// LockPath is the lock file guarding refID's paths.
func (l Layout) LockPath(refID string) string {
	return filepath.Join(l.Root, refID+lockSuffix)
}

// ValidateRefID rejects reference ids that cannot safely name a directory
// and key prefix.
func ValidateRefID(refID string) error {
	invalid := func(reason string) error {
		return services.Wrap(services.ErrConfiguration, "", "validate refid", fmt.Sprintf("refid %q %s", refID, reason), nil)
	}
	switch {
	case strings.TrimSpace(refID) == "":
		return invalid("is empty")
	case refID != strings.TrimSpace(refID):
		return invalid("has surrounding whitespace")
	case strings.ContainsAny(refID, `/\`):
		return invalid("contains a path separator")
	case strings.HasPrefix(refID, "."):
		return invalid("starts with a dot")
	case strings.HasSuffix(refID, derivativeSuffix), strings.HasSuffix(refID, archiveSuffix), strings.HasSuffix(refID, lockSuffix):
		return invalid("ends with a reserved suffix")
	}
	return nil
}

// refIDOf maps a tmp-root entry back to its refid.
func refIDOf(name string) string {
	for _, suffix := range []string{derivativeSuffix, archiveSuffix, lockSuffix} {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok {
			return trimmed
		}
	}
	return name
}
