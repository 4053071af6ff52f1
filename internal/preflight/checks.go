package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"avpackaging/internal/deps"
	"avpackaging/internal/services"
)

const (
	catalogTimeout = 10 * time.Second
	gib            = 1 << 30
)

// CheckCatalog verifies that the catalog is reachable and accepts the
// configured credentials. It uses a short timeout and a single attempt.
func CheckCatalog(ctx context.Context, catalog Pinger) Result {
	const name = "ArchivesSpace"

	checkCtx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()

	if err := catalog.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeCatalogError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minGiB available to unprivileged users.
func CheckFreeSpace(name, path string, minGiB int) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	available := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%.1f GiB available", float64(available)/gib)
	if minGiB > 0 && available < uint64(minGiB)*gib {
		return Result{Name: name, Detail: fmt.Sprintf("%s, %d GiB required", detail, minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckFFmpeg verifies that the poster extraction binary resolves.
func CheckFFmpeg(binary string) Result {
	status := deps.CheckBinaries([]deps.Requirement{{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Required for poster extraction",
	}})[0]
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail}
	}
	return Result{Name: status.Name, Passed: true, Detail: status.Command}
}

// summarizeCatalogError produces a human-readable summary for catalog check failures.
func summarizeCatalogError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (catalog unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (catalog unreachable)"
	}
	if errors.Is(err, services.ErrConfiguration) {
		return "auth failed (check archivesspace credentials)"
	}
	if errors.Is(err, services.ErrNotFound) {
		return "repository not found"
	}
	return err.Error()
}
