package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"avpackaging/internal/services"
)

// PosterOptions configures poster extraction.
type PosterOptions struct {
	FFmpegBinary string
	// Window is the number of candidate frames the thumbnail filter considers.
	Window int
}

// ExtractPoster writes PosterFileName into dir from the video access copy at
// source, letting ffmpeg's thumbnail filter choose the most representative
// frame from the first Window frames.
func ExtractPoster(ctx context.Context, opts PosterOptions, source, dir string) (string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "deriving", "stat access copy", "access copy unavailable", err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrExternalTool, "deriving", "stat access copy", fmt.Sprintf("%s is a directory", source), nil)
	}

	binary := strings.TrimSpace(opts.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	window := opts.Window
	if window <= 0 {
		window = 300
	}

	dest := filepath.Join(dir, PosterFileName)
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vf", fmt.Sprintf("thumbnail=%d", window),
		"-frames:v", "1",
		dest,
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(dest)
		return "", services.Wrap(services.ErrExternalTool, "deriving", "ffmpeg thumbnail", strings.TrimSpace(string(output)), err)
	}
	if _, err := os.Stat(dest); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "deriving", "ffmpeg thumbnail", "poster not written", err)
	}
	return dest, nil
}
