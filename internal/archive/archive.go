// Package archive compresses a bag directory into a gzipped tarball whose root
// entry is the directory's own name.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"avpackaging/internal/services"
)

// Suffix is appended to the directory path to name the archive.
const Suffix = ".tar.gz"

// ContentType is the media type used when delivering archives.
const ContentType = "application/gzip"

// PathFor returns the archive path produced for dir.
func PathFor(dir string) string {
	return filepath.Clean(dir) + Suffix
}

// Compress writes PathFor(dir) and removes dir. On any failure the partial
// archive is removed and dir is left untouched.
func Compress(dir string) (string, error) {
	dir = filepath.Clean(dir)
	dest := PathFor(dir)
	if err := writeArchive(dir, dest); err != nil {
		_ = os.Remove(dest)
		return "", services.Wrap(services.ErrExternalTool, "compressing", "write archive", dest, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "compressing", "remove bag directory", dir, err)
	}
	return dest, nil
}

func writeArchive(dir, dest string) (err error) {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	file, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	gz := gzip.NewWriter(file)
	tw := tar.NewWriter(gz)
	root := filepath.Base(dir)
	parent := filepath.Dir(dir)

	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if !fi.Mode().IsRegular() && !fi.IsDir() {
			return fmt.Errorf("unsupported file type %s", p)
		}
		rel, err := filepath.Rel(parent, p)
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if fi.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, src)
		src.Close()
		return err
	})
	if walkErr != nil {
		return fmt.Errorf("archive %s: %w", root, walkErr)
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}
