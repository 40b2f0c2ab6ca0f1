// Package archive packs a single build artifact into a zip or gzipped tarball.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/release-builder/internal/domain/release"
)

// ErrUnsupportedFormat is returned for formats the archiver cannot write.
var ErrUnsupportedFormat = errors.New("unsupported archive format")

// Create writes an archive of the given format at archivePath holding exactly
// one entry: the file at filePath stored under its base name.
// The archive is written to a temporary file first, so a failure leaves no partial archive.
func Create(format release.Format, archivePath, filePath string) error {
	var write func(w io.Writer, src *os.File, info os.FileInfo) error

	switch format {
	case release.FormatZip:
		write = writeZip
	case release.FormatTar:
		write = writeTarGz
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	src, err := os.Open(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("open build artifact: %w", err)
	}

	defer func() {
		_ = src.Close()
	}()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("stat build artifact: %w", err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("build artifact %s is not a regular file", filePath)
	}

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), "."+filepath.Base(archivePath)+".*")
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	tmpName := tmp.Name()

	if err = write(tmp, src, info); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write %s archive: %w", format, err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close archive: %w", err)
	}

	if err = os.Rename(tmpName, archivePath); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("finalize archive: %w", err)
	}

	return nil
}

// writeZip stores src as a single deflated entry.
func writeZip(w io.Writer, src *os.File, info os.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = info.Name()
	header.Method = zip.Deflate

	zw := zip.NewWriter(w)

	entry, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	if _, err = io.Copy(entry, src); err != nil {
		return err
	}

	return zw.Close()
}

// writeTarGz stores src as a single entry of a gzip-compressed tar stream.
func writeTarGz(w io.Writer, src *os.File, info os.FileInfo) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}

	header.Name = info.Name()

	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	if err = tw.WriteHeader(header); err != nil {
		return err
	}

	if _, err = io.Copy(tw, src); err != nil {
		return err
	}

	if err = tw.Close(); err != nil {
		return err
	}

	return gw.Close()
}
