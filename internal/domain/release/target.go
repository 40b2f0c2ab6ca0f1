package release

import (
	"errors"
	"fmt"
	"strings"
)

// Format identifies the archive container produced for a target.
type Format string

const (
	// FormatZip produces a deflate-compressed zip archive.
	FormatZip Format = "zip"
	// FormatTar produces a gzip-compressed tarball.
	FormatTar Format = "tar"

	// windowsOS is the only OS whose executables get the .exe suffix.
	windowsOS = "windows"
	// executableSuffix is appended to Windows build artifacts.
	executableSuffix = ".exe"
)

// ErrUnknownFormat is returned for archive format tags outside the supported set.
var ErrUnknownFormat = errors.New("unknown archive format")

// ParseFormat validates a format tag.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatZip, FormatTar:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Extension returns the archive filename extension including the leading dot.
func (f Format) Extension() string {
	switch f {
	case FormatZip:
		return ".zip"
	case FormatTar:
		return ".tar.gz"
	default:
		return ""
	}
}

// Target is one (OS, architecture, archive format) combination of the release matrix.
type Target struct {
	// OS is the GOOS value, e.g. "linux".
	OS string `yaml:"os"`
	// Arch is the GOARCH value, e.g. "amd64".
	Arch string `yaml:"arch"`
	// Format selects the archive container.
	Format Format `yaml:"format"`
}

// String renders the target as os/arch.
func (t Target) String() string {
	return t.OS + "/" + t.Arch
}

// BuildIdentifier returns the per-target directory name "<os>-<arch>".
func (t Target) BuildIdentifier() string {
	return t.OS + "-" + t.Arch
}

// ArtifactName returns the build output filename for program on this target.
func (t Target) ArtifactName(program string) string {
	return ExecutableName(program, t.OS)
}

// ArchiveName returns "<program>-<major>.<minor>-<os>-<arch>.<ext>".
func (t Target) ArchiveName(program string, v Version) string {
	return program + "-" + v.String() + "-" + t.BuildIdentifier() + t.Format.Extension()
}

// ExecutableName appends the executable suffix when goos is Windows.
func ExecutableName(program, goos string) string {
	if goos == windowsOS {
		return program + executableSuffix
	}

	return program
}
