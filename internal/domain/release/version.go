package release

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrVersionNotFound is returned when the version output carries no <digits>.<digits> pair.
var ErrVersionNotFound = errors.New("version not found in program output")

// versionPattern matches the first major.minor pair in a version string.
var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)`)

// Version is the major.minor pair reported by the released program.
// Digits are kept as printed so archive names match the program's output.
type Version struct {
	Major string `yaml:"major"`
	Minor string `yaml:"minor"`
}

// String renders the version as "<major>.<minor>".
func (v Version) String() string {
	return v.Major + "." + v.Minor
}

// ParseVersion extracts the first major.minor pair from output.
func ParseVersion(output string) (Version, error) {
	m := versionPattern.FindStringSubmatch(output)
	if m == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrVersionNotFound, strings.TrimSpace(output))
	}

	return Version{Major: m[1], Minor: m[2]}, nil
}
