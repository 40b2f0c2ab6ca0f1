package dist

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/release-builder/internal/domain/release"
	"github.com/oshokin/release-builder/internal/logger"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

const (
	// DefaultArchiveMode is the permission of placed archives and manifests.
	DefaultArchiveMode os.FileMode = 0o644

	// DefaultDirMode is the permission of the created archive root.
	DefaultDirMode os.FileMode = 0o755

	// ChecksumFunction hashes archives for placement verification and the manifest.
	ChecksumFunction crypto.Hash = crypto.SHA512
)

var errHashUnavailable = errors.New("hash function unavailable")

// Store places archives into a single distribution directory.
type Store struct {
	// root is the archive output directory.
	root string
}

// NewStore creates a store rooted at root. The directory is created lazily.
func NewStore(root string) *Store {
	return &Store{
		root: filepath.Clean(root),
	}
}

// Root returns the distribution directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the destination path for an archive filename.
func (s *Store) Path(filename string) string {
	return filepath.Join(s.root, filename)
}

// Place moves the archive at srcPath into the distribution directory,
// replacing a file of the same name. It returns the final path.
func (s *Store) Place(ctx context.Context, srcPath string) (string, error) {
	if err := os.MkdirAll(s.root, DefaultDirMode); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	srcPath = filepath.Clean(srcPath)
	targetPath := s.Path(filepath.Base(srcPath))

	if same, err := samePath(srcPath, targetPath); err != nil {
		return "", err
	} else if same {
		return targetPath, nil
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("read archive: %w", err)
	}

	checksum, err := Checksum(data)
	if err != nil {
		return "", err
	}

	// go-update swaps the target out with a rename, so it has to exist.
	createdPlaceholder := false

	if _, err = os.Stat(targetPath); errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File

		placeholder, err = os.OpenFile(filepath.Clean(targetPath), os.O_CREATE|os.O_WRONLY, DefaultArchiveMode)
		if err != nil {
			return "", fmt.Errorf("create archive placeholder: %w", err)
		}

		_ = placeholder.Close()
		createdPlaceholder = true
	} else if err != nil {
		return "", fmt.Errorf("stat %s: %w", targetPath, err)
	} else {
		logger.DebugKV(ctx, "Replacing existing archive", "path", targetPath)
	}

	options := goupdate.Options{
		TargetPath: targetPath,
		TargetMode: DefaultArchiveMode,
		Checksum:   checksum,
		Hash:       ChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if createdPlaceholder {
			_ = os.Remove(targetPath)
		}

		return "", fmt.Errorf("place archive %s: %w", targetPath, err)
	}

	if err = os.Remove(srcPath); err != nil {
		return "", fmt.Errorf("remove staged archive: %w", err)
	}

	return targetPath, nil
}

// SaveManifest writes the release manifest into the distribution directory.
func (s *Store) SaveManifest(manifest *release.Manifest) (string, error) {
	contents, err := yaml.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	path := s.Path(manifest.Filename())
	if err = os.WriteFile(path, contents, DefaultArchiveMode); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	return path, nil
}

// LoadManifest reads a manifest previously written by SaveManifest.
func (s *Store) LoadManifest(filename string) (*release.Manifest, error) {
	contents, err := os.ReadFile(s.Path(filename))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest release.Manifest
	if err = yaml.Unmarshal(contents, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	return &manifest, nil
}

// FileChecksum returns the checksum of a placed archive.
func (s *Store) FileChecksum(filename string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(filename))
	if err != nil {
		return nil, err
	}

	return Checksum(data)
}

// Checksum hashes data with ChecksumFunction.
func Checksum(data []byte) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := ChecksumFunction.New()
	if _, err := hasher.Write(data); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// samePath reports whether both paths name the same absolute location.
func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", a, err)
	}

	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", b, err)
	}

	return absA == absB, nil
}
