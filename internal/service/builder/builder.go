package builder

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/oshokin/release-builder/internal/archive"
	"github.com/oshokin/release-builder/internal/config"
	"github.com/oshokin/release-builder/internal/domain/release"
	"github.com/oshokin/release-builder/internal/logger"
	"github.com/oshokin/release-builder/internal/repository/dist"
	"github.com/oshokin/release-builder/internal/toolchain"
)

// versionCommandTimeout bounds the version query of the freshly built program.
const versionCommandTimeout = 10 * time.Second

// Builder produces release archives for every configured target.
type Builder struct {
	// cfg is the validated release configuration.
	cfg *config.Config
	// toolchain compiles the program and runs the host build.
	toolchain toolchain.Toolchain
	// store receives finished archives.
	store *dist.Store
}

// New creates a Builder. cfg must already be validated.
func New(cfg *config.Config, tc toolchain.Toolchain, store *dist.Store) *Builder {
	return &Builder{
		cfg:       cfg,
		toolchain: tc,
		store:     store,
	}
}

// Release discovers the version and runs build, archive and place for each
// target in order. It returns the manifest written to the archive directory.
func (b *Builder) Release(ctx context.Context) (*release.Manifest, error) {
	logger.InfoKV(ctx, "Discovering program version", "program", b.cfg.Program, "src", b.cfg.SrcPath)

	v, err := b.DiscoverVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover version: %w", err)
	}

	logger.InfoKV(ctx, "Discovered program version", "version", v.String())

	manifest := release.NewManifest(b.cfg.Program, v)

	for _, target := range b.cfg.Targets {
		placed, err := b.releaseTarget(ctx, target, v)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", target, err)
		}

		entry, err := b.manifestEntry(target, placed)
		if err != nil {
			return nil, err
		}

		manifest.Archives = append(manifest.Archives, entry)
	}

	path, err := b.store.SaveManifest(manifest)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Saved release manifest", "path", path)

	return manifest, nil
}

// DiscoverVersion builds the program for the host into a temporary directory,
// runs it with the version flag and parses the first major.minor pair.
func (b *Builder) DiscoverVersion(ctx context.Context) (release.Version, error) {
	tmpDir, err := os.MkdirTemp("", "release-builder-")
	if err != nil {
		return release.Version{}, fmt.Errorf("create temporary directory: %w", err)
	}

	defer func() {
		_ = os.RemoveAll(tmpDir)
	}()

	binary := filepath.Join(tmpDir, release.ExecutableName(b.cfg.Program, runtime.GOOS))

	err = b.toolchain.Build(ctx, &toolchain.BuildRequest{
		Dir:    b.cfg.SrcPath,
		Output: binary,
		Env:    b.cfg.Environ(),
	})
	if err != nil {
		return release.Version{}, fmt.Errorf("host build: %w", err)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, versionCommandTimeout)
	defer cancel()

	output, err := b.toolchain.Output(cmdCtx, binary, b.cfg.VersionFlag)
	if err != nil {
		return release.Version{}, err
	}

	logger.DebugKV(ctx, "Version output", "output", output)

	return release.ParseVersion(output)
}

// BuildTarget cross-compiles the program for target and returns the artifact path.
func (b *Builder) BuildTarget(ctx context.Context, target release.Target) (string, error) {
	output := b.ArtifactPath(target)

	logger.InfoKV(ctx, fmt.Sprintf("Building %s", target), "output", output)

	err := b.toolchain.Build(ctx, &toolchain.BuildRequest{
		Dir:    b.cfg.SrcPath,
		Output: output,
		OS:     target.OS,
		Arch:   target.Arch,
		Env:    b.cfg.Environ(),
	})
	if err != nil {
		return "", err
	}

	return output, nil
}

// ArchiveTarget packs the artifact of target into its output directory
// and returns the archive path.
func (b *Builder) ArchiveTarget(target release.Target, v release.Version, artifact string) (string, error) {
	archivePath := filepath.Join(filepath.Dir(artifact), target.ArchiveName(b.cfg.Program, v))

	if err := archive.Create(target.Format, archivePath, artifact); err != nil {
		return "", err
	}

	return archivePath, nil
}

// ArtifactPath returns "<bin_path_root>/<os>-<arch>/<program>[.exe]".
func (b *Builder) ArtifactPath(target release.Target) string {
	return filepath.Join(b.cfg.BinPathRoot, target.BuildIdentifier(), target.ArtifactName(b.cfg.Program))
}

// releaseTarget runs the full build, archive and place cycle for one target.
func (b *Builder) releaseTarget(ctx context.Context, target release.Target, v release.Version) (string, error) {
	ctx = logger.WithKV(ctx, "target", target.String())

	artifact, err := b.BuildTarget(ctx, target)
	if err != nil {
		return "", err
	}

	archivePath, err := b.ArchiveTarget(target, v, artifact)
	if err != nil {
		return "", err
	}

	placed, err := b.store.Place(ctx, archivePath)
	if err != nil {
		return "", err
	}

	logger.Infof(ctx, "created %s", placed)

	return placed, nil
}

// manifestEntry describes a placed archive with its checksum.
func (b *Builder) manifestEntry(target release.Target, placed string) (release.ManifestEntry, error) {
	name := filepath.Base(placed)

	checksum, err := b.store.FileChecksum(name)
	if err != nil {
		return release.ManifestEntry{}, fmt.Errorf("checksum %s: %w", name, err)
	}

	return release.ManifestEntry{
		File:     name,
		OS:       target.OS,
		Arch:     target.Arch,
		Format:   target.Format,
		Checksum: base64.StdEncoding.EncodeToString(checksum),
	}, nil
}
