package builder

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oshokin/release-builder/internal/config"
	"github.com/oshokin/release-builder/internal/domain/release"
	"github.com/oshokin/release-builder/internal/repository/dist"
	"github.com/oshokin/release-builder/internal/toolchain"
	"github.com/oshokin/release-builder/internal/toolchain/mocks"
)

// buildFor matches build requests for one platform; empty os and arch match the host build.
type buildFor struct {
	os   string
	arch string
}

func (m buildFor) Matches(x any) bool {
	req, ok := x.(*toolchain.BuildRequest)

	return ok && req.OS == m.os && req.Arch == m.arch
}

func (m buildFor) String() string {
	if m.os == "" && m.arch == "" {
		return "host build request"
	}

	return fmt.Sprintf("build request for %s/%s", m.os, m.arch)
}

// fakeBuild writes a placeholder binary whose contents name the target platform.
func fakeBuild(_ context.Context, req *toolchain.BuildRequest) error {
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return err
	}

	//nolint:gosec // Placeholder executables.
	return os.WriteFile(req.Output, []byte("binary for "+req.OS+"/"+req.Arch), 0o755)
}

// newTestBuilder creates a Builder over the default matrix rooted in a temp directory.
func newTestBuilder(t *testing.T) (*Builder, *mocks.MockToolchain, *config.Config) {
	t.Helper()

	dir := t.TempDir()

	cfg := config.Default()
	cfg.SrcPath = filepath.Join(dir, "cmd", "qtcdbg")
	cfg.BinPathRoot = filepath.Join(dir, "cmd", "qtcdbg", "dist")
	cfg.ArchivePathRoot = filepath.Join(dir, "arch")
	require.NoError(t, config.Validate(cfg))

	tc := mocks.NewMockToolchain(gomock.NewController(t))

	return New(cfg, tc, dist.NewStore(cfg.ArchivePathRoot)), tc, cfg
}

// expectVersion registers the host build and version query.
func expectVersion(tc *mocks.MockToolchain, cfg *config.Config, output string) *gomock.Call {
	host := tc.EXPECT().Build(gomock.Any(), buildFor{}).
		DoAndReturn(func(ctx context.Context, req *toolchain.BuildRequest) error {
			if req.Dir != cfg.SrcPath {
				return errors.New("host build must run in the source directory")
			}

			if filepath.Base(req.Output) != release.ExecutableName(cfg.Program, runtime.GOOS) {
				return errors.New("unexpected host output name " + req.Output)
			}

			return fakeBuild(ctx, req)
		})

	return tc.EXPECT().Output(gomock.Any(), gomock.Any(), cfg.VersionFlag).
		Return(output, nil).
		After(host)
}

// TestReleaseProducesArchives runs the full matrix and checks every archive and the manifest.
func TestReleaseProducesArchives(t *testing.T) {
	t.Parallel()

	b, tc, cfg := newTestBuilder(t)

	// A stale archive from an earlier run must be replaced.
	require.NoError(t, os.MkdirAll(cfg.ArchivePathRoot, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.ArchivePathRoot, "qtcdbg-1.23-linux-amd64.tar.gz"), []byte("stale"), 0o600))

	prev := expectVersion(tc, cfg, "qtcdbg version 1.23 (abc123)\n")

	for _, target := range cfg.Targets {
		prev = tc.EXPECT().Build(gomock.Any(), buildFor{os: target.OS, arch: target.Arch}).
			DoAndReturn(func(ctx context.Context, req *toolchain.BuildRequest) error {
				if req.Dir != cfg.SrcPath {
					return errors.New("cross build must run in the source directory")
				}

				return fakeBuild(ctx, req)
			}).
			After(prev)
	}

	manifest, err := b.Release(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1.23", manifest.Version)

	wantFiles := []string{
		"qtcdbg-1.23-linux-amd64.tar.gz",
		"qtcdbg-1.23-windows-386.zip",
		"qtcdbg-1.23-windows-amd64.zip",
		"qtcdbg-1.23-darwin-amd64.zip",
	}

	require.Len(t, manifest.Archives, len(wantFiles))

	for i, entry := range manifest.Archives {
		require.Equal(t, wantFiles[i], entry.File)
		require.Equal(t, cfg.Targets[i].OS, entry.OS)

		data, err := os.ReadFile(filepath.Join(cfg.ArchivePathRoot, entry.File))
		require.NoError(t, err)

		sum, err := dist.Checksum(data)
		require.NoError(t, err)
		require.Equal(t, base64.StdEncoding.EncodeToString(sum), entry.Checksum)
	}

	entries, err := os.ReadDir(cfg.ArchivePathRoot)
	require.NoError(t, err)
	require.Len(t, entries, len(wantFiles)+1)

	_, err = os.Stat(filepath.Join(cfg.ArchivePathRoot, manifest.Filename()))
	require.NoError(t, err)

	name, contents := readTarGz(t, filepath.Join(cfg.ArchivePathRoot, wantFiles[0]))
	require.Equal(t, "qtcdbg", name)
	require.Equal(t, "binary for linux/amd64", contents)

	name, contents = readZip(t, filepath.Join(cfg.ArchivePathRoot, wantFiles[1]))
	require.Equal(t, "qtcdbg.exe", name)
	require.Equal(t, "binary for windows/386", contents)

	// Binaries stay in their per-target directories, staged archives are moved out.
	binDir := filepath.Join(cfg.BinPathRoot, "windows-386")
	binEntries, err := os.ReadDir(binDir)
	require.NoError(t, err)
	require.Len(t, binEntries, 1)
	require.Equal(t, "qtcdbg.exe", binEntries[0].Name())
}

// TestReleaseAbortsWithoutVersion ensures no target is built when the version cannot be parsed.
func TestReleaseAbortsWithoutVersion(t *testing.T) {
	t.Parallel()

	b, tc, cfg := newTestBuilder(t)
	expectVersion(tc, cfg, "qtcdbg development build\n")

	_, err := b.Release(context.Background())
	require.ErrorIs(t, err, release.ErrVersionNotFound)

	_, err = os.Stat(cfg.ArchivePathRoot)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = os.Stat(cfg.BinPathRoot)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestReleaseAbortsOnHostBuildFailure ensures a failing host build stops the run before the version query.
func TestReleaseAbortsOnHostBuildFailure(t *testing.T) {
	t.Parallel()

	b, tc, _ := newTestBuilder(t)
	tc.EXPECT().Build(gomock.Any(), buildFor{}).Return(toolchain.ErrBuildFailed)

	_, err := b.Release(context.Background())
	require.ErrorIs(t, err, toolchain.ErrBuildFailed)
}

// TestReleaseStopsOnBuildFailure ensures the first failing target aborts the remaining ones.
func TestReleaseStopsOnBuildFailure(t *testing.T) {
	t.Parallel()

	b, tc, cfg := newTestBuilder(t)
	prev := expectVersion(tc, cfg, "qtcdbg version 1.23")

	prev = tc.EXPECT().Build(gomock.Any(), buildFor{os: "linux", arch: "amd64"}).
		DoAndReturn(fakeBuild).
		After(prev)
	tc.EXPECT().Build(gomock.Any(), buildFor{os: "windows", arch: "386"}).
		Return(fmt.Errorf("%w: exit code 1", toolchain.ErrBuildFailed)).
		After(prev)

	_, err := b.Release(context.Background())
	require.ErrorIs(t, err, toolchain.ErrBuildFailed)
	require.Contains(t, err.Error(), "windows/386")

	entries, err := os.ReadDir(cfg.ArchivePathRoot)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "qtcdbg-1.23-linux-amd64.tar.gz", entries[0].Name())
}

// TestArchiveTargetMissingArtifact ensures archiving a target whose build produced nothing fails.
func TestArchiveTargetMissingArtifact(t *testing.T) {
	t.Parallel()

	b, _, cfg := newTestBuilder(t)
	target := cfg.Targets[0]

	artifact := b.ArtifactPath(target)
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0o755))

	_, err := b.ArchiveTarget(target, release.Version{Major: "1", Minor: "23"}, artifact)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestArtifactPath checks per-target binary locations.
func TestArtifactPath(t *testing.T) {
	t.Parallel()

	b, _, cfg := newTestBuilder(t)

	require.Equal(t,
		filepath.Join(cfg.BinPathRoot, "windows-amd64", "qtcdbg.exe"),
		b.ArtifactPath(release.Target{OS: "windows", Arch: "amd64", Format: release.FormatZip}))
	require.Equal(t,
		filepath.Join(cfg.BinPathRoot, "darwin-amd64", "qtcdbg"),
		b.ArtifactPath(release.Target{OS: "darwin", Arch: "amd64", Format: release.FormatZip}))
}

// readTarGz returns the single entry name and contents of a gzip tarball.
func readTarGz(t *testing.T, path string) (string, string) {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)

	defer func() {
		_ = f.Close()
	}()

	gr, err := gzip.NewReader(f)
	require.NoError(t, err)

	tr := tar.NewReader(gr)

	header, err := tr.Next()
	require.NoError(t, err)

	contents, err := io.ReadAll(tr)
	require.NoError(t, err)

	_, err = tr.Next()
	require.ErrorIs(t, err, io.EOF)

	return header.Name, string(contents)
}

// readZip returns the single entry name and contents of a deflated zip.
func readZip(t *testing.T, path string) (string, string) {
	t.Helper()

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)

	defer func() {
		_ = zr.Close()
	}()

	require.Len(t, zr.File, 1)
	require.Equal(t, zip.Deflate, zr.File[0].Method)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)

	defer func() {
		_ = rc.Close()
	}()

	contents, err := io.ReadAll(rc)
	require.NoError(t, err)

	return zr.File[0].Name, string(contents)
}
