package builder

import (
	"context"
	"fmt"
	"os"

	"github.com/oshokin/release-builder/internal/config"
	"github.com/oshokin/release-builder/internal/logger"
	"github.com/oshokin/release-builder/internal/repository/dist"
	"github.com/oshokin/release-builder/internal/toolchain"
)

// Options contains inputs for the release entry point.
type Options struct {
	// ConfigPath is an optional YAML config; the built-in matrix is used when empty.
	ConfigPath string
}

// Run executes the release workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "release-builder")

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	unlock, err := acquireMarker(ctx, cfg.ArchivePathRoot, executableName())
	if err != nil {
		return err
	}

	defer unlock()

	b := New(cfg, toolchain.NewGo(cfg.Toolchain, cfg.BuildFlags...), dist.NewStore(cfg.ArchivePathRoot))

	manifest, err := b.Release(ctx)
	if err != nil {
		return fmt.Errorf("release %s: %w", cfg.Program, err)
	}

	logger.InfoKV(ctx, "Release completed successfully",
		"program", manifest.Program,
		"version", manifest.Version,
		"archives", len(manifest.Archives),
		"archive_dir", cfg.ArchivePathRoot)

	return nil
}

// loadConfig reads the config at path, or resolves the built-in one against
// the current directory when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	cfg.Resolve(wd)

	return cfg, nil
}
