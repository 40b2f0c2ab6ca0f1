package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/release-builder/internal/domain/release"
)

// Config describes what to release and where the results go.
type Config struct {
	// Program is the name of the released binary, e.g. "qtcdbg".
	Program string `yaml:"program"`
	// SrcPath is the directory holding the program's main package.
	SrcPath string `yaml:"src_path"`
	// BinPathRoot is the root of per-target binary directories.
	BinPathRoot string `yaml:"bin_path_root"`
	// ArchivePathRoot is the directory receiving finished archives.
	ArchivePathRoot string `yaml:"archive_path_root"`
	// Targets is the ordered release matrix.
	Targets []release.Target `yaml:"targets"`
	// Toolchain is the compiler executable invoked as "<toolchain> build".
	Toolchain string `yaml:"toolchain,omitempty"`
	// VersionFlag is passed to the host build to make it print its version.
	VersionFlag string `yaml:"version_flag,omitempty"`
	// BuildFlags are inserted between "build" and "-o".
	BuildFlags []string `yaml:"build_flags,omitempty"`
	// Env holds extra environment variables for cross builds.
	Env map[string]string `yaml:"env,omitempty"`
}

const (
	// DefaultConfigFilename is the filename written by "release-builder init".
	DefaultConfigFilename = "release-builder.yaml"

	// DefaultToolchain is the compiler used when none is configured.
	DefaultToolchain = "go"

	// DefaultVersionFlag makes the released program print its version.
	DefaultVersionFlag = "-v"

	// DefaultFilePermissions is the permission of written config files.
	DefaultFilePermissions = 0o644
)

var (
	// ErrConfigIsNotSet is returned when a nil configuration is provided.
	ErrConfigIsNotSet = errors.New("configuration is not set")
	// ErrProgramRequired is returned when the program name is missing.
	ErrProgramRequired = errors.New("program name must be provided")
	// ErrPathRequired is returned when one of the path roots is missing.
	ErrPathRequired = errors.New("path must be provided")
	// ErrNoTargets is returned when the target list is empty.
	ErrNoTargets = errors.New("at least one target must be configured")
	// ErrIncompleteTarget is returned when a target misses its OS or architecture.
	ErrIncompleteTarget = errors.New("target os and arch must be provided")
	// ErrDuplicateTarget is returned when two targets share an os/arch pair.
	ErrDuplicateTarget = errors.New("duplicate target")
	// ErrUnknownFormat is returned for archive formats other than zip and tar.
	ErrUnknownFormat = release.ErrUnknownFormat
	// ErrConfigExists is returned by WriteDefault when the file is already present.
	ErrConfigExists = errors.New("configuration file already exists")
	// ErrReservedEnv is returned when env tries to set variables owned by the builder.
	ErrReservedEnv = errors.New("environment variable is set per target")
)

// reservedEnv lists variables the builder sets for every cross build.
//
//nolint:gochecknoglobals // Read-only lookup table.
var reservedEnv = map[string]struct{}{
	"GOOS":   {},
	"GOARCH": {},
}

// Default returns the built-in release matrix for qtcdbg.
// Paths are relative to the directory the builder runs from (tools/dist).
func Default() *Config {
	return &Config{
		Program:         "qtcdbg",
		SrcPath:         filepath.Join("..", "..", "cmd", "qtcdbg"),
		BinPathRoot:     filepath.Join("..", "..", "cmd", "qtcdbg", "dist"),
		ArchivePathRoot: filepath.Join("..", "..", "arch"),
		Targets: []release.Target{
			{OS: "linux", Arch: "amd64", Format: release.FormatTar},
			{OS: "windows", Arch: "386", Format: release.FormatZip},
			{OS: "windows", Arch: "amd64", Format: release.FormatZip},
			{OS: "darwin", Arch: "amd64", Format: release.FormatZip},
		},
		Toolchain:   DefaultToolchain,
		VersionFlag: DefaultVersionFlag,
	}
}

// Load reads configuration from path, resolves relative paths against the
// config file's directory and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	path = filepath.Clean(path)

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	baseDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve config directory: %w", err)
	}

	cfg.Resolve(baseDir)

	return &cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return ErrConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate checks required fields, normalizes target formats and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return ErrConfigIsNotSet
	}

	if strings.TrimSpace(cfg.Program) == "" {
		return ErrProgramRequired
	}

	paths := []struct {
		name  string
		value string
	}{
		{"src_path", cfg.SrcPath},
		{"bin_path_root", cfg.BinPathRoot},
		{"archive_path_root", cfg.ArchivePathRoot},
	}
	for _, p := range paths {
		if strings.TrimSpace(p.value) == "" {
			return fmt.Errorf("%s: %w", p.name, ErrPathRequired)
		}
	}

	if err := validateTargets(cfg.Targets); err != nil {
		return err
	}

	for key := range cfg.Env {
		if _, reserved := reservedEnv[strings.ToUpper(key)]; reserved {
			return fmt.Errorf("%s: %w", key, ErrReservedEnv)
		}
	}

	if cfg.Toolchain == "" {
		cfg.Toolchain = DefaultToolchain
	}

	if cfg.VersionFlag == "" {
		cfg.VersionFlag = DefaultVersionFlag
	}

	return nil
}

// validateTargets rejects empty matrices, unknown formats and targets
// that would produce the same archive.
func validateTargets(targets []release.Target) error {
	if len(targets) == 0 {
		return ErrNoTargets
	}

	seen := make(map[string]struct{}, len(targets))

	for i := range targets {
		t := &targets[i]

		if t.OS == "" || t.Arch == "" {
			return fmt.Errorf("target #%d: %w", i+1, ErrIncompleteTarget)
		}

		format, err := release.ParseFormat(string(t.Format))
		if err != nil {
			return fmt.Errorf("target %s: %w", t, err)
		}

		t.Format = format

		id := t.BuildIdentifier() + t.Format.Extension()
		if _, dup := seen[id]; dup {
			return fmt.Errorf("target %s: %w", t, ErrDuplicateTarget)
		}

		seen[id] = struct{}{}
	}

	return nil
}

// Resolve makes relative paths absolute against baseDir.
func (c *Config) Resolve(baseDir string) {
	c.SrcPath = resolvePath(baseDir, c.SrcPath)
	c.BinPathRoot = resolvePath(baseDir, c.BinPathRoot)
	c.ArchivePathRoot = resolvePath(baseDir, c.ArchivePathRoot)
}

// Environ renders Env as sorted KEY=VALUE pairs.
func (c *Config) Environ() []string {
	keys := make([]string, 0, len(c.Env))
	for key := range c.Env {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, key+"="+c.Env[key])
	}

	return env
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(baseDir, path)
}

// WriteDefault saves the built-in configuration to path.
// An existing file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if path == "" {
		path = DefaultConfigFilename
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s: %w", path, ErrConfigExists)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}

	return Save(path, Default())
}
