package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/oshokin/release-builder/internal/logger"
)

const (
	// envGOOS selects the target operating system.
	envGOOS = "GOOS"
	// envGOARCH selects the target architecture.
	envGOARCH = "GOARCH"

	// stderrTailSize bounds how much compiler output is attached to errors.
	stderrTailSize = 4 << 10
)

// Go runs the Go toolchain as an external process.
type Go struct {
	// executable is the toolchain binary, "go" unless configured otherwise.
	executable string
	// flags are extra build flags placed right after "build".
	flags []string
}

// NewGo creates a toolchain adapter for executable with extra build flags.
func NewGo(executable string, flags ...string) *Go {
	if executable == "" {
		executable = "go"
	}

	return &Go{
		executable: executable,
		flags:      append([]string(nil), flags...),
	}
}

// Build runs "<toolchain> build [flags] -o <output> ." in req.Dir.
// GOOS/GOARCH are set on the child only; a host build strips them so the
// result is runnable here.
func (g *Go) Build(ctx context.Context, req *BuildRequest) error {
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	args := make([]string, 0, len(g.flags)+4)
	args = append(args, "build")
	args = append(args, g.flags...)
	args = append(args, "-o", req.Output, ".")

	//nolint:gosec // The toolchain and its flags come from the release config.
	cmd := exec.CommandContext(ctx, g.executable, args...)
	cmd.Dir = req.Dir
	cmd.Env = buildEnvironment(os.Environ(), req)

	stderr := &tailBuffer{limit: stderrTailSize}
	stdout := &logWriter{ctx: ctx}

	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.DebugKV(ctx, "Running toolchain", "command", cmd.String(), "dir", cmd.Dir)

	err := cmd.Run()
	stdout.Flush()

	if err != nil {
		return fmt.Errorf("%w: %s: exit code %d: %s",
			ErrBuildFailed, cmd.String(), exitCode(err), stderr.String())
	}

	return nil
}

// Output runs binary with args and returns its standard output.
func (g *Go) Output(ctx context.Context, binary string, args ...string) (string, error) {
	//nolint:gosec // The binary was just built by the release pipeline.
	cmd := exec.CommandContext(ctx, binary, args...)

	stderr := &tailBuffer{limit: stderrTailSize}
	cmd.Stderr = stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %s: exit code %d: %s",
			ErrRunFailed, cmd.String(), exitCode(err), stderr.String())
	}

	return string(out), nil
}

// buildEnvironment derives the child environment from base for req.
func buildEnvironment(base []string, req *BuildRequest) []string {
	overrides := append([]string(nil), req.Env...)

	if req.OS != "" {
		overrides = append(overrides, envGOOS+"="+req.OS)
	}

	if req.Arch != "" {
		overrides = append(overrides, envGOARCH+"="+req.Arch)
	}

	drop := []string{envGOOS, envGOARCH}

	return mergeEnvironment(base, overrides, drop...)
}

// mergeEnvironment removes drop and every overridden key from base, then appends overrides.
func mergeEnvironment(base, overrides []string, drop ...string) []string {
	removed := make(map[string]struct{}, len(overrides)+len(drop))

	for _, key := range drop {
		removed[envKey(key)] = struct{}{}
	}

	for _, entry := range overrides {
		if key, _, ok := strings.Cut(entry, "="); ok {
			removed[envKey(key)] = struct{}{}
		}
	}

	result := make([]string, 0, len(base)+len(overrides))

	for _, entry := range base {
		key, _, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}

		if _, skip := removed[envKey(key)]; skip {
			continue
		}

		result = append(result, entry)
	}

	return append(result, overrides...)
}

// envKey normalizes an environment key; Windows keys are case-insensitive.
func envKey(key string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(key)
	}

	return key
}

// exitCode extracts the process exit code, -1 when the process did not exit normally.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = b.buf[over:]
	}

	return len(p), nil
}

func (b *tailBuffer) String() string {
	return strings.TrimSpace(string(b.buf))
}

// logWriter forwards toolchain stdout to the debug log line by line.
// A trailing partial line is held until its newline arrives or Flush is called.
type logWriter struct {
	ctx     context.Context //nolint:containedctx // Scoped to a single command run.
	partial []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.partial = append(w.partial, p...)

	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}

		w.emit(w.partial[:i])
		w.partial = w.partial[i+1:]
	}

	return len(p), nil
}

// Flush logs the remaining partial line, if any.
func (w *logWriter) Flush() {
	w.emit(w.partial)
	w.partial = nil
}

func (w *logWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) > 0 {
		logger.Debugf(w.ctx, "toolchain: %s", line)
	}
}
