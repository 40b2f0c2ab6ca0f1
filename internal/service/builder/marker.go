package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/release-builder/internal/logger"
	"github.com/oshokin/release-builder/internal/repository/dist"
)

// MarkerFilename marks an archive directory as being written by a running release.
const MarkerFilename = ".release-builder.lock"

// commLength is how many bytes of an executable name the Linux process table keeps.
const commLength = 15

// ErrAlreadyRunning is returned when another live release holds the marker.
var ErrAlreadyRunning = errors.New("another release is running")

// executableName returns the file name this process was started as.
func executableName() string {
	return filepath.Base(os.Args[0])
}

// acquireMarker claims dir for this process and returns the function releasing it.
// A marker whose PID is gone or now belongs to a program other than owner
// is removed first.
func acquireMarker(ctx context.Context, dir, owner string) (func(), error) {
	if err := os.MkdirAll(dir, dist.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	path := filepath.Join(dir, MarkerFilename)

	pid, err := runningReleasePID(ctx, path, owner)
	if err != nil {
		return nil, err
	}

	if pid != 0 {
		return nil, fmt.Errorf("%w: pid %d holds %s", ErrAlreadyRunning, pid, path)
	}

	marker, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, dist.DefaultArchiveMode)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s appeared concurrently", ErrAlreadyRunning, path)
	} else if err != nil {
		return nil, fmt.Errorf("create release marker: %w", err)
	}

	_, err = marker.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := marker.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)

		return nil, fmt.Errorf("write release marker: %w", err)
	}

	return func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Unable to remove release marker", "path", path, "error", err)
		}
	}, nil
}

// runningReleasePID returns the PID of a live owner process holding the marker at path, or 0.
func runningReleasePID(ctx context.Context, path, owner string) (int, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		logger.DebugKV(ctx, "Release marker not found, continuing", "path", path)
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("read release marker: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err == nil && pid > 0 && pid != os.Getpid() {
		process, findErr := ps.FindProcess(pid)
		if findErr != nil {
			return 0, fmt.Errorf("inspect process %d: %w", pid, findErr)
		}

		if process != nil && sameExecutable(process.Executable(), owner) {
			return pid, nil
		}
	}

	logger.InfoKV(ctx, "Removing stale release marker", "path", path)

	if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove stale release marker: %w", err)
	}

	return 0, nil
}

// sameExecutable reports whether a process table name refers to owner.
// Linux truncates names to commLength bytes.
func sameExecutable(name, owner string) bool {
	if name == "" {
		return false
	}

	if strings.EqualFold(name, owner) {
		return true
	}

	return len(name) == commLength && strings.HasPrefix(owner, name)
}
