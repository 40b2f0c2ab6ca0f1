package toolchain

import (
	"context"
	"errors"
)

// ErrBuildFailed is returned when the toolchain exits with a non-zero status.
var ErrBuildFailed = errors.New("toolchain build failed")

// ErrRunFailed is returned when the built program cannot be run or exits with a non-zero status.
var ErrRunFailed = errors.New("program run failed")

// BuildRequest describes one "<toolchain> build" invocation.
type BuildRequest struct {
	// Dir is the package directory the build runs in.
	Dir string
	// Output is the path of the produced binary.
	Output string
	// OS is the target GOOS; empty means the host platform.
	OS string
	// Arch is the target GOARCH; empty means the host platform.
	Arch string
	// Env holds extra KEY=VALUE pairs for this invocation only.
	Env []string
}

// Toolchain builds packages and runs the resulting programs.
//
//go:generate go run go.uber.org/mock/mockgen -source=toolchain.go -destination=mocks/mock_toolchain.go -package=mocks
type Toolchain interface {
	// Build compiles the package in req.Dir into req.Output.
	Build(ctx context.Context, req *BuildRequest) error
	// Output runs binary with args and returns its standard output.
	Output(ctx context.Context, binary string, args ...string) (string, error)
}
