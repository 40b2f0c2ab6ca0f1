// Package version exposes build metadata of release-builder itself.
//
// Version, Commit and BuildTime are injected via -ldflags "-X ..." and default
// to local-build values. This is unrelated to the version discovered from the
// program being released, which lives in the release domain package.
package version
