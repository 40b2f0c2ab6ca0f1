// Package release defines the release domain: targets, archive formats,
// the discovered program version and the naming rules that tie them to
// files on disk.
package release
