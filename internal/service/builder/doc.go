// Package builder runs the release pipeline.
//
// It discovers the program version by building it for the host and running
// it with the version flag, then cross-compiles, archives and places one
// archive per configured target, strictly in order. Any failure aborts the
// remaining targets. A marker file in the archive directory keeps two
// releases from writing there at the same time.
package builder
