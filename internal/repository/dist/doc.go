// Package dist manages the distribution directory that receives finished
// archives.
//
// Archives are placed with go-update: the new bytes are verified against
// their SHA-512 checksum, written next to the destination and swapped in
// with a rename, so an existing archive of the same name is replaced rather
// than duplicated. The release manifest is persisted here as YAML.
package dist
