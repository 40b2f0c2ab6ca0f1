// Package config defines the release configuration: the program to build,
// its source and output directories, and the ordered target matrix.
//
// Configuration is either the built-in qtcdbg matrix (Default) or a YAML
// file loaded with Load. Validate rejects unknown archive formats up front,
// so a bad matrix fails before anything is compiled.
package config
