// Package toolchain invokes the Go compiler and the programs it builds.
//
// Every invocation receives its working directory and environment explicitly
// through exec.Cmd, so cross builds never touch the process environment or
// the current directory.
package toolchain
