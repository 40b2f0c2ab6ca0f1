// Package logger wraps zap with a global sugared console logger and context
// helpers (ToContext, FromContext, WithName, WithKV).
//
// The release pipeline passes a context through every step; each step logs
// through the logger stored in it, so target-scoped fields follow the build
// from compile to placement.
package logger
