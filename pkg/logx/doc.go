// Package logx wraps zerolog behind a small structured-logging API.
//
// Components take a logx.Logger by value; the zero value is a no-op, so
// library code never needs nil checks. The Service owns the sinks (console,
// optional JSON file) and can hot-swap level/outputs while existing Logger
// values keep working.
package logx
