// Package preflight runs startup checks for the daemon and the status command.
//
// Each check returns a Result rather than an error so callers can render the
// full list and decide whether a failure is fatal.
package preflight
