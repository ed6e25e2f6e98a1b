// Package daemonrun owns the daemon process entry point: logger setup,
// preflight reporting, the pid file and signal-driven shutdown.
package daemonrun
