// Package daemon coordinates the long-running MediaFlow process.
//
// It wires configuration, the entity store, the execution queue, the
// scheduler, the stage executor and the notification pipeline into a single
// lifecycle with flock-based locking to prevent multiple instances.
//
// Keep orchestration logic here: admission and stage semantics live in their
// own packages while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
