// Package scheduler turns execution requests into running executions while
// keeping the number of running executions at or below the configured
// MaxConcurrentWorkflows.
//
// The running count lives in a store counter that is only changed by
// compare-and-swap. A request that finds no free slot joins a FIFO waiting
// list and is promoted when a running execution reaches a terminal status.
// After joining the list the requester re-checks capacity itself, so a slot
// released between its check and its append is never lost.
package scheduler
