// Package workflow runs the daemon's processing loops.
//
// The Manager starts a fixed number of worker lanes that receive stage items
// from the execution queue, hand them to the stage executor and acknowledge
// them once processed. A failed item is left unacknowledged so the queue
// redelivers it after the visibility timeout. When a change feed tailer is
// supplied the Manager also runs it alongside the lanes, so status
// notifications follow the same start and stop lifecycle.
package workflow
