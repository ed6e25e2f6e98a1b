// Package store persists workflow definitions, workflow executions and the
// scheduler's shared state in SQLite.
//
// Every mutation of a shared record is conditional: executions carry a
// version that UpdateExecution compares before writing, counters change only
// through CompareAndSwapCounter, and admission slots are released by swapping
// slot_held from 1 to 0. Execution writes append a before/after change record
// in the same transaction, which the change feed tailer consumes.
//
// Status transitions of executions are checked against the lifecycle machine
// in lifecycle.go, so a record never regresses once terminal.
package store
