// Package operator defines the contract every operator honors when the stage
// executor invokes it.
//
// An operator receives an OutputObject wrapped in a State, mutates its Status,
// MetaData and Media through the State helpers, and returns the updated
// OutputObject. Fatal failure is signalled only through *ExecutionError, which
// carries the complete partially mutated OutputObject so the executor can
// commit it as-is. SetStatus deliberately performs no transition checks; the
// stage executor owns that discipline.
//
// AsyncJob implements the start/poll loop shared by every operator that fronts
// an external asynchronous job; SyncCall covers actions that answer in one
// request. HandleFailure is the error path operator that
// turns a failed invocation into a readable record.
package operator
