// Command mediaflow manages workflow definitions, requests executions and
// inspects admission state. Commands work directly against the entity store
// and execution queue, so they run whether or not the daemon is up; `daemon
// run` starts the processing loops in the foreground.
package main
