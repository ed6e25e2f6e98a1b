// Package stageexec advances one stage of one workflow execution per queue
// item.
//
// Processing is idempotent: an item whose execution is terminal, whose stage
// is already finished, or whose stage is no longer current is dropped without
// side effects. Operation results are computed once per delivery and applied
// to the stored execution with compare-and-swap; a conflicting writer causes
// the results to be re-applied to a fresh read rather than re-invoking the
// operators.
package stageexec
