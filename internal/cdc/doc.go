// Package cdc turns the execution change feed into status notifications.
//
// Pipeline.Handle inspects a batch of change records and publishes one
// Message for every MODIFY whose Status differs between the old and new
// image. Inserts, removals and content-only modifications publish nothing.
// Tailer reads the feed from a durable cursor and hands batches to the
// pipeline.
package cdc
