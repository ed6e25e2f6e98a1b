// Package queue carries "advance this stage" work items between the scheduler
// and the stage executor.
//
// Delivery is at-least-once: Receive hides an item for the visibility timeout
// and Ack deletes it. An item that is not acknowledged in time becomes visible
// again with a fresh receipt, and acknowledging with the stale receipt has no
// effect. There is no ordering guarantee across items.
//
// Two backends implement Queue: a SQLite table next to the entity store and a
// Redis sorted set scored by visibility time.
package queue
