// Package notifications publishes execution status changes to external
// subscribers.
//
// A Message is a normalized snapshot of an execution taken when its status
// changed. Publishers deliver it over ntfy (HTTP) or a Redis stream; New
// builds a fan-out over every publisher the configuration enables and
// degrades to a no-op when none is configured. Delivery is best effort:
// callers log publish failures and move on.
package notifications
