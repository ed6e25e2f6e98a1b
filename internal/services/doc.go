// Package services defines shared utilities consumed by the stage executor,
// scheduler, and operator integrations.
//
// Key responsibilities:
//   - Context helpers that stamp execution ids, stage names, operator names,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     consistent classification into logs and CLI output.
package services
