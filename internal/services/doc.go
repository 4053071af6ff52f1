// Package services defines shared utilities consumed by the packaging pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp reference ids, pipeline states, and run
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so every stage failure can
//     be classified (configuration, not found, ambiguous, transfer, tool,
//     classification, validation) with errors.Is.
//
// Use these helpers when wiring new stage logic so failure reporting stays
// uniform across the pipeline.
package services
