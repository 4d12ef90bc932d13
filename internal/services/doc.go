// Package services defines shared utilities consumed by the workflow stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp submission IDs, stage names, lanes, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let the retry engine
//     and the failure handler classify errors uniformly (retryable vs
//     terminal vs fatal-to-the-process).
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
