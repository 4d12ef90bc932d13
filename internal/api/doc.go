// Package api defines the transport DTOs shared by the daemon's HTTP API and
// the CLI, plus the queue service that produces them.
//
// Keeping conversion in one place means the HTTP surface and the CLI tables
// render the same view of a submission.
package api
