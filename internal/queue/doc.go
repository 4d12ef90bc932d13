// Package queue persists artwork submissions in SQLite and exposes helpers
// for driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stale-item recovery, and the conditional
// status transitions that guard single-active-job processing. Submissions
// capture the prompt, priority, artifact paths, extracted metadata, and
// published URLs so stages can coordinate without additional state.
//
// Acquisition order is priority_score descending with created_at (then id)
// ascending as the tie-break, which makes the order total and deterministic.
// The transition into any processing status is a conditional update on the
// expected current status; a lost race surfaces as ErrConflict rather than a
// double acquire.
//
// The database is treated as transient storage for in-flight work rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package queue
