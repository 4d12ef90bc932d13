// Package daemon coordinates the long-running Easel process and system
// integration points.
//
// It wires configuration, queue storage, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances,
// and serves the HTTP control API (queue operations, status, health,
// Prometheus metrics). The daemon also exposes queue maintenance helpers
// used by the CLI.
//
// Keep orchestration logic here: individual workflow stages live in their
// respective packages while the daemon focuses on startup, shutdown, and
// high level coordination.
package daemon
