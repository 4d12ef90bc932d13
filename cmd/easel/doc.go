// Command easel is the command-line interface for the Easel drawing daemon.
//
// The same binary runs the daemon (easel run) and manages it: queueing
// drawing requests, inspecting the submission queue, and checking studio
// health. Queue commands operate on the shared SQLite store directly, so
// they work whether or not the daemon is running.
package main
