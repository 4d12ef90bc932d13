// Package notifications pushes operator alerts through ntfy.
//
// A Service is constructed from configuration; when no topic is configured a
// noop implementation is returned so callers never need nil checks. These
// are operator-facing pings, distinct from the submitter emails the notify
// stage sends.
package notifications
