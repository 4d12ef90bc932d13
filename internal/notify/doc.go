// Package notify emails submitters when their artwork is published.
//
// Delivery is best-effort: a submission without an email address, a
// disabled mailer, or a failed send never blocks completion. Failures are
// logged and swallowed.
package notify
