// Package preflight provides readiness checks for external services and
// filesystem paths that Easel depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup so a misconfigured studio is caught
//     before submissions start failing one by one.
//   - The CLI "easel status" command uses the individual check functions to
//     display service health.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
