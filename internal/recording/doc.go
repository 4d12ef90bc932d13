// Package recording contains the workflow stages that bracket a drawing
// session with a screen recording.
//
// Arm connects to OBS, reconciles any stray recording left by a crash, and
// starts capture before the painter touches the canvas. Finisher stops the
// recording, waits for the stopped event that carries the final file path,
// translates that host path into the local recordings directory, and waits
// for the file to finish syncing before handing it to compression.
package recording
