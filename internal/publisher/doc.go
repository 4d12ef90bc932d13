// Package publisher moves finished artifacts off the worker machine.
//
// The Uploader pushes the image, compressed video, and session transcript to
// object storage and deletes the local copies once the uploads land. The
// Publisher then upserts the gallery record that makes the artwork visible.
package publisher
