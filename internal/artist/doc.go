// Package artist runs the drawing session: it mints the artwork identifier,
// launches the painter agent against the browser canvas, relays painter
// progress into the queue so heartbeats stay fresh, and records the image
// and transcript artifacts the session produced.
package artist
