// Package curator extracts presentation metadata for a finished artwork.
//
// It feeds the submission prompt and the drawing-session transcript to an
// LLM and asks for a short title and artist statement. Extraction is
// best-effort about content quality but strict about shape: when the model
// is unavailable or returns nothing usable, the curator falls back to
// placeholder metadata so the pipeline never stalls on naming.
package curator
