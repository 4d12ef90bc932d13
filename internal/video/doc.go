// Package video compresses raw screen recordings with ffmpeg into
// web-friendly H.264 MP4 files and removes the bulky source capture once the
// compressed copy is safely on disk.
package video
