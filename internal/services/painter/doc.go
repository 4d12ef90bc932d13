// Package painter wraps the command-line agent that drives the browser
// canvas for a drawing session.
//
// It exposes a Client interface and a CLI implementation that launches the
// painter binary, streams JSON progress lines from stdout, and reports the
// image and transcript paths the session produced. Tests swap the command
// constructor to avoid running a real browser.
package painter
