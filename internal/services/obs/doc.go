// Package obs implements a minimal OBS WebSocket v5 control client used to
// start and stop screen recordings.
//
// The client performs the Hello/Identify handshake (with challenge-response
// authentication when the server requires it), subscribes only to output
// events, and routes all inbound traffic through a single reader goroutine.
// Requests carry UUID correlation identifiers; responses are matched back to
// the waiting caller. Stopping a recording is asynchronous on the server
// side, so StopRecord parks a waiter for the RecordStateChanged event that
// reports the output fully stopped and the final file path.
//
// Connection loss fails every in-flight request and any parked stop waiter;
// callers are expected to reconnect before issuing further requests.
package obs
