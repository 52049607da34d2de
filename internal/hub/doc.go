// Package hub manages the set of live subscriber sessions and broadcast
// fan-out for the bridge.
//
// Each Session runs a write pump goroutine plus a blocking read loop, with
// ping/pong keepalive. Broadcast delivers one marshalled event to every
// session through a bounded worker group; a session that cannot accept the
// event within the send timeout is removed from the set so one stalled
// subscriber never delays the webhook path or its peers.
//
// Session lifecycle: Connecting -> (capacity/auth checks, done by the
// server) -> Active -> Closed. Rejections and shutdown use distinct
// WebSocket close codes defined in pkg/protocol.
package hub
