// Package protocol defines the wire format shared by the bridge server and
// its subscribers.
//
// Server-to-client messages are ServerEvent envelopes:
//
//	{"type": "init",  "alerts": [...], "timestamp": "..."}  on attach
//	{"type": "sync",  "alerts": [...], "timestamp": "..."}  after each batch
//	{"type": "alert", "data":  {...},  "timestamp": "..."}  one changed alert
//
// Client-to-server messages are ClientMessage envelopes; only
// {"type": "ack", "alert_id": "..."} is defined. Acks are advisory and may
// be dropped by either side.
package protocol
