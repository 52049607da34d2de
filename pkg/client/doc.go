// Package client implements the reconnecting subscriber used by every
// downstream consumer of the bridge's push feed.
//
// The client presents the illusion of a stable feed over an unreliable
// transport: on any drop it notifies the owner, waits a fixed delay
// (default 5s), and retries without limit. Every (re)connect yields a
// fresh init snapshot from the server, so the owner can always rebuild its
// full alert view by treating init and sync events as a replace.
package client
