package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alertbridge/alertbridge/pkg/protocol"
)

const (
	// DefaultRetryDelay is the fixed wait between reconnect attempts.
	DefaultRetryDelay = 5 * time.Second

	// readWait is how long the client tolerates silence before treating
	// the connection as dead. The server pings well inside this window.
	readWait = 90 * time.Second

	// writeTimeout bounds a single ack write.
	writeTimeout = 10 * time.Second
)

// Handler receives everything the owning application needs to know: each
// pushed event, and connectivity transitions. Transport errors themselves
// are logged by the client and never surfaced here.
//
// Init and sync events should be treated as a full replace of the
// application's alert view; alert events as a single add/remove.
type Handler interface {
	OnEvent(ev protocol.ServerEvent)
	OnConnectionChange(connected bool)
}

// Options configures a Client.
type Options struct {
	// URL is the push channel endpoint, e.g. ws://bridge:8081/ws.
	URL string

	// Token is the shared secret, sent as a Bearer header when non-empty.
	Token string

	// RetryDelay is the fixed wait between reconnect attempts. Zero means
	// DefaultRetryDelay. There is no backoff growth and no give-up: the
	// client retries until stopped.
	RetryDelay time.Duration
}

// dialFunc opens one WebSocket connection. Injectable for tests.
type dialFunc func(ctx context.Context, url string, header http.Header) (*websocket.Conn, error)

// Client maintains one logical subscription to the bridge across transport
// drops. At most one connection attempt is in flight at any time; the
// reconnect cycle is a loop, so arbitrarily many drops cost no stack.
type Client struct {
	opts    Options
	handler Handler
	dialFn  dialFunc

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// New creates a Client. Run must be called to start it.
func New(opts Options, h Handler) *Client {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	return &Client{
		opts:    opts,
		handler: h,
		dialFn:  defaultDial,
	}
}

// Run connects and keeps the subscription alive until ctx is cancelled.
// It blocks; start it on its own goroutine. Each established session ends
// with an OnConnectionChange(false) before the next attempt begins.
func (c *Client) Run(ctx context.Context) {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dialFn(ctx, c.opts.URL, header)
		if err != nil {
			slog.Warn("bridge client: connect failed, will retry",
				"url", c.opts.URL, "retry_in", c.opts.RetryDelay, "err", err)
			if !sleep(ctx, c.opts.RetryDelay) {
				return
			}
			continue
		}

		slog.Info("bridge client: connected", "url", c.opts.URL)
		c.setConn(conn)
		c.handler.OnConnectionChange(true)

		err = c.readLoop(ctx, conn)
		c.setConn(nil)
		c.handler.OnConnectionChange(false)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		slog.Warn("bridge client: connection lost, will reconnect",
			"url", c.opts.URL, "retry_in", c.opts.RetryDelay, "err", err)
		if !sleep(ctx, c.opts.RetryDelay) {
			return
		}
	}
}

// SendAck reports an acknowledged alert to the bridge. Acks are advisory:
// while disconnected the ack is silently dropped, never queued.
func (c *Client) SendAck(alertID string) {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.mu.Unlock()
	if !connected {
		return
	}

	msg := protocol.ClientMessage{Type: protocol.MessageAck, AlertID: alertID}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("bridge client: ack dropped", "alert_id", alertID, "err", err)
	}
}

// Connected reports the current connectivity status.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// readLoop decodes pushed events until the transport fails or ctx is
// cancelled. A watcher goroutine closes the connection on cancellation to
// unblock the read.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-loopCtx.Done()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(readWait)) //nolint:errcheck
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readWait)) //nolint:errcheck
		return conn.WriteControl(websocket.PongMessage,
			[]byte(appData), time.Now().Add(writeTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readWait)) //nolint:errcheck

		var ev protocol.ServerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Warn("bridge client: undecodable event", "err", err)
			continue
		}
		c.handler.OnEvent(ev)
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = conn != nil
	c.mu.Unlock()
}

// sleep waits for d, returning false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func defaultDial(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}
