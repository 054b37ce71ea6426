package venue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("venue: connection closed")

// Frame is one element of a connection's inbound stream. Exactly one of Msg
// and Err is set; a Frame with Err is always the last one.
type Frame struct {
	Msg Message
	Err error
}

// Conn is a single venue session. It is owned by one run and never reused.
type Conn interface {
	// Send writes one outbound frame. It fails with ErrClosed once Close
	// has been called.
	Send(ctx context.Context, m Message) error
	// Inbound yields decoded frames in arrival order. The channel is closed
	// when the remote side closes the session or after Close.
	Inbound() <-chan Frame
	// Close releases the session. Only the first call has any effect.
	Close() error
}

// Dialer opens a fresh Conn for every run.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

const defaultHandshakeTimeout = 10 * time.Second

// WSDialer dials the venue's websocket endpoint.
type WSDialer struct {
	Endpoint         string // e.g. wss://ws.derivws.com/websockets/v3
	AppID            string
	HandshakeTimeout time.Duration
	UserAgent        string
	Logger           *slog.Logger
}

func (d *WSDialer) URL() (string, error) {
	u, err := url.Parse(d.Endpoint)
	if err != nil {
		return "", fmt.Errorf("venue: bad endpoint %q: %w", d.Endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("venue: endpoint %q must be ws:// or wss://", d.Endpoint)
	}
	if d.AppID != "" {
		q := u.Query()
		q.Set("app_id", d.AppID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (d *WSDialer) Dial(ctx context.Context) (Conn, error) {
	target, err := d.URL()
	if err != nil {
		return nil, err
	}

	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	header := make(http.Header)
	if d.UserAgent != "" {
		header.Set("User-Agent", d.UserAgent)
	}

	ws, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("venue: dial %s: http %d: %w", d.Endpoint, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("venue: dial %s: %w", d.Endpoint, err)
	}

	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return newWSConn(ws, log), nil
}

type wsConn struct {
	ws  *websocket.Conn
	log *slog.Logger

	in   chan Frame
	done chan struct{}

	writeMu sync.Mutex
	reqID   int

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newWSConn(ws *websocket.Conn, log *slog.Logger) *wsConn {
	c := &wsConn{
		ws:   ws,
		log:  log,
		in:   make(chan Frame),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *wsConn) Inbound() <-chan Frame { return c.in }

func (c *wsConn) Send(ctx context.Context, m Message) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.reqID++
	b, err := Encode(m, c.reqID)
	if err != nil {
		return err
	}

	if dl, ok := ctx.Deadline(); ok {
		c.ws.SetWriteDeadline(dl)
	} else {
		c.ws.SetWriteDeadline(time.Time{})
	}

	c.log.Debug("venue send", "msg_type", TypeOf(m), "req_id", c.reqID)
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		if c.closed.Load() {
			return ErrClosed
		}
		return fmt.Errorf("venue: write %s: %w", TypeOf(m), err)
	}
	return nil
}

func (c *wsConn) readLoop() {
	defer close(c.in)

	for {
		_, b, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
				c.log.Debug("venue closed the session", "code", ce.Code, "text", ce.Text)
				return
			}
			c.deliver(Frame{Err: fmt.Errorf("venue: read: %w", err)})
			return
		}

		msg, err := Decode(b)
		if err != nil {
			c.deliver(Frame{Err: err})
			return
		}
		c.log.Debug("venue recv", "msg_type", TypeOf(msg))
		if !c.deliver(Frame{Msg: msg}) {
			return
		}
	}
}

func (c *wsConn) deliver(f Frame) bool {
	select {
	case c.in <- f:
		return true
	case <-c.done:
		return false
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
