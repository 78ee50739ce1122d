package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	closeGracePeriod = 2 * time.Second
)

// MessageType discriminates the two payload classes on the channel.
type MessageType int

const (
	TextMessage MessageType = iota + 1
	BinaryMessage
)

// Message is one inbound payload.
type Message struct {
	Type MessageType
	Data []byte
}

// Conn is an open bidirectional channel to the voice agent.
type Conn interface {
	// WriteJSON sends a control message as a text frame.
	WriteJSON(v any) error
	// WriteBinary sends raw audio as a binary frame.
	WriteBinary(p []byte) error
	// ReadMessage blocks for the next inbound payload. A remote close is
	// reported as *CloseError.
	ReadMessage() (Message, error)
	// Open reports whether the channel accepts writes.
	Open() bool
	// Close is idempotent.
	Close() error
}

// Dialer opens channels to the agent.
type Dialer interface {
	Dial(ctx context.Context, url, token string) (Conn, error)
}

// WSDialer dials the agent over a WebSocket, passing the token as the
// "token" subprotocol pair.
type WSDialer struct {
	Dialer *websocket.Dialer
}

// NewWSDialer returns a dialer with the default websocket settings.
func NewWSDialer() *WSDialer {
	return &WSDialer{Dialer: websocket.DefaultDialer}
}

// Dial implements Dialer.
func (d *WSDialer) Dial(ctx context.Context, url, token string) (Conn, error) {
	base := d.Dialer
	if base == nil {
		base = websocket.DefaultDialer
	}
	dialer := *base
	dialer.Subprotocols = []string{"token", token}

	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, &TransportError{Op: "dial", URL: url, Err: fmt.Errorf("websocket handshake failed (status %d): %w", resp.StatusCode, err)}
		}
		return nil, &TransportError{Op: "dial", URL: url, Err: err}
	}
	return newWSConn(conn), nil
}

type wsConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) WriteJSON(v any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(v); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

func (c *wsConn) WriteBinary(p []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

func (c *wsConn) ReadMessage() (Message, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				c.closed.Store(true)
				return Message{}, &CloseError{Code: closeErr.Code, Reason: closeErr.Text}
			}
			if c.closed.Load() {
				return Message{}, ErrClosed
			}
			return Message{}, &TransportError{Op: "receive", Err: err}
		}

		switch messageType {
		case websocket.TextMessage:
			return Message{Type: TextMessage, Data: data}, nil
		case websocket.BinaryMessage:
			return Message{Type: BinaryMessage, Data: data}, nil
		default:
			continue
		}
	}
}

func (c *wsConn) Open() bool {
	return !c.closed.Load()
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		// WriteControl may run concurrently with a data write, so a stalled
		// write delays Close by at most closeGracePeriod.
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeGracePeriod))
		_ = c.conn.Close()
	})
	return nil
}
