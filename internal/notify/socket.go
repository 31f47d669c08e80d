package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
)

// readLimit caps a single inbound frame.
const readLimit = 1 << 20

// Conn is an open push-channel connection.
type Conn interface {
	// Read blocks for the next frame. A closed connection returns an
	// error that websocket.CloseStatus can classify.
	Read(ctx context.Context) ([]byte, error)
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens push-channel connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// HandshakeError is a dial the server answered with a non-upgrade HTTP
// status.
type HandshakeError struct {
	Status int
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("websocket handshake rejected with status %d: %v", e.Status, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Unauthorized reports whether the server refused the credential.
func (e *HandshakeError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// WebSocketDialer dials with github.com/coder/websocket.
type WebSocketDialer struct {
	HTTPClient *http.Client
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, u string) (Conn, error) {
	c, resp, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, &HandshakeError{Status: resp.StatusCode, Err: err}
		}
		return nil, err
	}
	c.SetReadLimit(readLimit)
	return wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w wsConn) Close(code websocket.StatusCode, reason string) error {
	return w.c.Close(code, reason)
}

// ChannelURL builds the push endpoint URL for token from the websocket
// base URL.
func ChannelURL(wsBase, token string) string {
	return strings.TrimRight(wsBase, "/") + "/ws/notifications?token=" + url.QueryEscape(token)
}
