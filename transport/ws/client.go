// Package ws connects a conversation session to the planning backend over a
// WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nachoal/planchat-go/transport"
)

// Options configures a Client
type Options struct {
	DialTimeout  time.Duration
	PingInterval time.Duration
	WriteTimeout time.Duration
	Header       http.Header
	Logger       zerolog.Logger
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		DialTimeout:  10 * time.Second,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		Logger:       zerolog.Nop(),
	}
}

// Client is a single backend connection. Send may be called from any
// goroutine; Listen must run on exactly one.
type Client struct {
	conn *websocket.Conn
	opts Options
	log  zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// Dial opens a connection to url.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	defaults := DefaultOptions()
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaults.DialTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.DialTimeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, url, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s (HTTP %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c := &Client{
		conn:   conn,
		opts:   opts,
		log:    opts.Logger.With().Str("component", "ws").Logger(),
		closed: make(chan struct{}),
	}
	c.log.Debug().Str("url", url).Msg("Connected")
	return c, nil
}

// Send submits user input for sessionID. turnID is echoed by the backend
// on every frame of the reply.
func (c *Client) Send(ctx context.Context, sessionID, turnID, text string) error {
	data, err := json.Marshal(transport.Frame{
		Type:      transport.FrameMessage,
		SessionID: sessionID,
		TurnID:    turnID,
		Content:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return c.write(ctx, websocket.TextMessage, data)
}

// Listen reads frames and dispatches them to h until the connection closes
// or ctx is cancelled. A clean shutdown returns nil.
func (c *Client) Listen(ctx context.Context, h transport.Handler) error {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()

	if c.opts.PingInterval > 0 {
		pongWait := 2 * c.opts.PingInterval
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go c.keepalive(stop)
	}

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.isClosed() {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Msg("Backend closed connection")
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		frame, err := transport.DecodeFrame(data)
		if err == nil {
			err = transport.Dispatch(frame, h)
		}
		if err != nil {
			c.log.Warn().Err(err).Msg("Dropping frame")
		}
	}
}

// Close sends a close frame and releases the connection. It is safe to
// call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Client) keepalive(stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.write(context.Background(), websocket.PingMessage, nil); err != nil {
				c.log.Debug().Err(err).Msg("Ping failed")
				return
			}
		}
	}
}

func (c *Client) write(ctx context.Context, msgType int, data []byte) error {
	if c.isClosed() {
		return transport.ErrClosed
	}

	deadline := time.Now().Add(c.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(msgType, data); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return transport.ErrClosed
		}
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
