package stream

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// wsSubscribePath is the upstream WebSocket feed endpoint.
	wsSubscribePath = "/subscribe/ws"

	// Time allowed to read the next message before the connection is
	// considered dead. The server pings well inside this window.
	wsReadWait = 90 * time.Second

	// Maximum order event size accepted from the server.
	wsMaxMessageSize = 1 << 20
)

// WSClient consumes the upstream feed over a WebSocket. Text frames carry
// the same JSON order events as the SSE transport.
type WSClient struct {
	dialer *websocket.Dialer
	url    string
	state  connState
	logger *zap.Logger
}

var _ Source = (*WSClient)(nil)

func NewWSClient(baseURL string, logger *zap.Logger) (*WSClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + wsSubscribePath)
	if err != nil {
		return nil, fmt.Errorf("parsing feed address: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	return &WSClient{
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		url:    u.String(),
		logger: logger,
	}, nil
}

func (c *WSClient) State() State {
	return c.state.get()
}

func (c *WSClient) Stream(ctx context.Context, handle Handler) error {
	c.state.set(Connecting)
	defer c.state.set(Disconnected)

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing feed: %w", err)
	}

	// Unblock the read loop when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	c.state.set(Streaming)
	c.logger.Info("feed connected", zap.String("url", c.url))

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading feed: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadWait))

		if msgType != websocket.TextMessage {
			continue
		}
		if err := dispatch(ctx, raw, handle, c.logger); err != nil {
			return err
		}
	}
}
