package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	// subscribePath is the upstream SSE endpoint for transmission events.
	subscribePath = "/subscribe/transmissions"

	// maxEventSize bounds a single SSE line. Order events are small; this
	// leaves generous headroom.
	maxEventSize = 1 << 20
)

// SSEClient consumes the upstream's text/event-stream feed. Each `data:`
// line carries one JSON order event.
type SSEClient struct {
	httpClient *http.Client
	url        string
	state      connState
	logger     *zap.Logger
}

var _ Source = (*SSEClient)(nil)

// NewSSEClient builds a feed client for the given API base address. The
// underlying HTTP client carries no overall timeout: the subscription is a
// deliberately long-lived response body.
func NewSSEClient(baseURL string, logger *zap.Logger) *SSEClient {
	return &SSEClient{
		httpClient: &http.Client{},
		url:        strings.TrimRight(baseURL, "/") + subscribePath,
		logger:     logger,
	}
}

func (c *SSEClient) State() State {
	return c.state.get()
}

// Stream opens the subscription and dispatches events until the transport
// fails. A truncated chunked transfer surfaces as a read error here, never
// as a panic or a silent stop.
func (c *SSEClient) Stream(ctx context.Context, handle Handler) error {
	c.state.set(Connecting)
	defer c.state.set(Disconnected)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("creating subscribe request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subscribing to feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed subscription refused: status %d", resp.StatusCode)
	}

	c.state.set(Streaming)
	c.logger.Info("feed connected", zap.String("url", c.url))

	return c.readEvents(ctx, resp.Body, handle)
}

func (c *SSEClient) readEvents(ctx context.Context, body io.Reader, handle Handler) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)

	var data []byte
	for scanner.Scan() {
		line := scanner.Bytes()

		// Blank line terminates an event.
		if len(bytes.TrimSpace(line)) == 0 {
			if len(data) > 0 {
				if err := dispatch(ctx, data, handle, c.logger); err != nil {
					return err
				}
				data = nil
			}
			continue
		}

		// Comment lines keep idle connections alive.
		if line[0] == ':' {
			continue
		}

		field, value, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			continue
		}
		if string(field) != "data" {
			continue
		}
		value = bytes.TrimPrefix(value, []byte(" "))
		if len(data) > 0 {
			data = append(data, '\n')
		}
		data = append(data, value...)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading feed: %w", err)
	}
	// Server closed the stream cleanly; still a disconnect to the caller.
	return io.ErrUnexpectedEOF
}
