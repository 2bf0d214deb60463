package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Fetcher retrieves transmission payloads from the message store.
type Fetcher interface {
	FetchByID(ctx context.Context, uuid string) ([]byte, error)
	FetchBySequence(ctx context.Context, seq uint32) ([]byte, error)
}

// Order is the store's view of a transmission order.
type Order struct {
	UUID          string  `json:"uuid"`
	Status        string  `json:"status"`
	TxSeqNum      *uint64 `json:"tx_seq_num"`
	MessageSize   int64   `json:"message_size"`
	UploadEndedAt string  `json:"upload_ended_at"`
}

// HTTPClient talks to the message store over its two read endpoints. Every
// call is a fresh fetch; transient failures are retried with exponential
// backoff before the error is returned to the caller.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	zstdDec    *zstd.Decoder
	logger     *zap.Logger
}

var _ Fetcher = (*HTTPClient)(nil)

func NewClient(baseURL string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:    100,
		MaxConnsPerHost: 10,
		IdleConnTimeout: 90 * time.Second,
	}

	// Stateless decoder; safe for concurrent DecodeAll use.
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		zstdDec:    dec,
		logger:     logger,
	}
}

// FetchByID downloads a sent message's content by order uuid.
func (c *HTTPClient) FetchByID(ctx context.Context, uuid string) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/order/%s/sent_message", c.baseURL, uuid))
}

// FetchBySequence downloads message content by transmission sequence number.
// Used exclusively while catching up after a feed gap.
func (c *HTTPClient) FetchBySequence(ctx context.Context, seq uint32) ([]byte, error) {
	return c.get(ctx, fmt.Sprintf("%s/message/%d", c.baseURL, seq))
}

// GetOrder fetches the current status of an order.
func (c *HTTPClient) GetOrder(ctx context.Context, uuid string) (*Order, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/order/%s", c.baseURL, uuid))
	if err != nil {
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return &order, nil
}

func (c *HTTPClient) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	c.logger.Debug("requesting", zap.String("url", url))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept-Encoding", "zstd")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: unexpected status %d", ErrBadResponse, resp.StatusCode)
		}

		if resp.Header.Get("Content-Encoding") == "zstd" {
			decoded, err := c.zstdDec.DecodeAll(body, nil)
			if err != nil {
				return nil, fmt.Errorf("%w: zstd decode: %v", ErrBadResponse, err)
			}
			return decoded, nil
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
