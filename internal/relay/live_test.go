package relay

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satstream/relay/internal/api"
	"github.com/satstream/relay/internal/config"
	"github.com/satstream/relay/internal/faker"
	"github.com/satstream/relay/internal/frame"
	"github.com/satstream/relay/internal/stream"
)

// safeSink collects framed records across goroutines.
type safeSink struct {
	mu      sync.Mutex
	records [][]byte
}

func (s *safeSink) Write(record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, append([]byte(nil), record...))
	return nil
}

func (s *safeSink) Close() error { return nil }

func (s *safeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *safeSink) payloads(t *testing.T) []string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.records))
	for _, rec := range s.records {
		payload, err := frame.Decode(rec)
		if err != nil {
			t.Fatalf("malformed record in sink: %v", err)
		}
		out = append(out, string(payload))
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestLiveFeedEndToEnd runs the full path against the fake upstream: live
// deliveries, a silent gap recovered by backfill, and an unrecoverable hole
// that gets skipped.
func TestLiveFeedEndToEnd(t *testing.T) {
	fs, err := faker.New(&config.FakerConfig{StartSeq: 1, ZstdEnabled: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("faker.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fs.Hub().Run(ctx)

	ts := httptest.NewServer(fs.Router())
	defer ts.Close()

	source := stream.NewSSEClient(ts.URL, zap.NewNop())
	fetcher := api.NewClient(ts.URL, 100, 5*time.Second, 10*time.Millisecond, 2, zap.NewNop())
	out := &safeSink{}

	r := New(source, fetcher, out, Backoff{Base: time.Millisecond, Max: 10 * time.Millisecond}, zap.NewNop())

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	waitFor(t, "feed connection", func() bool { return source.State() == stream.Streaming })

	// Live delivery.
	fs.Transmit([]byte("live-1"))
	waitFor(t, "first delivery", func() bool { return out.count() == 1 })

	// Two notifications lost in flight; messages remain fetchable.
	fs.TransmitSilent([]byte("gap-2"))
	fs.TransmitSilent([]byte("gap-3"))

	// The next live event exposes the gap and triggers backfill.
	fs.Transmit([]byte("live-4"))
	waitFor(t, "gap recovery", func() bool { return out.count() == 4 })

	// A burned sequence number has no stored message: backfill skips it.
	fs.SkipSeq()
	fs.Transmit([]byte("live-6"))
	waitFor(t, "delivery past the hole", func() bool { return out.count() == 5 })

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}

	want := []string{"live-1", "gap-2", "gap-3", "live-4", "live-6"}
	got := out.payloads(t)
	if len(got) != len(want) {
		t.Fatalf("deliveries = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestLiveFeedWebSocketTransport runs the same path over the WebSocket feed.
func TestLiveFeedWebSocketTransport(t *testing.T) {
	fs, err := faker.New(&config.FakerConfig{StartSeq: 10, ZstdEnabled: false}, zap.NewNop())
	if err != nil {
		t.Fatalf("faker.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fs.Hub().Run(ctx)

	ts := httptest.NewServer(fs.Router())
	defer ts.Close()

	source, err := stream.NewWSClient(ts.URL, zap.NewNop())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	fetcher := api.NewClient(ts.URL, 100, 5*time.Second, 10*time.Millisecond, 2, zap.NewNop())
	out := &safeSink{}

	r := New(source, fetcher, out, Backoff{Base: time.Millisecond, Max: 10 * time.Millisecond}, zap.NewNop())
	go func() { _ = r.Run(ctx) }()

	waitFor(t, "feed connection", func() bool { return source.State() == stream.Streaming })
	// The hub registers the subscriber just after the handshake completes.
	time.Sleep(50 * time.Millisecond)

	fs.Transmit([]byte("ws-10"))
	fs.TransmitSilent([]byte("ws-11"))
	fs.Transmit([]byte("ws-12"))
	waitFor(t, "deliveries", func() bool { return out.count() == 3 })

	got := out.payloads(t)
	want := []string{"ws-10", "ws-11", "ws-12"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, got[i], want[i])
		}
	}
}
