package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func sseHandler(t *testing.T, events []string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != subscribePath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("test server does not support flushing")
		}
		w.Header().Set("Content-Type", "text/event-stream")

		fmt.Fprint(w, ": hello\n\n")
		for _, ev := range events {
			fmt.Fprintf(w, "data: %s\n\n", ev)
			flusher.Flush()
		}
		// Handler returns, closing the stream mid-subscription.
	}
}

func TestSSEStreamYieldsSentOnly(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, []string{
		`{"uuid": "a", "status": "pending"}`,
		`{"uuid": "a", "status": "sent", "tx_seq_num": 1, "message_size": 3}`,
		`{"uuid": "b", "status": "transmitting"}`,
		`{"uuid": "b", "status": "sent", "tx_seq_num": 2, "message_size": 3}`,
	}))
	defer server.Close()

	client := NewSSEClient(server.URL, zap.NewNop())

	var got []uint32
	err := client.Stream(context.Background(), func(ctx context.Context, n Notification) error {
		got = append(got, n.Seq())
		return nil
	})
	if err == nil {
		t.Fatal("expected disconnect error when server closes the stream")
	}

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected sent seqs [1 2], got %v", got)
	}
	if client.State() != Disconnected {
		t.Errorf("expected disconnected state after stream end, got %s", client.State())
	}
}

func TestSSEStreamSkipsMalformedEvents(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, []string{
		`not json at all`,
		`{"status": "sent", "tx_seq_num": 9}`,
		`{"uuid": "c", "status": "sent", "tx_seq_num": 7, "message_size": 1}`,
	}))
	defer server.Close()

	client := NewSSEClient(server.URL, zap.NewNop())

	var got []uint32
	_ = client.Stream(context.Background(), func(ctx context.Context, n Notification) error {
		got = append(got, n.Seq())
		return nil
	})

	if len(got) != 1 || got[0] != 7 {
		t.Errorf("expected only seq 7 to survive decoding, got %v", got)
	}
}

func TestSSEStreamRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewSSEClient(server.URL, zap.NewNop())
	err := client.Stream(context.Background(), func(ctx context.Context, n Notification) error {
		t.Error("handler must not run on refused subscription")
		return nil
	})
	if err == nil {
		t.Fatal("expected error for refused subscription")
	}
}

func TestSSEStreamHandlerErrorStopsStream(t *testing.T) {
	server := httptest.NewServer(sseHandler(t, []string{
		`{"uuid": "a", "status": "sent", "tx_seq_num": 1, "message_size": 1}`,
		`{"uuid": "b", "status": "sent", "tx_seq_num": 2, "message_size": 1}`,
	}))
	defer server.Close()

	client := NewSSEClient(server.URL, zap.NewNop())

	wantErr := fmt.Errorf("sink gone")
	var calls int
	err := client.Stream(context.Background(), func(ctx context.Context, n Notification) error {
		calls++
		return wantErr
	})

	if err != wantErr {
		t.Errorf("expected handler error to surface, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected stream to stop after first handler error, got %d calls", calls)
	}
}

func TestSSEStreamContextCancel(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := NewSSEClient(server.URL, zap.NewNop())

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Stream(ctx, func(ctx context.Context, n Notification) error { return nil })
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected error after cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after context cancellation")
	}
}
