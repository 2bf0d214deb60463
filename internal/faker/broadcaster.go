package faker

import (
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// Broadcaster pushes order events to connected SSE subscribers.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[*sseClient]bool
	logger  *zap.Logger
}

// sseClient represents a connected SSE subscriber.
type sseClient struct {
	dataCh chan []byte
	doneCh chan struct{}
}

func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		clients: make(map[*sseClient]bool),
		logger:  logger,
	}
}

// Publish queues event for every connected subscriber. A subscriber that
// cannot keep up loses the event rather than blocking the feed; that is the
// exact lossiness the relay's catch-up logic exists to absorb.
func (b *Broadcaster) Publish(event []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients {
		select {
		case client.dataCh <- event:
		default:
			b.logger.Debug("dropping event for slow subscriber")
		}
	}
}

// HandleSSE handles the /subscribe/transmissions endpoint.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	client := &sseClient{
		dataCh: make(chan []byte, 16),
		doneCh: make(chan struct{}),
	}

	// Register before the headers go out so a subscriber that has seen the
	// response is guaranteed to receive subsequent events.
	b.addClient(client)
	defer b.removeClient(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	b.logger.Info("feed subscriber connected", zap.String("remote_addr", r.RemoteAddr))

	for {
		select {
		case <-r.Context().Done():
			b.logger.Info("feed subscriber disconnected", zap.String("remote_addr", r.RemoteAddr))
			return
		case <-client.doneCh:
			return
		case event := <-client.dataCh:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", event); err != nil {
				b.logger.Debug("failed to write to subscriber", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func (b *Broadcaster) addClient(client *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = true
}

func (b *Broadcaster) removeClient(client *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, client)
	close(client.doneCh)
}
