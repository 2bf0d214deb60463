// Package faker is an in-process stand-in for the upstream satellite API:
// an order-event feed (SSE and WebSocket), a message store, and an admin
// endpoint to inject transmissions. It exists so the relay can be exercised
// end to end without the real service.
package faker

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/satstream/relay/internal/config"
)

// Server owns the fake upstream's state and feed fan-out.
type Server struct {
	store       *Store
	broadcaster *Broadcaster
	hub         *Hub
	cfg         *config.FakerConfig
	zstdEnc     *zstd.Encoder
	logger      *zap.Logger
}

func New(cfg *config.FakerConfig, logger *zap.Logger) (*Server, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	return &Server{
		store:       NewStore(cfg.StartSeq),
		broadcaster: NewBroadcaster(logger),
		hub:         NewHub(logger),
		cfg:         cfg,
		zstdEnc:     enc,
		logger:      logger,
	}, nil
}

// Hub exposes the WebSocket hub so the caller can run its event loop.
func (s *Server) Hub() *Hub { return s.hub }

// Transmit stores payload as a new sent transmission and announces it on
// both feed transports. Returns the stored transmission.
func (s *Server) Transmit(payload []byte) *Transmission {
	tx := s.store.Add(payload)
	event := orderEvent(tx)

	s.broadcaster.Publish(event)
	s.hub.Broadcast(event)

	s.logger.Info("transmitted",
		zap.String("uuid", tx.UUID),
		zap.Uint32("seq", tx.Seq),
		zap.Int("size", len(tx.Payload)),
	)
	return tx
}

// TransmitSilent stores payload and consumes its sequence number without
// announcing it on any feed, simulating a notification lost in flight. The
// message remains fetchable by sequence number.
func (s *Server) TransmitSilent(payload []byte) *Transmission {
	tx := s.store.Add(payload)
	s.logger.Info("transmitted silently",
		zap.String("uuid", tx.UUID),
		zap.Uint32("seq", tx.Seq),
	)
	return tx
}

// SkipSeq consumes a sequence number without storing anything, creating a
// permanently unrecoverable hole in the sequence space.
func (s *Server) SkipSeq() uint32 {
	return s.store.SkipSeq()
}

// AutoTransmit generates a random payload every interval until ctx ends.
// Disabled when the configured interval is zero.
func (s *Server) AutoTransmit(ctx context.Context) {
	if s.cfg.AutoInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.cfg.AutoInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("auto-transmit stopping")
			return
		case <-ticker.C:
			payload := make([]byte, s.cfg.AutoPayloadBytes)
			_, _ = rand.Read(payload)
			s.Transmit(payload)
		}
	}
}

// orderEvent renders the feed's JSON representation of a sent transmission.
func orderEvent(tx *Transmission) []byte {
	event, _ := json.Marshal(map[string]any{
		"uuid":            tx.UUID,
		"status":          "sent",
		"tx_seq_num":      tx.Seq,
		"message_size":    len(tx.Payload),
		"upload_ended_at": tx.SentAt.Format(time.RFC3339),
	})
	return event
}
