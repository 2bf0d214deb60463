package faker

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/satstream/relay/internal/stream"
)

// Router assembles the fake upstream's HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(zapLoggerMiddleware(s.logger))

	r.Get("/subscribe/transmissions", s.broadcaster.HandleSSE)
	r.Get("/subscribe/ws", s.hub.HandleWS)
	r.Get("/order/{uuid}", s.handleOrder)
	r.Get("/order/{uuid}/sent_message", s.handleSentMessage)
	r.Get("/message/{seq}", s.handleMessageBySeq)
	r.Post("/admin/transmit", s.handleTransmit)

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.store.ByUUID(chi.URLParam(r, "uuid"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"uuid":            tx.UUID,
		"status":          "sent",
		"tx_seq_num":      tx.Seq,
		"message_size":    len(tx.Payload),
		"upload_ended_at": tx.SentAt.Format(time.RFC3339),
	})
}

func (s *Server) handleSentMessage(w http.ResponseWriter, r *http.Request) {
	tx, ok := s.store.ByUUID(chi.URLParam(r, "uuid"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writePayload(w, r, tx.Payload)
}

func (s *Server) handleMessageBySeq(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseUint(chi.URLParam(r, "seq"), 10, 64)
	if err != nil || seq >= stream.MaxSeqNum {
		http.Error(w, "invalid sequence number", http.StatusBadRequest)
		return
	}

	tx, ok := s.store.BySeq(uint32(seq))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writePayload(w, r, tx.Payload)
}

// writePayload serves raw message bytes, zstd-encoded when the client asks
// for it and the server allows it.
func (s *Server) writePayload(w http.ResponseWriter, r *http.Request, payload []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")

	if s.cfg.ZstdEnabled && strings.Contains(r.Header.Get("Accept-Encoding"), "zstd") {
		w.Header().Set("Content-Encoding", "zstd")
		_, _ = w.Write(s.zstdEnc.EncodeAll(payload, nil))
		return
	}
	_, _ = w.Write(payload)
}

func (s *Server) handleTransmit(w http.ResponseWriter, r *http.Request) {
	payload, err := readBody(r)
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}
	if len(payload) == 0 {
		http.Error(w, "empty payload", http.StatusBadRequest)
		return
	}

	tx := s.Transmit(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"uuid":       tx.UUID,
		"tx_seq_num": tx.Seq,
	})
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
