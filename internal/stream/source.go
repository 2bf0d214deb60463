package stream

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// State of a feed connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Streaming
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	}
	return "unknown"
}

// Handler receives sent notifications in arrival order. A non-nil return
// tears down the connection and is surfaced by Stream.
type Handler func(ctx context.Context, n Notification) error

// Source is a single connection attempt to the upstream feed. Stream blocks
// until the connection fails, the handler fails, or ctx is cancelled; the
// caller owns reconnection.
type Source interface {
	Stream(ctx context.Context, handle Handler) error
	State() State
}

type connState struct {
	v atomic.Int32
}

func (c *connState) set(s State) { c.v.Store(int32(s)) }
func (c *connState) get() State  { return State(c.v.Load()) }

// dispatch decodes one raw feed event and forwards it when it announces a
// sent transmission. Decode failures and non-sent statuses are dropped here.
func dispatch(ctx context.Context, raw []byte, handle Handler, logger *zap.Logger) error {
	n, err := decodeNotification(raw)
	if err != nil {
		logger.Warn("skipping malformed feed event", zap.Error(err))
		return nil
	}
	if n.Status != StatusSent {
		logger.Debug("ignoring order event",
			zap.String("uuid", n.UUID),
			zap.String("status", string(n.Status)),
		)
		return nil
	}
	return handle(ctx, *n)
}
