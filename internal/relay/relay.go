// Package relay keeps a downstream sink in lockstep with the upstream
// transmission feed: every sent message reaches the sink exactly once, in
// sequence order, across feed disconnects and lost notifications.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satstream/relay/internal/api"
	"github.com/satstream/relay/internal/frame"
	"github.com/satstream/relay/internal/sink"
	"github.com/satstream/relay/internal/stream"
)

// ErrSinkWrite marks a failed sink write. The sink is the process's whole
// purpose, so this is the one downstream failure that stops the loop.
var ErrSinkWrite = errors.New("sink write failed")

// Relay drives the synchronizer loop. It owns the delivery watermark: the
// sequence number of the last message written to the sink this run. The
// watermark survives reconnects but is never persisted; a restarted process
// joins the live feed with no baseline.
type Relay struct {
	source  stream.Source
	fetcher api.Fetcher
	out     sink.Sink
	backoff Backoff
	logger  *zap.Logger

	lastSeq  uint32
	haveLast bool
}

func New(source stream.Source, fetcher api.Fetcher, out sink.Sink, backoff Backoff, logger *zap.Logger) *Relay {
	return &Relay{
		source:  source,
		fetcher: fetcher,
		out:     out,
		backoff: backoff,
		logger:  logger,
	}
}

// Run consumes the feed until ctx is cancelled or the sink fails. Feed
// disconnects are retried forever with backoff; the watermark is kept so the
// first event after a reconnect triggers recovery of anything missed.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("waiting for transmission events")

	for {
		err := r.source.Stream(ctx, r.handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrSinkWrite) {
			return err
		}

		delay := r.backoff.Next()
		r.logger.Warn("feed disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// handle processes one sent notification: recover the gap since the
// watermark, then deliver the announced message itself. The watermark only
// advances after a successful sink write, so a failed delivery is re-covered
// by the next event's gap resolution instead of being silently dropped.
func (r *Relay) handle(ctx context.Context, n stream.Notification) error {
	r.backoff.Reset()

	seq := n.Seq()
	var last *uint32
	if r.haveLast {
		last = &r.lastSeq
	}

	for _, missing := range MissingRange(last, seq) {
		if err := r.recover(ctx, missing); err != nil {
			return err
		}
	}

	r.logger.Info("new transmission",
		zap.Uint32("seq", seq),
		zap.String("uuid", n.UUID),
		zap.Int64("size", n.MessageSize),
		zap.String("uploaded", n.UploadEndedAt),
	)

	data, err := r.fetcher.FetchByID(ctx, n.UUID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("undeliverable transmission",
			zap.Uint32("seq", seq),
			zap.String("uuid", n.UUID),
			zap.Error(err),
		)
		return nil
	}

	if err := r.deliver(seq, data); err != nil {
		return err
	}
	return nil
}

// recover backfills one gapped sequence number. Fetch failures are logged
// and skipped: permanently missing history never stops the live stream.
func (r *Relay) recover(ctx context.Context, seq uint32) error {
	data, err := r.fetcher.FetchBySequence(ctx, seq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("skipping unrecoverable transmission",
			zap.Uint32("seq", seq),
			zap.Error(err),
		)
		return nil
	}

	r.logger.Info("recovered missed transmission",
		zap.Uint32("seq", seq),
		zap.Int("size", len(data)),
	)
	return r.deliver(seq, data)
}

// deliver frames the payload, writes it as one record, and advances the
// watermark.
func (r *Relay) deliver(seq uint32, payload []byte) error {
	if err := r.out.Write(frame.Encode(payload)); err != nil {
		return fmt.Errorf("%w: %v", ErrSinkWrite, err)
	}
	r.lastSeq = seq
	r.haveLast = true
	return nil
}
