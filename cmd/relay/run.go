package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satstream/relay/internal/api"
	"github.com/satstream/relay/internal/relay"
	"github.com/satstream/relay/internal/sink"
	"github.com/satstream/relay/internal/stream"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Subscribe to the transmission feed and relay messages to the sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	defer logger.Sync()

	addr := cfg.API.Address()
	logger.Info("starting relay",
		zap.String("server", addr),
		zap.String("transport", cfg.Feed.Transport),
		zap.String("sink", cfg.Sink.Path),
	)

	var source stream.Source
	switch cfg.Feed.Transport {
	case "websocket":
		var err error
		source, err = stream.NewWSClient(addr, logger)
		if err != nil {
			return err
		}
	default:
		source = stream.NewSSEClient(addr, logger)
	}

	fetcher := api.NewClient(
		addr,
		cfg.API.RatePerSecond,
		time.Duration(cfg.API.TimeoutSec)*time.Second,
		time.Duration(cfg.API.RetryDelaySec)*time.Second,
		cfg.API.RetryCount,
		logger,
	)

	var (
		out *sink.WriterSink
		err error
	)
	switch cfg.Sink.Type {
	case "file":
		out, err = sink.OpenFile(cfg.Sink.Path)
	default:
		logger.Info("opening sink, waiting for a reader", zap.String("path", cfg.Sink.Path))
		out, err = sink.OpenPipe(cfg.Sink.Path)
	}
	if err != nil {
		return fmt.Errorf("opening sink: %w", err)
	}
	defer out.Close()

	backoff := relay.Backoff{
		Base: time.Duration(cfg.Feed.ReconnectBaseMs) * time.Millisecond,
		Max:  time.Duration(cfg.Feed.ReconnectMaxSec) * time.Second,
	}

	r := relay.New(source, fetcher, out, backoff, logger)
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("relay stopped")
	return nil
}
