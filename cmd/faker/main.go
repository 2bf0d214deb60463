package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satstream/relay/internal/config"
	"github.com/satstream/relay/internal/faker"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Setup logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	cfg := config.LoadFakerConfig()
	logger.Info("configuration loaded",
		zap.String("port", cfg.Port),
		zap.Duration("autoInterval", cfg.AutoInterval),
		zap.Uint32("startSeq", cfg.StartSeq),
		zap.Bool("zstd", cfg.ZstdEnabled),
	)

	server, err := faker.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create faker", zap.Error(err))
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	httpServer := &http.Server{
		Addr:    net.JoinHostPort("", cfg.Port),
		Handler: server.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		server.Hub().Run(gctx)
		return nil
	})

	g.Go(func() error {
		server.AutoTransmit(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("faker listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("faker failed", zap.Error(err))
		return 1
	}

	logger.Info("faker stopped")
	return 0
}
