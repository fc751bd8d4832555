// Command engine runs the knowledge acquisition service: the HTTP trigger
// API, the scheduler, and the queue/crawl/URL sweeps.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sourcehr/engine/internal/api"
	"github.com/sourcehr/engine/internal/app"
	"github.com/sourcehr/engine/internal/config"
	"github.com/sourcehr/engine/internal/logging"
	"github.com/sourcehr/engine/internal/sched"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "engine:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	scheduler := sched.New(logger)
	scheduler.Add("queue-drain", cfg.Scheduler.QueueDrainInterval, func(ctx context.Context) {
		a.WorkerPool.DrainOnce(ctx)
	})
	scheduler.Add("crawl-sweep", cfg.Scheduler.CrawlSweepInterval, a.CrawlSweep.RunOnce)
	scheduler.Add("url-sweep", cfg.Scheduler.URLSweepInterval, a.URLSweep.RunOnce)

	server := api.NewServer(a.Crawls, a.Queue, a.Vector, api.Options{
		APIKey:         cfg.Server.APIKey,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(schedDone)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		stop()
		<-schedDone
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// In-flight sweeps finish before the stores they use are closed.
	<-schedDone
	return nil
}
