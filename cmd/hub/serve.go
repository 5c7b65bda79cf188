package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuhandran/Content-Hub-sub001/internal/config"
	"github.com/kuhandran/Content-Hub-sub001/internal/server"
	contentsync "github.com/kuhandran/Content-Hub-sub001/internal/sync"
)

// healthInterval is how often the gRPC health status is refreshed.
const healthInterval = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the content hub HTTP and gRPC servers",
	GroupID: "system",
	// Override PersistentPreRunE so we don't build an API client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := cfg.Logger(os.Stderr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rt, err := openRuntime(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		srv := server.New(server.Deps{
			Store:      rt.store,
			Cache:      rt.cache,
			Resolver:   rt.resolver,
			Content:    rt.content,
			Pipeline:   rt.pipeline,
			Hub:        rt.hub,
			SourceRoot: cfg.SourceRoot,
			Logger:     logger,
		})
		auth := server.NewAuthenticator(cfg.AuthToken, cfg.JWTSecret)
		if !auth.Enabled() {
			logger.Warn("authentication disabled (CONTENTHUB_AUTH_TOKEN and CONTENTHUB_JWT_SECRET unset)")
		}

		// gRPC: health and reflection only.
		var grpcStop func()
		if cfg.GRPCAddr != "" {
			grpcServer, healthServer := server.NewGRPCServer(auth)
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				return err
			}
			go func() {
				logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
				if err := grpcServer.Serve(lis); err != nil {
					logger.Error("gRPC server error", "err", err)
				}
			}()
			go srv.WatchHealth(ctx, healthServer, healthInterval)
			grpcStop = grpcServer.GracefulStop
		}

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(auth),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Periodic changed-only pumps plus snapshot backups.
		var scheduler *contentsync.Scheduler
		if cfg.PumpInterval > 0 {
			scheduler = contentsync.NewScheduler(rt.pipeline, cfg.SourceRoot, rt.destinations(ctx), cfg.PumpInterval, logger)
			scheduler.Start()
			logger.Info("pump scheduler started", "interval", cfg.PumpInterval, "root", cfg.SourceRoot)
		}

		logger.Info("content hub started",
			"http_addr", cfg.HTTPAddr,
			"grpc_addr", cfg.GRPCAddr,
			"store", cfg.Store,
			"cache", cfg.CacheBackend,
			"source_root", cfg.SourceRoot,
			"owner", rt.pipeline.Owner(),
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("pump scheduler stopped")
		}

		// Cancelling ctx ends SSE streams and marks gRPC health NOT_SERVING.
		cancel()
		if grpcStop != nil {
			grpcStop()
			logger.Info("gRPC server stopped")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		logger.Info("shutdown complete")
		return nil
	},
}
