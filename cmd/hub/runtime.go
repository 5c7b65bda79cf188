package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kuhandran/Content-Hub-sub001/internal/blob"
	"github.com/kuhandran/Content-Hub-sub001/internal/cache"
	"github.com/kuhandran/Content-Hub-sub001/internal/config"
	"github.com/kuhandran/Content-Hub-sub001/internal/content"
	"github.com/kuhandran/Content-Hub-sub001/internal/events"
	"github.com/kuhandran/Content-Hub-sub001/internal/resolve"
	"github.com/kuhandran/Content-Hub-sub001/internal/server"
	"github.com/kuhandran/Content-Hub-sub001/internal/store"
	"github.com/kuhandran/Content-Hub-sub001/internal/store/memory"
	"github.com/kuhandran/Content-Hub-sub001/internal/store/postgres"
	contentsync "github.com/kuhandran/Content-Hub-sub001/internal/sync"
)

// runtime is the set of components shared by `hub serve` and the --local
// variants of the sync commands.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger

	store     store.Store
	cache     cache.Cache
	hub       *server.Hub
	publisher events.Publisher
	blobs     blob.Store

	content  *content.Service
	pipeline *contentsync.Pipeline
	resolver *resolve.Resolver
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.Store == "memory" {
		logger.Warn("using in-memory store; content is lost on exit")
		return memory.New(), nil
	}
	st, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return st, nil
}

// openRuntime connects to every configured backend. On error, whatever was
// opened is closed again.
func openRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (rt *runtime, err error) {
	rt = &runtime{cfg: cfg, logger: logger, hub: server.NewHub()}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	if rt.store, err = openStore(cfg, logger); err != nil {
		return rt, err
	}
	if rt.cache, err = cache.Open(ctx, cfg.CacheOptions(), logger); err != nil {
		return rt, fmt.Errorf("open cache: %w", err)
	}

	rt.publisher = rt.hub
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return rt, fmt.Errorf("connect to NATS: %w", err)
		}
		rt.publisher = events.Multi{pub, rt.hub}
		logger.Info("events enabled", "nats_url", cfg.NATSURL)
	} else {
		logger.Info("events limited to SSE (CONTENTHUB_NATS_URL not set)")
	}

	if cfg.AssetsS3Bucket != "" {
		b, err := blob.NewS3(ctx, blob.S3Config{
			Bucket:    cfg.AssetsS3Bucket,
			Region:    cfg.AssetsS3Region,
			Endpoint:  cfg.AssetsS3Endpoint,
			AccessKey: cfg.AssetsS3AccessKey,
			SecretKey: cfg.AssetsS3SecretKey,
		})
		if err != nil {
			return rt, fmt.Errorf("asset bucket: %w", err)
		}
		rt.blobs = b
		logger.Info("asset payloads in S3", "bucket", cfg.AssetsS3Bucket, "prefix", cfg.AssetsS3Prefix)
	}

	contentOpts := []content.Option{
		content.WithPublisher(rt.publisher),
		content.WithTTLs(cfg.TTLs()),
		content.WithLogger(logger),
	}
	pipelineOpts := []contentsync.Option{
		contentsync.WithCache(rt.cache),
		contentsync.WithPublisher(rt.publisher),
		contentsync.WithLogger(logger),
		contentsync.WithLockTTL(cfg.LockTTL),
	}
	if rt.blobs != nil {
		contentOpts = append(contentOpts, content.WithBlobs(rt.blobs))
		pipelineOpts = append(pipelineOpts, contentsync.WithBlobs(rt.blobs, cfg.AssetsS3Prefix))
	}

	rt.content = content.NewService(rt.store, rt.cache, contentOpts...)
	if rt.pipeline, err = contentsync.NewPipeline(rt.store, pipelineOpts...); err != nil {
		return rt, err
	}
	rt.resolver = resolve.New(rt.store, rt.cache, resolve.Options{
		SourceRoot:         cfg.SourceRoot,
		DBTimeout:          cfg.DBTimeout,
		TTLs:               cfg.TTLs(),
		WarmFromFilesystem: cfg.WarmFromFilesystem,
		Logger:             logger,
	})
	return rt, nil
}

// destinations builds the snapshot targets configured for the scheduler.
// A destination that fails to initialize is logged and skipped.
func (rt *runtime) destinations(ctx context.Context) []contentsync.Destination {
	var dests []contentsync.Destination
	cfg := rt.cfg
	if cfg.BackupS3Bucket != "" {
		d, err := contentsync.NewS3Destination(ctx, blob.S3Config{
			Bucket:   cfg.BackupS3Bucket,
			Region:   cfg.BackupS3Region,
			Endpoint: cfg.BackupS3Endpoint,
		}, cfg.BackupS3Key)
		if err != nil {
			rt.logger.Error("failed to create S3 backup destination", "err", err)
		} else {
			dests = append(dests, d)
			rt.logger.Info("S3 backup destination enabled", "bucket", cfg.BackupS3Bucket, "key", cfg.BackupS3Key)
		}
	}
	if cfg.BackupGitRepo != "" {
		dests = append(dests, contentsync.NewGitDestination(cfg.BackupGitRepo, cfg.BackupGitFile, cfg.BackupGitBranch))
		rt.logger.Info("git backup destination enabled", "repo", cfg.BackupGitRepo, "file", cfg.BackupGitFile)
	}
	return dests
}

// Close releases every opened backend.
func (rt *runtime) Close() {
	if rt.resolver != nil {
		rt.resolver.Wait()
	}
	if rt.publisher != nil {
		if err := rt.publisher.Close(); err != nil {
			rt.logger.Error("error closing publisher", "err", err)
		}
	}
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			rt.logger.Error("error closing cache", "err", err)
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.logger.Error("error closing store", "err", err)
		}
	}
}
