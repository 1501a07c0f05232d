package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"score-annotator/internal/annotation"
	"score-annotator/internal/config"
	"score-annotator/internal/database"
	"score-annotator/internal/handler"
	"score-annotator/internal/hub"
	"score-annotator/internal/logger"
	"score-annotator/internal/presence"
	"score-annotator/internal/server"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.Database, zl)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			zl.Warn("database close failed", zap.Error(err))
		}
	}()

	opts := hub.Options{
		FlushInterval:     cfg.Sync.FlushInterval,
		HeartbeatInterval: cfg.Sync.HeartbeatInterval,
		IdleSweepInterval: cfg.Sync.IdleSweepInterval,
		IdleTimeout:       cfg.Sync.IdleTimeout,
		MaxConnections:    cfg.Sync.MaxConnections,
		PersistTimeout:    cfg.Sync.PersistTimeout,
		Persister:         annotation.NewStore(db),
		Logger:            zl,
	}

	// Redis is optional; without it presence stays in process.
	var mirror *presence.Mirror
	var redisCheck handler.Pinger
	if cfg.Redis.Addr != "" {
		client := presence.NewClient(cfg.Redis)
		defer client.Close()

		mirror = presence.NewMirror(client, cfg.Redis.PresenceTTL, serverID(), zl)
		if err := mirror.Ping(ctx); err != nil {
			zl.Warn("redis unreachable, presence mirror will retry", zap.Error(err))
		}
		opts.Mirror = mirror
		redisCheck = mirror
	} else {
		zl.Info("redis not configured, presence mirror disabled")
	}

	h := hub.New(opts)

	srv := server.New(cfg, db, h, redisCheck, zl)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Run(gctx) })
	if mirror != nil {
		g.Go(func() error { return mirror.Run(gctx) })
	}
	g.Go(srv.Listen)
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")

		h.Shutdown()
		if err := srv.Shutdown(); err != nil {
			zl.Warn("http shutdown", zap.Error(err))
		}
		h.WaitPersistence()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	zl.Info("server stopped")
	return nil
}

// serverID tags presence snapshots written by this process.
func serverID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host + "-" + uuid.NewString()[:8]
	}
	return uuid.NewString()
}
