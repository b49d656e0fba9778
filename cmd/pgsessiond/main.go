// Command pgsessiond is a small demo/ops harness for the session pool:
// it opens a pool, seizes one session, runs a sample query through it,
// and shuts down cleanly on SIGINT/SIGTERM. Grounded on
// the teacher's cmd/pgtest/main.go config-load / signal-wait / shutdown
// shape, with the proxy server and GUI dropped since this library has
// neither.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asfixia/pgsession/internal/config"
	"github.com/asfixia/pgsession/internal/session"
	"github.com/asfixia/pgsession/pkg/pglog"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	pglog.Default().SetLevel(pglog.ParseLevel(cfg.Logging.Level))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Pool.ConnTimeout)
	pool, err := session.OpenPool(ctx, cfg, "pgsessiond")
	cancel()
	if err != nil {
		log.Fatalf("failed to open pool: %v", err)
	}

	pglog.Default().Info("pgsessiond started, max_sessions=%d", cfg.Pool.MaxSessions)

	demoCtx, demoCancel := context.WithTimeout(context.Background(), 10*time.Second)
	go runDemo(demoCtx, pool)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	demoCancel()
	pglog.Default().Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := pool.Close(shutdownCtx); err != nil {
		pglog.Default().Error("error closing pool: %v", err)
	}

	pglog.Default().Info("stopped")
}

// runDemo seizes one session and runs a trivial query through it, just
// enough to exercise the pool end to end from a standalone binary.
func runDemo(ctx context.Context, pool *session.Pool) {
	sess, err := pool.Seize(ctx)
	if err != nil {
		pglog.Default().Error("seize failed: %v", err)
		return
	}
	defer sess.Close()

	stream, err := sess.Submit(ctx, "SELECT 1")
	if err != nil {
		pglog.Default().Error("submit failed: %v", err)
		return
	}

	for ev := range stream.Events() {
		pglog.Default().Debug("demo event: %s", pglog.Dump(ev))
	}
	if err := stream.Err(); err != nil {
		pglog.Default().Error("demo query failed: %v", err)
	}
}
