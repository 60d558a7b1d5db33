package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/eventra/eventra/internal/config"
	"github.com/eventra/eventra/internal/db"
	"github.com/eventra/eventra/internal/lifecycle"
	"github.com/eventra/eventra/internal/observability"
	"github.com/eventra/eventra/internal/repo/postgres"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	interval := 30 * time.Second

	if raw := os.Getenv("LIFECYCLE_INTERVAL_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			interval = time.Duration(secs) * time.Second
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	defer pool.Close()

	prom := observability.NewProm(prometheus.NewRegistry())
	eventsRepo := postgres.NewEventsRepo(pool, prom)

	sweeper := lifecycle.NewSweeper(eventsRepo, log, prom, interval)
	sweeper.Run(ctx)
}
