package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventra/eventra/internal/auth"
	"github.com/eventra/eventra/internal/cache"
	"github.com/eventra/eventra/internal/config"
	"github.com/eventra/eventra/internal/db"
	httpapi "github.com/eventra/eventra/internal/http"
	"github.com/eventra/eventra/internal/http/handlers"
	"github.com/eventra/eventra/internal/http/middlewares"
	"github.com/eventra/eventra/internal/mail"
	"github.com/eventra/eventra/internal/observability"
	"github.com/eventra/eventra/internal/repo/postgres"
	"github.com/eventra/eventra/internal/repo/redisstore"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "eventra-api"

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// tracing is optional: no endpoint, no exporter
	tracing := cfg.OTLPEndpoint != ""

	if tracing {
		shutdown, err := observability.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)

		if err != nil {
			log.Error("failed to init tracer", "error", err)
			os.Exit(1)
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(registry)

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	defer pool.Close()

	if err := db.ApplySchema(ctx, pool); err != nil {
		log.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	if err := db.EnsureManagementUser(ctx, pool, cfg); err != nil {
		log.Error("failed to seed management user", "error", err)
		os.Exit(1)
	}

	rdb := redisstore.NewClient(redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	defer func() {
		_ = rdb.Close()
	}()

	otpStore := redisstore.NewOTPStore(rdb, cfg.OTPTTL)

	usersRepo := postgres.NewUsersRepo(pool, prom)
	eventsRepo := postgres.NewEventsRepo(pool, prom)
	registrationsRepo := postgres.NewRegistrationsRepo(pool, prom)

	var mailer mail.Mailer

	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			Timeout:  cfg.MailTimeout,
		})
		log.Info("using SMTP mailer", "host", cfg.SMTPHost)
	} else {
		mailer = mail.NewLogMailer(log)
		log.Warn("SMTP not configured, OTP codes go to the log")
	}

	jwtManager := auth.NewManager(cfg.JWTSecret, time.Duration(cfg.SessionTTLDays)*24*time.Hour)
	authMiddleware := middlewares.NewAuthMiddleware(jwtManager)

	eventCache := cache.New(10 * time.Second)

	authHandler := handlers.NewAuthHandler(usersRepo, otpStore, mailer, jwtManager, prom, cfg)
	eventHandler := handlers.NewEventHandler(eventsRepo, eventCache)
	regHandler := handlers.NewRegistrationHandler(registrationsRepo, eventsRepo)

	healthHandler := handlers.NewHealthHandler(func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := pool.Ping(pingCtx); err != nil {
			return err
		}

		return otpStore.Ping(pingCtx)
	})

	router := httpapi.NewRouter(httpapi.RouterDeps{
		Log:            log,
		Auth:           authMiddleware,
		AuthHandler:    authHandler,
		EventHandler:   eventHandler,
		RegHandler:     regHandler,
		HealthHandler:  healthHandler,
		Prom:           prom,
		PromRegistry:   registry,
		AllowedOrigins: cfg.AllowedOrigins,
		ServiceName:    serviceName,
		Tracing:        tracing,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", server.Addr, "env", cfg.Env)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
