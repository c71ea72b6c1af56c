package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/snarg/contentgen"
	"github.com/snarg/contentgen/internal/analysis"
	"github.com/snarg/contentgen/internal/api"
	"github.com/snarg/contentgen/internal/config"
	"github.com/snarg/contentgen/internal/database"
	"github.com/snarg/contentgen/internal/history"
	"github.com/snarg/contentgen/internal/metrics"
	"github.com/snarg/contentgen/internal/mqttclient"
	"github.com/snarg/contentgen/internal/prompts"
	"github.com/snarg/contentgen/internal/storage"
)

var version = "dev"

func main() {
	startTime := time.Now()

	// Flags
	var overrides config.Overrides
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.APIURL, "api-url", "", "Content-generation backend URL (overrides CONTENTGEN_API_URL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "Postgres URL (overrides DATABASE_URL)")
	flag.StringVar(&overrides.ArtifactDir, "artifact-dir", "", "Local artifact directory (overrides ARTIFACT_DIR)")
	flag.Parse()

	if *showVersion {
		fmt.Println("contentgen", version)
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Str("api_url", cfg.APIURL).Msg("contentgen starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := api.HealthDeps{}

	// History: Postgres when configured, memory otherwise
	var store history.Store
	var db *database.DB
	if cfg.DatabaseURL != "" {
		dbLog := log.With().Str("component", "database").Logger()
		db, err = database.Open(ctx, database.Options{
			URL:            cfg.DatabaseURL,
			MaxConns:       cfg.DatabaseMaxConns,
			MinConns:       cfg.DatabaseMinConns,
			ConnectTimeout: cfg.DatabaseConnectTimeout,
		}, dbLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open history database")
		}
		defer db.Close()
		store = db
		health.DB = db
	} else {
		log.Warn().Msg("DATABASE_URL not set, history kept in memory")
		store = history.NewMemory(0)
	}

	// Artifact storage
	storeLog := log.With().Str("component", "storage").Logger()
	artifacts, err := storage.New(cfg.S3, cfg.ArtifactDir, storeLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize artifact storage")
	}
	health.StorageType = artifacts.Type()
	if s3, ok := artifacts.(*storage.S3Store); ok {
		health.Storage = api.HealthCheckFunc(s3.HeadBucket)
	}

	// MQTT events (optional)
	var publisher api.Publisher = api.NopPublisher{}
	var mqtt *mqttclient.Client
	if cfg.MQTT.Enabled() {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			Log:         mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqtt.Close()
		publisher = mqtt
		health.MQTT = mqtt
	}

	// Upstream clients
	analyzer := analysis.NewClient(cfg.APIURL, cfg.AnalysisTimeout)
	health.Upstream = api.HealthCheckFunc(analyzer.Health)
	promptsLog := log.With().Str("component", "prompts").Logger()
	modifiers := prompts.NewService(prompts.NewClient(cfg.APIURL, cfg.PromptsTimeout), promptsLog)

	// Scrape-time gauges
	var pool *pgxpool.Pool
	if db != nil {
		pool = db.Pool
	}
	var stats metrics.PublisherStats
	if mqtt != nil {
		stats = mqtt
	}
	prometheus.MustRegister(metrics.NewCollector(pool, stats))

	webFS, err := fs.Sub(contentgen.WebFiles, "web")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open embedded web files")
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(api.ServerOptions{
		Config:    cfg,
		Analyzer:  analyzer,
		Modifiers: modifiers,
		History:   store,
		Artifacts: artifacts,
		Publisher: publisher,
		Health:    health,
		WebFS:     webFS,
		OpenAPI:   contentgen.OpenAPISpec,
		Version:   version,
		StartTime: startTime,
		Log:       httpLog,
	})

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("contentgen stopped")
}
