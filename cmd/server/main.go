// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// graphmail server
//
// Entry point for the mail service. It:
//  1. Loads configuration from .env and config.yaml
//  2. Connects to Redis (token cache, job queue) and PostgreSQL (outbox)
//  3. Builds the Graph client and transport
//  4. Runs the outbound worker
//  5. Serves the message API and health check
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/graphmail/internal/api"
	"github.com/bcem/graphmail/internal/config"
	"github.com/bcem/graphmail/internal/dedup"
	"github.com/bcem/graphmail/internal/graph"
	"github.com/bcem/graphmail/internal/mail"
	"github.com/bcem/graphmail/internal/outbox"
	"github.com/bcem/graphmail/internal/queue"
	"github.com/bcem/graphmail/internal/tokencache"
	"github.com/bcem/graphmail/internal/transport"
	"github.com/bcem/graphmail/internal/worker"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting graphmail server")

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.RedisURL == "" {
		slog.Error("redis.url is required to run the server")
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"tenant", cfg.Mailer.TenantID,
		"queue", cfg.OutboundQueue,
		"outbox", cfg.DatabaseURL != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	publisher := queue.NewPublisher(rdb, cfg.OutboundQueue)
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	checks := map[string]api.Pinger{"redis": publisher}

	// --- Outbox (optional) ---
	var store *outbox.Store
	if cfg.DatabaseURL != "" {
		pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to create Postgres pool", "error", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		if err := pgPool.Ping(ctx); err != nil {
			slog.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to PostgreSQL")

		store, err = outbox.NewStore(ctx, pgPool)
		if err != nil {
			slog.Error("failed to initialise outbox store", "error", err)
			os.Exit(1)
		}
		checks["postgres"] = store
	}

	// --- Graph client and transport ---
	client, err := graph.NewClient(graph.Config{
		ClientID:       cfg.Mailer.ClientID,
		ClientSecret:   cfg.Mailer.ClientSecret,
		AccessTokenTTL: cfg.Mailer.AccessTokenTTL,
		Cache:          tokencache.NewRedis(rdb, "graphmail:"),
		HTTPClient:     &http.Client{Timeout: cfg.HTTPTimeout},
	})
	if err != nil {
		slog.Error("failed to create Graph client", "error", err)
		os.Exit(1)
	}

	tr := transport.New(client,
		transport.WithTenantID(cfg.Mailer.TenantID),
		transport.WithDefaultFrom(mail.Address{Address: cfg.Mailer.FromAddress, Name: cfg.Mailer.FromName}),
	)

	// --- Worker ---
	wcfg := worker.Config{
		Source:    queue.NewConsumer(rdb, cfg.OutboundQueue),
		Transport: tr,
		Dedup:     dedup.NewFilter(rdb),
	}
	if store != nil {
		wcfg.Outbox = store
	}
	w := worker.New(wcfg)

	workerDone := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(workerDone)
	}()

	// --- API ---
	var records api.RecordReader
	if store != nil {
		records = store
	}
	handler, err := api.NewHandler(publisher, records, checks)
	if err != nil {
		slog.Error("failed to create api handler", "error", err)
		os.Exit(1)
	}
	ready, apiDone, err := api.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start api server", "error", err)
		os.Exit(1)
	}
	<-ready

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	cancel()
	<-workerDone
	<-apiDone

	slog.Info("graphmail server stopped")
}
