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

// graphmail sendmail
//
// One-shot CLI that sends a single message through Microsoft Graph using
// the same configuration as the server. Tokens are cached in Redis when
// redis.url is set, otherwise in memory for the life of the process.
//
// Usage:
//
//	go run ./cmd/sendmail/ --to a@example.com[,b@example.com] --subject "Hi" --html "<b>Hi</b>" [--attach report.pdf] [--tenant <id>] [--direct]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/graphmail/internal/config"
	"github.com/bcem/graphmail/internal/graph"
	"github.com/bcem/graphmail/internal/mail"
	"github.com/bcem/graphmail/internal/tokencache"
	"github.com/bcem/graphmail/internal/transport"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// --- CLI Flags ---
	fromFlag := flag.String("from", "", "From address (default: mailer.from.address)")
	toFlag := flag.String("to", "", "Comma-separated To recipients")
	ccFlag := flag.String("cc", "", "Comma-separated Cc recipients")
	bccFlag := flag.String("bcc", "", "Comma-separated Bcc recipients")
	subjectFlag := flag.String("subject", "", "Message subject")
	textFlag := flag.String("text", "", "Plain text body")
	htmlFlag := flag.String("html", "", "HTML body (takes precedence over --text)")
	attachFlag := flag.String("attach", "", "Comma-separated files to attach")
	tenantFlag := flag.String("tenant", "", "Tenant id override (default: mailer.tenant_id)")
	directFlag := flag.Bool("direct", false, "Send with a single sendMail call instead of draft then send")
	flag.Parse()

	msg := &mail.Message{
		From:    mail.Addresses(splitList(*fromFlag)...),
		To:      mail.Addresses(splitList(*toFlag)...),
		Cc:      mail.Addresses(splitList(*ccFlag)...),
		Bcc:     mail.Addresses(splitList(*bccFlag)...),
		Subject: *subjectFlag,
		Text:    *textFlag,
		HTML:    *htmlFlag,
	}
	if len(msg.Recipients()) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one of --to, --cc or --bcc is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	for _, path := range splitList(*attachFlag) {
		if err := msg.AttachFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Token cache ---
	var cache graph.TokenCache = tokencache.NewMemory()
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		cache = tokencache.NewRedis(rdb, "graphmail:")
	}

	client, err := graph.NewClient(graph.Config{
		ClientID:       cfg.Mailer.ClientID,
		ClientSecret:   cfg.Mailer.ClientSecret,
		AccessTokenTTL: cfg.Mailer.AccessTokenTTL,
		Cache:          cache,
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
	if *tenantFlag != "" {
		tr = tr.WithTenant(*tenantFlag)
	}

	// --- Send ---
	if *directFlag {
		err = tr.SendDirect(ctx, msg)
	} else {
		var res *transport.Result
		res, err = tr.Send(ctx, msg)
		if err == nil {
			fmt.Println(res.InternetMessageID)
		}
	}
	if err != nil {
		slog.Error("send failed", "tenant", tr.TenantID(), "error", err)
		os.Exit(1)
	}
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
