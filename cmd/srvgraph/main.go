// srvgraph serves a small GraphQL API over an in-memory set of service
// records. GET / serves the GraphiQL explorer, GET and POST /graphql execute
// queries and mutations, and /admin/* exposes the test control plane.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/wondertwin-ai/srvgraph/internal/api"
	"github.com/wondertwin-ai/srvgraph/internal/config"
	"github.com/wondertwin-ai/srvgraph/internal/store"
	"github.com/wondertwin-ai/srvgraph/pkg/admin"
	"github.com/wondertwin-ai/srvgraph/pkg/twincore"
	"github.com/wondertwin-ai/srvgraph/pkg/webhook"
)

func main() {
	cfg := twincore.ParseFlags("srvgraph")

	twin, dispatcher, err := build(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = twin.Serve(ctx)
	dispatcher.Wait()
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// build assembles the server: config file, seeded store, webhook
// dispatcher, API and admin routes.
func build(cfg *twincore.Config) (*twincore.Twin, *webhook.Dispatcher, error) {
	var seed []store.Record
	if cfg.ConfigFile != "" {
		fileCfg, err := config.Load(cfg.ConfigFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		fileCfg.Apply(cfg)
		seed = fileCfg.Records()
	}
	if cfg.Addr == "" {
		cfg.Addr = config.DefaultAddr
	}

	twin := twincore.New(cfg)
	memStore := store.New(seed...)

	if cfg.SeedFile != "" {
		data, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read seed file: %w", err)
		}
		if err := memStore.LoadState(data); err != nil {
			return nil, nil, fmt.Errorf("failed to load seed data: %w", err)
		}
		twin.Logger.Info("loaded seed data", "file", cfg.SeedFile)
	}

	dispatcher := webhook.NewDispatcher(webhook.Config{
		URL:         cfg.WebhookURL,
		Secret:      cfg.WebhookSecret,
		Signer:      webhook.NewHMACSigner(),
		Logger:      twin.Logger,
		EventPrefix: "evt",
		AutoDeliver: cfg.WebhookURL != "",
	})
	twin.OnUpdate(func(c twincore.Config) {
		dispatcher.Retarget(c.WebhookURL)
	})

	apiHandler, err := api.NewHandler(memStore, dispatcher, twin.Middleware())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build API: %w", err)
	}
	apiHandler.Routes(twin.Router)

	adminHandler := admin.NewHandler(memStore, twin.Middleware())
	adminHandler.SetWebhooks(dispatcher)
	adminHandler.SetConfig(twin)
	adminHandler.Routes(twin.Router)

	twin.Logger.Info("srvgraph ready",
		"addr", cfg.Addr,
		"records", memStore.Records.Count(),
		"webhook_url", cfg.WebhookURL,
	)
	return twin, dispatcher, nil
}
