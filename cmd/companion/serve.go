package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aiox-platform/companion/internal/api"
	"github.com/aiox-platform/companion/internal/artifacts"
	"github.com/aiox-platform/companion/internal/audit"
	"github.com/aiox-platform/companion/internal/database"
	"github.com/aiox-platform/companion/internal/grpchealth"
	"github.com/aiox-platform/companion/internal/memory"
	mw "github.com/aiox-platform/companion/internal/middleware"
	inats "github.com/aiox-platform/companion/internal/nats"
	"github.com/aiox-platform/companion/internal/orchestrator"
	"github.com/aiox-platform/companion/internal/schedule"
	"github.com/aiox-platform/companion/internal/server"
	"github.com/aiox-platform/companion/internal/thread"
	"github.com/aiox-platform/companion/internal/xmpp"
)

var runMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when enabled, the NATS orchestrator, XMPP gateway and gRPC health server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&runMigrations, "migrate", false, "apply database migrations before serving")
}

func serve(ctx context.Context) error {
	if runMigrations && cfg.Memory.Backend == "postgres" {
		if err := database.RunMigrations(cfg.DB); err != nil {
			return err
		}
	}

	c, err := buildCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	checks := c.readinessChecks()
	g, gctx := errgroup.WithContext(ctx)

	// Artifact retention
	sweeper, err := artifacts.NewSweeper(c.artifacts, cfg.Artifacts.Retention, cfg.Artifacts.SweepSchedule)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	// NATS orchestrator, audit trail and XMPP gateway
	var turns *audit.Repository
	if cfg.Orchestrator.Enabled {
		natsClient, err := inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			return fmt.Errorf("connecting to nats: %w", err)
		}
		defer natsClient.Close()
		checks = append(checks, api.ReadinessCheck{Name: "nats", Pinger: natsClient})

		publisher := inats.NewPublisher(natsClient.JetStream())
		consumers := inats.NewConsumerManager(natsClient.JetStream())

		orch := orchestrator.NewOrchestrator(
			publisher,
			consumers,
			orchestrator.NewValidator(cfg.Orchestrator.AllowedDomains),
			c.intake,
			c.engine,
			c.artifacts,
			cfg.Orchestrator.Concurrency,
		)
		g.Go(func() error { return orch.Start(gctx) })

		if c.pool != nil {
			turns = audit.NewRepository(c.pool)
			auditConsumer := audit.NewConsumer(turns, consumers)
			g.Go(func() error { return auditConsumer.Start(gctx) })
		}

		if cfg.XMPP.Enabled {
			handler := xmpp.NewHandler(publisher)
			component, err := xmpp.NewComponent(cfg.XMPP, handler)
			if err != nil {
				return fmt.Errorf("creating xmpp component: %w", err)
			}
			relay := xmpp.NewOutboundRelay(handler, component.Sender(), consumers)
			g.Go(func() error { return component.Start(gctx) })
			g.Go(func() error { return relay.Start(gctx) })
		}
	}

	// gRPC health
	if cfg.GRPC.Enabled {
		probes := make([]grpchealth.Check, len(checks))
		for i, check := range checks {
			probes[i] = grpchealth.Check{Name: check.Name, Ping: check.Pinger.Ping}
		}
		healthSrv := grpchealth.NewServer(cfg.GRPC.APIKey, probes)
		g.Go(func() error { return healthSrv.ListenAndServe(gctx, cfg.GRPC.Addr()) })
	}

	// HTTP
	threads := thread.NewHandler(c.engine, c.intake, c.artifacts)
	memories := memory.NewHandler(c.memories)
	handlers := api.HandlerSet{
		PostMessage:    threads.PostMessage,
		GetThread:      threads.Get,
		ListMemories:   memories.List,
		SearchMemories: memories.Search,
		GetArtifact:    artifacts.NewHandler(c.artifacts).Get,
		GetActivity:    schedule.NewHandler(c.schedule).Activity,
	}
	if turns != nil {
		handlers.ListTurns = audit.NewHandler(turns).ListTurns
	}

	routerCfg := api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		ReadinessChecks:    checks,
	}
	if cfg.RateLimit.Enabled {
		limiter := mw.NewRateLimiter(c.redis, "messages", cfg.RateLimit.Requests, cfg.RateLimit.Window)
		routerCfg.MessageRateLimiter = limiter.Middleware
	}

	srv := server.New(cfg.Server, api.NewRouter(routerCfg, handlers))
	g.Go(func() error { return srv.Run(gctx) })

	slog.Info("companion serving",
		"http", srv.Addr(),
		"orchestrator", cfg.Orchestrator.Enabled,
		"xmpp", cfg.Orchestrator.Enabled && cfg.XMPP.Enabled,
		"grpc", cfg.GRPC.Enabled,
	)
	return g.Wait()
}
