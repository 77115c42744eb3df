package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/celia-labs/celia-agent/internal/agent"
	apiserver "github.com/celia-labs/celia-agent/internal/api_server"
	"github.com/celia-labs/celia-agent/internal/config"
	"github.com/celia-labs/celia-agent/internal/genai"
	"github.com/celia-labs/celia-agent/internal/service"
	"github.com/celia-labs/celia-agent/internal/store"
	"github.com/celia-labs/celia-agent/pkg/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the celia agent api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			zap.S().Fatalw("reading configuration", "error", err)
		}

		logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()

		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		st := store.NewStore(db)
		defer st.Close()

		if err := st.InitialMigration(); err != nil {
			zap.S().Fatalw("running initial migration", "error", err)
		}

		generator, err := genai.NewGeminiGenerator(cfg.GenAI.APIKey, cfg.GenAI.Model)
		if err != nil {
			zap.S().Fatalw("initializing generation client", "error", err)
		}
		client := genai.NewClient(generator, genai.ClientConfig{
			RequestsPerMinute: cfg.GenAI.RequestsPerMinute,
			Retry: genai.RetryConfig{
				MaxAttempts: cfg.GenAI.MaxAttempts,
				BaseDelay:   cfg.GenAI.BaseDelay,
				MaxDelay:    cfg.GenAI.MaxDelay,
				Multiplier:  2.0,
			},
			MaxMessageLength: cfg.GenAI.MaxMessageLength,
			MaxPlanSteps:     cfg.GenAI.MaxPlanSteps,
			CacheEnabled:     cfg.GenAI.CacheEnabled,
			CacheCapacity:    cfg.GenAI.CacheCapacity,
			CacheTTL:         cfg.GenAI.CacheTTL,
		})

		workspace := agent.NewWorkspace(cfg.Agent.WorkspaceDir)
		coordinator := agent.NewCoordinator(st, client, agent.NewSimulatedExecutor(), workspace, agent.Config{
			MaxConcurrentJobs: cfg.Agent.MaxConcurrentJobs,
			JobTimeout:        cfg.Agent.JobTimeout,
			ReasoningDelay:    agent.DefaultConfig().ReasoningDelay,
		})
		jobService := service.NewJobService(st, workspace, coordinator, cfg.Agent.MaxTaskLength)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalw("creating listener", "error", err)
			}

			server := apiserver.New(cfg, jobService, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalw("running api server", "error", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalw("creating metrics listener", "error", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalw("running metrics server", "error", err)
			}
		}()

		<-ctx.Done()
		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
