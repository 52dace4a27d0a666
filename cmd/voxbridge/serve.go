package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/voxbridge/voxbridge/internal/dotenv"
	"github.com/voxbridge/voxbridge/pkg/bridge/call"
	"github.com/voxbridge/voxbridge/pkg/bridge/config"
	"github.com/voxbridge/voxbridge/pkg/bridge/finalize"
	"github.com/voxbridge/voxbridge/pkg/bridge/metrics"
	"github.com/voxbridge/voxbridge/pkg/bridge/server"
	"github.com/voxbridge/voxbridge/pkg/bridge/session"
	"github.com/voxbridge/voxbridge/pkg/bridge/store"
	"github.com/voxbridge/voxbridge/pkg/bridge/telephony"
	"github.com/voxbridge/voxbridge/pkg/bridge/tools"
)

var serveEnvFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		slog.SetDefault(logger)
		return runServe(cmd.Context(), logger)
	},
	SilenceUsage: true,
}

func init() {
	serveCmd.Flags().StringVar(&serveEnvFile, "env-file", ".env",
		"dotenv file overlaid onto the environment before loading config")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, logger *slog.Logger) error {
	if err := dotenv.Overlay(serveEnvFile); err != nil {
		return err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registry := session.NewRegistry()
	prom := prometheus.NewRegistry()
	m := metrics.New(prom)

	var (
		records  finalize.RecordStore
		memory   call.MemoryReader
		memStore tools.MemoryStore
	)
	if cfg.RedisAddr != "" {
		st := store.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer st.Close()
		records, memory, memStore = st, st, st
		logger.Info("persistence enabled", "redis_addr", cfg.RedisAddr)
	} else {
		logger.Warn("no redis configured, memory and call records are disabled")
	}

	control := telephony.NewRestClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken,
		cfg.TwilioBaseURL, &http.Client{Timeout: cfg.TwilioTimeout})

	toolList := []tools.Tool{
		tools.EndCallTool(control),
		tools.WebScraperTool(),
		tools.CallSummaryTool(),
	}
	toolList = append(toolList, tools.CalendarTools()...)
	if memStore != nil {
		toolList = append(toolList, tools.MemoryTools(memStore)...)
	}
	if cfg.ToolsFile != "" {
		extra, err := tools.LoadToolsFile(cfg.ToolsFile)
		if err != nil {
			return fmt.Errorf("load tools file: %w", err)
		}
		toolList = append(toolList, extra...)
		logger.Info("loaded webhook tools", "file", cfg.ToolsFile, "count", len(extra))
	}
	toolReg, err := tools.NewRegistry(toolList...)
	if err != nil {
		return fmt.Errorf("assemble tool registry: %w", err)
	}

	webhook := tools.NewWebhookClient(cfg.WebhookURL, cfg.WebhookToken,
		&http.Client{Timeout: cfg.WebhookTimeout})
	dispatcher := tools.NewDispatcher(toolReg, webhook, logger)

	finalizer := finalize.New(finalize.Deps{
		Summarizer: finalize.NewChatSummarizer(cfg.CompletionsURL, cfg.OpenAIAPIKey,
			cfg.SummaryModel, cfg.FinalizeTimeout),
		Notifier: finalize.NewWebhookNotifier(webhook),
		Records:  records,
		Control:  control,
		Registry: registry,
		Timeout:  cfg.FinalizeTimeout,
		Log:      logger,
	})

	runner := server.NewBridge(cfg, server.BridgeDeps{
		Tools:      toolReg,
		Dispatcher: dispatcher,
		Memory:     memory,
		Finalizer:  finalizer,
		Metrics:    m,
		Log:        logger,
	})

	srv := server.New(cfg, server.Deps{
		Registry: registry,
		Runner:   runner,
		Metrics:  m,
		Prom:     prom,
		Log:      logger,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting bridge", "addr", cfg.Addr, "tools", toolReg.Len())
	return srv.Run(ctx)
}
