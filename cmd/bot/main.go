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
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Raks-kmt/kaishou/internal/api"
	"github.com/Raks-kmt/kaishou/internal/api/handler"
	"github.com/Raks-kmt/kaishou/internal/bot"
	"github.com/Raks-kmt/kaishou/internal/config"
	"github.com/Raks-kmt/kaishou/internal/extractor"
	"github.com/Raks-kmt/kaishou/internal/fetcher"
	"github.com/Raks-kmt/kaishou/internal/service"
	"github.com/Raks-kmt/kaishou/internal/session"
	"github.com/Raks-kmt/kaishou/pkg/kuaishou"
)

var (
	Version   = "2.0.0"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("kaishou %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Apply configured log level
	if lvl := logLevel(cfg.LogLevel); lvl != slog.LevelInfo {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: lvl,
		}))
		slog.SetDefault(logger)
	}

	logger.Info("starting kaishou",
		"version", Version,
		"build_time", BuildTime,
	)

	// Ensure the scratch root exists
	if err := os.MkdirAll(cfg.Storage.DownloadsRoot, 0755); err != nil {
		logger.Error("failed to create downloads directory", "error", err)
		os.Exit(1)
	}

	// Initialize dependencies
	headers := kuaishou.NewHeaderPool(cfg.Download.UserAgents, cfg.Download.Referer, cfg.Download.Origin)
	apiClient := kuaishou.NewClient(cfg.Extract.Timeout, headers)
	scraper := kuaishou.NewPageScraper(cfg.Extract.Timeout, headers)

	chain := extractor.NewChain(
		cfg.Extract,
		logger,
		[]extractor.Strategy{
			extractor.NewAPIStrategy(apiClient),
			extractor.NewPageStrategy(scraper),
		},
		extractor.NewYtDlpStrategy(cfg.Extract),
	)
	media := fetcher.New(cfg.Download, cfg.Storage.MaxFileSize, headers, logger)

	// Initialize services
	sessions := session.NewMemoryStore()
	downloadSvc := service.NewDownloadService(chain, media, cfg.Storage, logger)
	sweeper := service.NewSweeper(cfg.Storage, logger)

	// Connect to Telegram
	botAPI, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		logger.Error("failed to connect to telegram", "error", err)
		os.Exit(1)
	}
	botAPI.Debug = cfg.Bot.Debug

	tg := bot.New(botAPI, downloadSvc, sessions, cfg.Bot, cfg.Storage, logger)

	// Setup the health endpoint router
	healthHandler := handler.NewHealthHandler(Version, cfg.Storage.DownloadsRoot, sessions)
	router := api.NewRouter(healthHandler, cfg.Server.APIKey)

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start the scratch sweeper
	sweeper.Start()

	// Start health server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Start polling in goroutine
	ctx, cancel := context.WithCancel(context.Background())
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		tg.Run(ctx)
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Stop polling (in-flight messages finish before Run returns)
	cancel()
	<-botDone

	// Graceful shutdown
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if err := sweeper.Stop(10 * time.Second); err != nil {
		logger.Error("sweeper shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
