package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JuanPabloGaviria/zoom-middleware/internal/announce"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/api"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/auth"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/config"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/dispatch"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/extract"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/journal"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/llm"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/media"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/processor"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/stream"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/stt"
	"github.com/JuanPabloGaviria/zoom-middleware/internal/taskboard"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("zoom-middleware starting",
		"port", cfg.Port,
		"ws_url", cfg.ZoomWebSocketURL,
		"max_reconnect_attempts", cfg.MaxReconnectAttempts,
		"dispatch_window", cfg.RateWindow,
		"dispatch_max_requests", cfg.RateMaxRequests,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Zoom credential provider, shared by the websocket handshake and
	// recording downloads.
	tokens := auth.NewProvider(auth.Config{
		TokenURL:     cfg.ZoomTokenURL,
		ClientID:     cfg.ZoomClientID,
		ClientSecret: cfg.ZoomClientSecret,
		AccountID:    cfg.ZoomAccountID,
	})

	// Step 2: rate-limited dispatcher for board writes.
	dispatcher := dispatch.New(dispatch.Config{
		Window:      cfg.RateWindow,
		MaxRequests: cfg.RateMaxRequests,
		RetryDelay:  cfg.RetryDelay,
		MaxRetries:  cfg.MaxRetries,
	})
	dispatcher.Start(ctx)

	// Step 3: extraction chain. Managed transcription+interpretation first,
	// pattern scan as the cheap fallback.
	transcriber := stt.NewClient(cfg.SpeechEndpoint, cfg.SpeechAPIKey)
	interpreter := llm.NewClient(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel)
	chain := extract.NewChain(
		extract.NewLLMStrategy(transcriber, interpreter, cfg.DefaultProject),
		extract.NewPatternStrategy(transcriber, cfg.DefaultProject),
	)

	// Step 4: event processor.
	board := taskboard.NewClient(cfg.BoardBaseURL, cfg.BoardAPIKey, cfg.BoardToken, cfg.BoardListID)
	proc := processor.New(
		media.NewDownloader(cfg.MediaDir, cfg.FFmpegPath),
		chain,
		dispatcher,
		board,
		processor.Config{
			InterTaskDelay:  cfg.InterTaskDelay,
			InterGroupDelay: cfg.InterGroupDelay,
		},
	)
	proc.SetTokenProvider(tokens)

	// Optional: processed-recording journal for redelivery dedup.
	if cfg.DatabaseURL != "" {
		j, err := journal.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect journal database", "error", err)
			os.Exit(1)
		}
		defer j.Close()
		proc.SetJournal(j)
		slog.Info("journal enabled")
	}

	// Optional: NATS announcer for lifecycle and summaries.
	var ann *announce.Announcer
	if cfg.NatsURL != "" {
		var err error
		ann, err = announce.New(cfg.NatsURL)
		if err != nil {
			slog.Error("failed to connect NATS", "error", err)
			os.Exit(1)
		}
		defer ann.Close()
		proc.SetAnnouncer(ann)
		slog.Info("announcer enabled", "nats_url", cfg.NatsURL)
	}

	// Step 5: the persistent event stream.
	manager := stream.NewManager(stream.Config{
		URL:               cfg.ZoomWebSocketURL,
		SubscriptionID:    cfg.ZoomSubscriptionID,
		HeartbeatInterval: cfg.HeartbeatInterval,
		MaxAttempts:       cfg.MaxReconnectAttempts,
		BaseDelay:         cfg.ReconnectBaseDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
	}, tokens, stream.NewWebSocketTransport(), proc.Handle)
	manager.SetFatalHandler(func(err error) {
		slog.Error("event stream gave up reconnecting", "error", err)
		if ann != nil {
			ann.Publish("stream.fatal", map[string]string{"error": err.Error()})
		}
	})
	manager.Connect()
	defer manager.Close()

	if ann != nil {
		ann.Publish("started", map[string]any{"port": cfg.Port})
	}

	// Step 6: HTTP API for health checks and manual replays.
	srv := api.NewServer(manager, dispatcher, proc, cfg.Port)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("zoom-middleware ready", "port", cfg.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("shutting down", "signal", sig)
	manager.Close()
	cancel()
	dispatcher.Wait()
	slog.Info("zoom-middleware stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
