// Command streamherald is the main entrypoint for the live-alert bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Opens the Discord gateway session and registers the operator slash
//     commands (setup / addstreamer / removestreamer / liststreamers).
//   - Starts the live-status reconciliation loop against the Twitch Helix API.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/streamherald/announce"
	"github.com/onnwee/streamherald/config"
	"github.com/onnwee/streamherald/db"
	"github.com/onnwee/streamherald/discord"
	"github.com/onnwee/streamherald/registry"
	"github.com/onnwee/streamherald/server"
	"github.com/onnwee/streamherald/telemetry"
	"github.com/onnwee/streamherald/twitchapi"
	"github.com/onnwee/streamherald/watch"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	// Missing bot token is the one fatal startup condition.
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Error("startup aborted", slog.Any("err", err))
		os.Exit(1)
	}
	if !cfg.HasTwitchCredentials() {
		slog.Warn("twitch client id/secret missing; every poll cycle will be skipped until they are set")
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("streamherald", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()
	if err := db.Migrate(context.Background(), database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}
	store := &registry.PGStore{DB: database}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Discord gateway session + operator commands
	client, err := discord.New(cfg.DiscordToken)
	if err != nil {
		slog.Error("failed to create discord client", slog.Any("err", err))
		os.Exit(1)
	}
	if err := client.Open(); err != nil {
		slog.Error("failed to open discord gateway", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Error("failed to close discord session", slog.Any("err", err))
		}
	}()
	if bot := client.BotUser(); bot != nil {
		slog.Info("logged in", slog.String("user", bot.Username))
	}
	commander := discord.NewCommander(store)
	if err := commander.Register(client.Session); err != nil {
		slog.Error("failed to register commands", slog.Any("err", err))
		os.Exit(1)
	}

	// Live-status reconciliation loop
	tokens := &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}
	helix := &twitchapi.HelixClient{ClientID: cfg.TwitchClientID}
	announcer := announce.New(client)
	watcher := watch.New(store, tokens, helix, client, announcer, cfg.PollInterval)
	go watcher.Run(ctx)

	// HTTP server (health/status/metrics)
	go func() {
		if err := server.Start(ctx, database, store, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
