// Command naveo-voice runs the realtime voice gateway for the Naveo travel
// assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/naveo-ai/naveo-voice/internal/chat"
	"github.com/naveo-ai/naveo-voice/internal/config"
	"github.com/naveo-ai/naveo-voice/internal/gateway"
	"github.com/naveo-ai/naveo-voice/internal/health"
	"github.com/naveo-ai/naveo-voice/internal/observe"
	"github.com/naveo-ai/naveo-voice/internal/voice"
	"github.com/naveo-ai/naveo-voice/pkg/audio"
	"github.com/naveo-ai/naveo-voice/pkg/provider/live/gemini"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "naveo-voice: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "naveo-voice: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a config reload can adjust it at runtime.
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("naveo-voice starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "naveo-voice",
	})
	if err != nil {
		slog.Error("failed to initialise observability", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("observability shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Audio devices ─────────────────────────────────────────────────────────
	// Hardware-backed when built with -tags portaudio, rebuild-hint stubs
	// otherwise.
	mic := audio.NewMicrophone(audio.CaptureRate, audio.FrameSize)
	speaker, err := audio.NewSpeaker(audio.PlaybackRate)
	if err != nil {
		slog.Error("failed to open playback device", "err", err)
		return 1
	}
	defer speaker.Close()

	// ── Providers ─────────────────────────────────────────────────────────────
	var liveOpts []gemini.Option
	if cfg.Live.Model != "" {
		liveOpts = append(liveOpts, gemini.WithModel(cfg.Live.Model))
	}
	if cfg.Live.BaseURL != "" {
		liveOpts = append(liveOpts, gemini.WithBaseURL(cfg.Live.BaseURL))
	}
	provider := gemini.New(cfg.Live.APIKey, liveOpts...)

	chatClient := chat.NewClient(cfg.Chat.BaseURL, chatOptions(cfg.Chat)...)

	// ── Controller ────────────────────────────────────────────────────────────
	ctrl := voice.New(provider, chatClient, mic, speaker, metrics, voice.Config{
		Voice:             cfg.Live.Voice,
		SystemInstruction: cfg.Live.SystemInstruction,
	})

	// ── Gateway ───────────────────────────────────────────────────────────────
	healthHandler := health.New(
		health.LiveProviderChecker(func() bool { return cfg.Live.APIKey != "" }),
		health.ChatBackendChecker(chatClient.BreakerState),
	)
	gw := gateway.New(ctrl, healthHandler, metrics, cfg.Server)

	// ── Config watcher ────────────────────────────────────────────────────────
	// Log level changes apply live; anything else needs a restart.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(d.NewLogLevel.SlogLevel())
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.ServerChanged || d.LiveChanged || d.ChatChanged {
			slog.Warn("config changed in ways that need a restart to apply")
		}
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gw.Serve(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		ctrl.Stop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// chatOptions maps the chat config block onto client options, keeping the
// client defaults for anything left unset.
func chatOptions(cfg config.ChatConfig) []chat.Option {
	var opts []chat.Option

	if cfg.Timeout > 0 {
		opts = append(opts, chat.WithHTTPClient(newHTTPClient(cfg.Timeout.Std())))
	}

	retry := chat.DefaultRetryConfig()
	if cfg.Retry.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialBackoff > 0 {
		retry.InitialDelay = cfg.Retry.InitialBackoff.Std()
	}
	if cfg.Retry.MaxBackoff > 0 {
		retry.MaxDelay = cfg.Retry.MaxBackoff.Std()
	}
	opts = append(opts, chat.WithRetryConfig(retry))

	return opts
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
