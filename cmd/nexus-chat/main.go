// ABOUTME: Entry point for the nexus-chat terminal client
// ABOUTME: Wires config, logging, transport, voice poller, console and session loop under one errgroup

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/2389/nexus-chat/internal/audio"
	"github.com/2389/nexus-chat/internal/auth"
	"github.com/2389/nexus-chat/internal/config"
	"github.com/2389/nexus-chat/internal/console"
	"github.com/2389/nexus-chat/internal/logging"
	"github.com/2389/nexus-chat/internal/markdown"
	"github.com/2389/nexus-chat/internal/metrics"
	"github.com/2389/nexus-chat/internal/session"
	"github.com/2389/nexus-chat/internal/transport"
)

// Version is set by goreleaser at build time.
var version = "dev"

type flags struct {
	configPath string
	userID     string
	mute       bool
	showLog    bool
	noColor    bool
	version    bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Config file (default $NEXUS_CONFIG or ~/.config/nexus/chat.yaml)")
	flag.StringVar(&f.userID, "user", "", "User id for the chat session (default: config or a new uuid)")
	flag.BoolVar(&f.mute, "mute", false, "Start with voice playback muted")
	flag.BoolVar(&f.showLog, "log", false, "Start with the progress log visible")
	flag.BoolVar(&f.noColor, "no-color", false, "Disable colour output")
	flag.BoolVar(&f.version, "version", false, "Print version and exit")
	flag.Parse()

	if f.version {
		fmt.Println("nexus-chat", version)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nลาก่อนครับ")
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	return config.LoadDefault()
}

func run(ctx context.Context, f flags) error {
	cfg, cfgPath, err := loadConfig(f.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if f.userID != "" {
		cfg.Server.UserID = f.userID
	}
	if cfg.Server.UserID == "" {
		cfg.Server.UserID = uuid.NewString()
	}
	if f.mute {
		cfg.Audio.Muted = true
	}
	if f.noColor {
		color.NoColor = true
	}

	logger, closer, err := logging.Open(cfg.Logging)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if cfgPath != "" {
		logger.Info("config loaded", "path", cfgPath)
	}

	token := auth.LoadToken(cfg.Server.TokenFile)
	if err := checkToken(token, logger); err != nil {
		return err
	}
	header := auth.Header(token)

	client := transport.New(transport.Config{
		URL:            sessionURL(cfg.Server.WSURL, cfg.Server.UserID),
		Header:         header,
		ReconnectDelay: cfg.Session.ReconnectDelay,
		Logger:         logger,
	})

	renderer, err := newRenderer(cfg.Render.Format, f.noColor)
	if err != nil {
		return err
	}

	mode := console.ColorAuto
	if f.noColor {
		mode = console.ColorNever
	}
	sink := console.NewSink(os.Stdout, console.Options{Color: mode, ShowLog: f.showLog})
	prompts := console.NewPrompts(sink)
	collector := metrics.New()

	var voice session.VoicePoller
	if cfg.Audio.Enabled {
		player, err := newPlayer(cfg.Audio.PlayerCommand, logger)
		if err != nil {
			return err
		}
		defer player.Stop()

		fetcher, err := audio.NewHTTPFetcher(cfg.Server.HTTPURL, header, nil)
		if err != nil {
			return fmt.Errorf("audio status endpoint: %w", err)
		}
		voice = audio.NewPoller(audio.Config{
			Fetcher:     fetcher,
			Player:      player,
			MaxAttempts: cfg.Audio.MaxAttempts,
			Interval:    cfg.Audio.PollInterval,
			Muted:       cfg.Audio.Muted,
			Logger:      logger,
		})
	}

	controller, err := session.New(session.Deps{
		Transport: client,
		Messages:  sink,
		Progress:  sink,
		Renderer:  renderer,
		Prompts:   prompts,
		Voice:     voice,
		Metrics:   collector,
		Logger:    logger,
	}, session.Options{
		ThinkingTick:   cfg.Session.ThinkingTick,
		RequestTimeout: cfg.Session.RequestTimeout,
		Greeting:       session.Greeting,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	sink.Printf("nexus-chat %s connecting to %s as %s", version, cfg.Server.WSURL, cfg.Server.UserID)
	sink.Printf("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	prompts.Show()

	input := console.NewInput(os.Stdin, controller, sink, prompts)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return client.Run(gctx) })
	g.Go(func() error { return controller.Run(gctx) })
	g.Go(func() error {
		if err := input.Run(gctx); err != nil {
			return err
		}
		// End of input ends the session.
		return console.ErrQuit
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error { return collector.Serve(gctx, cfg.Metrics.Addr, cfg.Metrics.Path, logger) })
	}

	err = g.Wait()
	if errors.Is(err, console.ErrQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// sessionURL appends /ws/{user_id} to the configured WebSocket base.
func sessionURL(base, userID string) string {
	return strings.TrimRight(base, "/") + "/ws/" + url.PathEscape(userID)
}

// checkToken refuses to start with a JWT that has already expired.
// Opaque tokens are passed through unchecked.
func checkToken(token string, logger *slog.Logger) error {
	if token == "" {
		logger.Debug("no auth token configured")
		return nil
	}
	info, err := auth.Inspect(token)
	if err != nil {
		logger.Debug("auth token is not a JWT, sending as-is")
		return nil
	}
	if info.Expired(time.Now()) {
		return fmt.Errorf("auth token for %q expired at %s", info.Subject, info.ExpiresAt.Format(time.RFC3339))
	}
	if !info.Session {
		logger.Warn("auth token is not scoped to nexus-chat; the backend may reject it", "subject", info.Subject)
	}
	if !info.ExpiresAt.IsZero() {
		logger.Info("auth token loaded", "subject", info.Subject, "expires", info.ExpiresAt)
	}
	return nil
}

func newRenderer(format string, noColor bool) (session.Renderer, error) {
	if noColor && (format == markdown.FormatTerminal || format == "") {
		return markdown.NewPlain(), nil
	}
	r, err := markdown.New(format)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func newPlayer(commandLine string, logger *slog.Logger) (audio.Player, error) {
	if commandLine == "" {
		return audio.LogPlayer{Logger: logger}, nil
	}
	p, err := audio.NewCommandPlayer(commandLine, logger)
	if err != nil {
		return nil, fmt.Errorf("audio player: %w", err)
	}
	return p, nil
}
