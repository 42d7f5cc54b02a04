// ABOUTME: Scripted chat backend for trying nexus-chat without the real assistant
// ABOUTME: Usage: fake-backend [-addr localhost:8000] [-polls 2] [-delay 300ms] [-secret S]

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

	"github.com/2389/nexus-chat/internal/auth"
	"github.com/2389/nexus-chat/internal/config"
	"github.com/2389/nexus-chat/internal/fakebackend"
	"github.com/2389/nexus-chat/internal/logging"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "Listen address")
	polls := flag.Int("polls", fakebackend.DefaultProcessingPolls, "Status polls reported as processing before a clip is done")
	delay := flag.Duration("delay", 300*time.Millisecond, "Pause between progress frames")
	secret := flag.String("secret", "", "Require HS256 bearer tokens signed with this secret")
	issue := flag.String("issue", "", "Print a 24h token for this user id and exit (needs -secret)")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger := logging.New(config.LoggingConfig{Level: *level}, os.Stderr)

	if *issue != "" {
		if *secret == "" {
			fmt.Fprintln(os.Stderr, "Error: -issue needs -secret")
			os.Exit(1)
		}
		token, err := auth.NewSigner([]byte(*secret)).Issue(*issue, 24*time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	cfg := fakebackend.Config{
		ProcessingPolls: *polls,
		StepDelay:       *delay,
		Logger:          logger,
	}
	if *secret != "" {
		cfg.Verifier = auth.NewSigner([]byte(*secret))
	}

	if err := run(*addr, fakebackend.New(cfg), logger); err != nil {
		logger.Error("fake backend failed", "error", err)
		os.Exit(1)
	}
}

func run(addr string, backend *fakebackend.Server, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server := &http.Server{
		Addr:              addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fake backend listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return server.Shutdown(shutdownCtx)
}
