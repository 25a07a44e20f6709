package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app "github.com/danphilibin/relay"
	"github.com/danphilibin/relay/internal/callresponse"
	"github.com/danphilibin/relay/internal/config"
	"github.com/danphilibin/relay/internal/durable"
	"github.com/danphilibin/relay/internal/relay"
	"github.com/danphilibin/relay/internal/script"
	"github.com/danphilibin/relay/internal/server"
	"github.com/danphilibin/relay/internal/stream"
	"github.com/danphilibin/relay/internal/workflows"
	"github.com/danphilibin/relay/pkg/log"
)

type relayd struct {
	cfg          *config.Config
	registry     *relay.Registry
	hub          *stream.Hub
	host         *durable.Host
	orchestrator *callresponse.Orchestrator
	apiServer    *server.Server
	httpServer   *http.Server
	quit         chan os.Signal
}

var (
	ErrCreateStreamStore  = errors.New("failed to create stream store")
	ErrCreateHistoryStore = errors.New("failed to create history store")
	ErrLoadWorkflows      = errors.New("failed to load workflows")
)

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &relayd{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *relayd) run() error {
	if err := s.loadWorkflows(); err != nil {
		return err
	}
	if err := s.initializeRuntime(); err != nil {
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *relayd) setupLogging() {
	level := log.ParseLevel(s.cfg.LogLevel)

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Relay starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("stream_backend", s.cfg.Stream.Backend),
		slog.String("history_backend", s.cfg.History.Backend),
		slog.String("script_dir", s.cfg.ScriptDir),
		slog.String("app_url", s.cfg.AppURL),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *relayd) loadWorkflows() error {
	s.registry = relay.NewRegistry()
	if err := workflows.Register(s.registry); err != nil {
		return fmt.Errorf("%w: %w", ErrLoadWorkflows, err)
	}
	if s.cfg.ScriptDir == "" {
		return nil
	}

	defs, err := script.LoadDir(s.cfg.ScriptDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadWorkflows, err)
	}
	for _, def := range defs {
		if err := s.registry.Register(def); err != nil {
			return fmt.Errorf("%w: %w", ErrLoadWorkflows, err)
		}
	}
	return nil
}

func (s *relayd) initializeRuntime() error {
	ctx := context.Background()

	streams, err := stream.NewStore(ctx, s.cfg.Stream)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateStreamStore, err)
	}
	history, err := durable.NewHistoryStore(ctx, s.cfg.History)
	if err != nil {
		_ = streams.Close()
		return fmt.Errorf("%w: %w", ErrCreateHistoryStore, err)
	}

	s.hub = stream.NewHub(streams, s.cfg.ActorIdleTimeout)
	s.host = durable.NewHost(history)

	runner := relay.NewRunner(s.registry, s.hub, s.cfg.InputTimeout)
	if err := runner.Register(s.host); err != nil {
		return err
	}
	s.orchestrator = callresponse.New(s.registry, s.hub, s.host,
		callresponse.Options{
			AppURL:          s.cfg.AppURL,
			ResponseTimeout: s.cfg.ResponseTimeout,
		},
	)

	_, err = s.host.Recover(ctx)
	return err
}

func (s *relayd) startServer() {
	s.apiServer = server.NewServer(s.orchestrator, s.hub)
	mux := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: mux,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *relayd) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()

	if err := s.host.Close(); err != nil {
		slog.Error("Durable host shutdown failed", log.Error(err))
	}
	if err := s.hub.Close(); err != nil {
		slog.Error("Stream hub shutdown failed", log.Error(err))
	}

	slog.Info("Server exited")
}
