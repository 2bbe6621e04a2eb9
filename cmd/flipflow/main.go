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

	"github.com/flipflow/flipflow/internal/bus"
	"github.com/flipflow/flipflow/internal/capability"
	"github.com/flipflow/flipflow/internal/config"
	"github.com/flipflow/flipflow/internal/engine"
	"github.com/flipflow/flipflow/internal/platform"
	"github.com/flipflow/flipflow/internal/server"
	"github.com/flipflow/flipflow/internal/storage"
	"github.com/flipflow/flipflow/internal/store"
	"github.com/flipflow/flipflow/pkg/log"
)

type flipflow struct {
	cfg        *config.Config
	store      store.Store
	bus        bus.Bus
	images     *storage.Images
	caps       capability.Client
	platforms  platform.Registry
	engine     *engine.Engine
	supervisor *engine.Supervisor
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var (
	ErrOpenStore  = errors.New("failed to open checkpoint store")
	ErrOpenBus    = errors.New("failed to open event bus")
	ErrOpenBucket = errors.New("failed to open image bucket")
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

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

	s := &flipflow{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *flipflow) run() error {
	if err := s.initializeStores(); err != nil {
		return err
	}

	s.initializeEngine()
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *flipflow) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	env := os.Getenv("ENV")
	logger := log.New(env, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Flipflow starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("store_driver", s.cfg.StoreDriver),
		slog.String("bus_driver", s.cfg.BusDriver),
		slog.String("capability_url", s.cfg.CapabilityURL),
		slog.String("bridge_url", s.cfg.BridgeURL),
		slog.String("bucket_url", s.cfg.BucketURL),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *flipflow) initializeStores() error {
	ctx := context.Background()
	var err error

	s.store, err = store.New(s.cfg.StoreDriver, s.cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenStore, err)
	}

	switch s.cfg.BusDriver {
	case "redis":
		s.bus, err = bus.NewRedisBus(ctx, s.cfg.Redis)
	default:
		s.bus = bus.NewMemoryBus()
	}
	if err != nil {
		_ = s.store.Close()
		return fmt.Errorf("%w: %w", ErrOpenBus, err)
	}

	s.images, err = storage.Open(ctx, s.cfg.BucketURL)
	if err != nil {
		_ = s.bus.Close()
		_ = s.store.Close()
		return fmt.Errorf("%w: %w", ErrOpenBucket, err)
	}

	return nil
}

func (s *flipflow) initializeEngine() {
	s.caps = capability.NewHTTPClient(
		s.cfg.CapabilityURL, s.cfg.CapabilityTimeout,
	)

	s.platforms = platform.Registry{}
	for _, p := range s.cfg.Platforms {
		s.platforms.Register(platform.NewBridge(
			s.cfg.BridgeURL, p, s.cfg.BridgeTimeout,
		))
	}

	s.engine = engine.New(s.store, s.bus, s.caps, s.platforms,
		engine.WithRetryPolicy(&s.cfg.Retry),
		engine.WithImageResolver(s.images.Resolve),
	)
	s.engine.Start()

	s.supervisor = engine.NewSupervisor(
		s.engine, s.store, s.cfg.PollInterval,
	)
	s.supervisor.Start()
}

func (s *flipflow) startServer() {
	s.apiServer = server.NewServer(
		s.engine, s.supervisor, s.store, s.bus, s.images, s.cfg.Platforms,
	)
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

func (s *flipflow) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()
	s.supervisor.Stop()
	s.engine.Stop()

	_ = s.bus.Close()
	_ = s.images.Close()
	_ = s.store.Close()

	slog.Info("Server exited")
}
