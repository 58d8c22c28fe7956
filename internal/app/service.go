package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"slackrelay/internal/clock"
	"slackrelay/internal/config"
	"slackrelay/internal/ingest"
	"slackrelay/internal/logging"
	"slackrelay/internal/metrics"
	"slackrelay/internal/tagstore"
	"slackrelay/internal/webhook"
)

// callsPerInvocation bounds Slack API round trips made by one update notification.
const callsPerInvocation = 4

// Service composes runtime dependencies and process lifecycle of the serve command.
// Params: config snapshot and shared runtime components.
// Returns: runnable relay service.
type Service struct {
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func()
	metrics   *metrics.Metrics
	store     tagstore.Store
	relay     *ingest.Relay
	httpSrv   *http.Server
	natsSub   interface{ Close() error }
	readyFlag atomic.Bool
}

// NewService builds service instance from config source.
// Params: config source and clock for the memory tag store.
// Returns: initialized service or setup error.
func NewService(source config.ConfigSource, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	service := &Service{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		metrics:  metrics.New(metricsNamespace(cfg.Service.Name)),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := tagstore.Open(ctx, cfg.Tags, clk)
	if err != nil {
		service.cleanupInitResources()
		return nil, fmt.Errorf("open tag store: %w", err)
	}
	service.store = store

	runner, err := webhook.New(cfg.Slack, logger,
		webhook.WithRecorder(service.metrics),
		webhook.WithRemoteObserver(service.metrics.ObserveRemoteCall),
	)
	if err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	service.relay = ingest.NewRelay(runner, store, logger).WithStoreObserver(service.metrics.ObserveTagStore)

	service.buildHTTPServer()
	if err := service.buildNATSResponder(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	return service, nil
}

// Run starts service lifecycle and blocks until shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	if s.cfg.Ingest.HTTP.Enabled {
		go func() {
			s.logger.Info("http server starting", "listen", s.cfg.Ingest.HTTP.Listen)
			err := s.httpSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}
	if s.natsSub != nil {
		s.logger.Info("nats responder subscribed", "subject", s.cfg.Ingest.NATS.Subject, "queue_group", s.cfg.Ingest.NATS.QueueGroup)
	}

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// Handler exposes the HTTP router for in-process tests.
// Params: none.
// Returns: router serving webhook, probes, and metrics.
func (s *Service) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Ready reports whether the service accepts traffic.
func (s *Service) Ready() bool {
	return s.readyFlag.Load()
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats responder close failed", "error", err.Error())
			markErr(fmt.Errorf("nats responder close: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("tag store close failed", "error", err.Error())
		markErr(fmt.Errorf("tag store close: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// buildHTTPServer wires the ingest router.
// Params: none.
// Returns: none.
func (s *Service) buildHTTPServer() {
	router := ingest.NewRouter(s.cfg.Ingest.HTTP, s.relay, s.Ready, s.metrics.Handler(), s.logger)
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Ingest.HTTP.Listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// buildNATSResponder starts NATS ingest when enabled.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSResponder() error {
	if !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	timeout := time.Duration(s.cfg.Slack.TimeoutSec) * time.Second * callsPerInvocation
	responder, err := ingest.NewNATSResponder(s.cfg.Ingest.NATS, s.relay, timeout, s.logger)
	if err != nil {
		return err
	}
	s.natsSub = responder
	return nil
}

func metricsNamespace(name string) string {
	return strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name)
}
