package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"slackrelay/internal/config"
)

// Handler processes one raw webhook request body.
type Handler interface {
	Handle(ctx context.Context, body []byte) Reply
}

// NewRouter builds the HTTP ingest router.
// Params: HTTP ingest config, webhook handler, readiness probe, optional metrics handler, and logger.
// Returns: chi router with webhook, health, readiness, and metrics routes.
func NewRouter(cfg config.HTTPIngestConfig, handler Handler, ready func() bool, metrics http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Post(cfg.WebhookPath, webhookHandler(handler, cfg.MaxBodyBytes, logger))
	router.Get(cfg.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, []byte(`{"status":"ok"}`))
	})
	router.Get(cfg.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			writeJSON(writer, http.StatusServiceUnavailable, []byte(`{"status":"not ready"}`))
			return
		}
		writeJSON(writer, http.StatusOK, []byte(`{"status":"ready"}`))
	})
	if metrics != nil && cfg.MetricsPath != "" {
		router.Method(http.MethodGet, cfg.MetricsPath, metrics)
	}
	return router
}

func webhookHandler(handler Handler, maxBody int64, logger *slog.Logger) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		started := time.Now()
		request.Body = http.MaxBytesReader(writer, request.Body, maxBody)
		defer request.Body.Close()

		body, err := io.ReadAll(request.Body)
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			writeJSON(writer, status, []byte(`{"error":"cannot read request body"}`))
			return
		}

		reply := handler.Handle(request.Context(), body)
		logger.Info("webhook request handled",
			"request_id", middleware.GetReqID(request.Context()),
			"status", reply.Status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
		writeJSON(writer, reply.Status, reply.Body)
	}
}

func writeJSON(writer http.ResponseWriter, status int, body []byte) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_, _ = writer.Write(body)
}
