package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"slackrelay/internal/config"
)

// NATSResponder serves webhook requests over NATS request/reply on a queue group.
// Params: NATS connection, queue subscription, and webhook handler.
// Returns: NATS ingest lifecycle handle.
type NATSResponder struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	handler Handler
	timeout time.Duration
	logger  *slog.Logger
}

// NewNATSResponder connects and subscribes the webhook subject.
// Params: NATS ingest config, handler, per-message timeout, and optional logger.
// Returns: started responder or initialization error.
func NewNATSResponder(cfg config.NATSIngestConfig, handler Handler, timeout time.Duration, logger *slog.Logger) (*NATSResponder, error) {
	nc, err := nats.Connect(strings.Join(cfg.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats ingest: %w", err)
	}
	responder := &NATSResponder{
		nc:      nc,
		handler: handler,
		timeout: timeout,
		logger:  logger,
	}
	sub, err := nc.QueueSubscribe(cfg.Subject, cfg.QueueGroup, responder.serve)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("queue subscribe %q/%q: %w", cfg.Subject, cfg.QueueGroup, err)
	}
	responder.sub = sub
	return responder, nil
}

// serve handles one message and answers on its reply subject when present.
// Params: NATS message.
// Returns: none.
func (r *NATSResponder) serve(message *nats.Msg) {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	reply := r.handler.Handle(ctx, message.Data)
	if reply.Status != http.StatusOK && r.logger != nil {
		r.logger.Warn("nats webhook request failed", "subject", message.Subject, "status", reply.Status)
	}
	if message.Reply == "" {
		return
	}
	response := nats.NewMsg(message.Reply)
	response.Header.Set("Status", strconv.Itoa(reply.Status))
	response.Data = reply.Body
	if err := message.RespondMsg(response); err != nil && r.logger != nil {
		r.logger.Warn("nats webhook respond failed", "subject", message.Subject, "error", err.Error())
	}
}

// Close drains the subscription and closes the connection.
// Params: none.
// Returns: drain error.
func (r *NATSResponder) Close() error {
	if r.sub != nil {
		if err := r.sub.Drain(); err != nil {
			r.nc.Close()
			return err
		}
	}
	r.nc.Close()
	return nil
}
