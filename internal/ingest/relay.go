package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"slackrelay/internal/failure"
	"slackrelay/internal/slack"
	"slackrelay/internal/tagstore"
)

// Invoker runs one webhook invocation over decoded parameters.
type Invoker interface {
	Invoke(ctx context.Context, params map[string]any) (*slack.Result, error)
}

// StoreObserver receives one record per tag store operation.
type StoreObserver func(operation string, err error)

// Relay plays the monitoring engine's part around each invocation:
// stored correlation tags are merged into event_tags before the call and persisted after it.
type Relay struct {
	invoker Invoker
	store   tagstore.Store
	logger  *slog.Logger
	observe StoreObserver
}

// Reply is the outcome returned to an ingest client.
type Reply struct {
	Status int
	Body   []byte
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// NewRelay creates a relay.
// Params: invoker, tag store (nil disables persistence), and logger (nil uses slog.Default).
// Returns: relay.
func NewRelay(invoker Invoker, store tagstore.Store, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{invoker: invoker, store: store, logger: logger}
}

// WithStoreObserver attaches a tag store observer.
// Params: observer callback.
// Returns: same relay for chaining.
func (r *Relay) WithStoreObserver(observe StoreObserver) *Relay {
	r.observe = observe
	return r
}

// Handle runs one raw JSON request through rehydrate, invoke, and persist.
// Params: context and raw JSON parameter object.
// Returns: reply with HTTP-style status and JSON body.
func (r *Relay) Handle(ctx context.Context, body []byte) Reply {
	var params map[string]any
	if err := json.Unmarshal(body, &params); err != nil || params == nil {
		return errorReply(http.StatusBadRequest, failure.New(failure.KindConfiguration, "request body must be a JSON object"))
	}

	eventID, _ := params["event_id"].(string)
	eventID = strings.TrimSpace(eventID)
	if r.store != nil && eventID != "" {
		stored, err := r.store.Read(ctx, eventID)
		r.record("read", err)
		if err != nil {
			r.logger.Error("tag store read failed", "event_id", eventID, "error", err.Error())
			return errorReply(http.StatusServiceUnavailable, err)
		}
		rehydrate(params, stored)
	}

	result, err := r.invoker.Invoke(ctx, params)
	if err != nil {
		return errorReply(statusFor(err), err)
	}

	if r.store != nil && eventID != "" {
		r.persist(ctx, eventID, result)
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return errorReply(http.StatusInternalServerError, err)
	}
	return Reply{Status: http.StatusOK, Body: encoded}
}

// persist saves captured tags and forgets closed alerts; failures are logged only.
func (r *Relay) persist(ctx context.Context, eventID string, result *slack.Result) {
	var err error
	switch {
	case result.Closed:
		err = r.store.Write(ctx, eventID, nil)
		r.record("delete", err)
	case len(result.Tags) > 0:
		err = r.store.Write(ctx, eventID, result.Tags)
		r.record("write", err)
	default:
		return
	}
	if err != nil {
		r.logger.Error("tag store write failed", "event_id", eventID, "error", err.Error())
	}
}

func (r *Relay) record(operation string, err error) {
	if r.observe != nil {
		r.observe(operation, err)
	}
}

// rehydrate appends stored correlation tags to the event_tags JSON array.
// Params: params mutated in place and stored tags.
// Returns: nothing; malformed event_tags are left for validation to report.
func rehydrate(params map[string]any, stored slack.Tags) {
	if len(stored) == 0 {
		return
	}

	var items []map[string]any
	if raw, ok := params["event_tags"].(string); ok && strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return
		}
	}

	present := make(map[string]struct{}, len(items))
	for _, item := range items {
		if name, ok := item["tag"].(string); ok {
			present[name] = struct{}{}
		}
	}
	flat := stored.Flat()
	for _, name := range stored.Names() {
		if _, ok := present[name]; ok {
			continue
		}
		items = append(items, map[string]any{"tag": name, "value": flat[name]})
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return
	}
	params["event_tags"] = string(encoded)
}

// statusFor maps a failure kind onto an HTTP status.
func statusFor(err error) int {
	switch failure.KindOf(err) {
	case failure.KindConfiguration, failure.KindUnsupportedSource:
		return http.StatusBadRequest
	case failure.KindMissingField:
		return http.StatusUnprocessableEntity
	case failure.KindTransport, failure.KindRemoteAPI, failure.KindUnknownRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorReply(status int, err error) Reply {
	body, marshalErr := json.Marshal(errorBody{Error: err.Error(), Kind: failure.KindOf(err).String()})
	if marshalErr != nil {
		body = []byte(`{"error":"internal error"}`)
	}
	return Reply{Status: status, Body: body}
}
