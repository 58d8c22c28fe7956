package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"slackrelay/internal/config"
	"slackrelay/internal/event"
	"slackrelay/internal/failure"
	"slackrelay/internal/logging"
	"slackrelay/internal/slack"
	"slackrelay/internal/transport"
	"slackrelay/internal/validate"
)

// ServiceName tags every record written on behalf of an invocation.
const ServiceName = "Slack Webhook"

var unclassified = event.Alert{Source: event.SourceAny, Action: event.ActionAny}

// Recorder receives one record per finished invocation.
type Recorder interface {
	ObserveInvocation(source, action string, err error, elapsed time.Duration)
}

// Error is the flattened failure of one invocation.
type Error struct {
	Err error
}

// Error renders the single failure line reported to the monitoring engine.
func (e *Error) Error() string {
	return "Sending failed: " + e.Err.Error()
}

// Unwrap returns the categorized cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Webhook runs one notification per call: validate, classify, dispatch, serialize.
type Webhook struct {
	logger       *slog.Logger
	settings     slack.Settings
	timeout      time.Duration
	defaultProxy string
	fixedSender  transport.Sender
	baseSender   transport.Sender
	recorder     Recorder
	observer     transport.Observer
}

// Option customizes a Webhook.
type Option func(*Webhook)

// WithSender replaces the HTTP sender; the http_proxy parameter is then ignored.
func WithSender(sender transport.Sender) Option {
	return func(w *Webhook) { w.fixedSender = sender }
}

// WithRecorder attaches an invocation recorder.
func WithRecorder(recorder Recorder) Option {
	return func(w *Webhook) { w.recorder = recorder }
}

// WithRemoteObserver attaches a per-request observer to the transport client.
func WithRemoteObserver(observer transport.Observer) Option {
	return func(w *Webhook) { w.observer = observer }
}

// New creates a webhook runner.
// Params: slack config section, base logger (nil discards), and options.
// Returns: runner or configuration error for an unusable default proxy.
func New(cfg config.SlackConfig, logger *slog.Logger, opts ...Option) (*Webhook, error) {
	w := &Webhook{
		logger:       logger,
		settings:     slack.SettingsFromConfig(cfg),
		timeout:      time.Duration(cfg.TimeoutSec) * time.Second,
		defaultProxy: strings.TrimSpace(cfg.HTTPProxy),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.fixedSender == nil {
		sender, err := transport.NewHTTPSender(w.timeout, w.defaultProxy)
		if err != nil {
			return nil, fmt.Errorf("build slack sender: %w", err)
		}
		w.baseSender = sender
	}
	return w, nil
}

// Process handles one raw JSON parameter object.
// Params: context and raw JSON body.
// Returns: serialized {"tags":{...}} object or flattened *Error.
func (w *Webhook) Process(ctx context.Context, raw []byte) (string, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		cause := failure.Wrap(failure.KindConfiguration, err, "incorrect parameters value")
		return "", w.fail(w.sink(), time.Now(), unclassified, processingFailed(cause))
	}
	params, ok := decoded.(map[string]any)
	if !ok {
		cause := failure.New(failure.KindConfiguration, "incorrect parameters value: the value must be an object")
		return "", w.fail(w.sink(), time.Now(), unclassified, processingFailed(cause))
	}

	result, err := w.Invoke(ctx, params)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return "", &Error{Err: fmt.Errorf("encode result: %w", err)}
	}
	return string(encoded), nil
}

// Invoke handles one decoded parameter object.
// Params: context and params (mutated in place).
// Returns: correlation result or flattened *Error.
func (w *Webhook) Invoke(ctx context.Context, params map[string]any) (*slack.Result, error) {
	started := time.Now()
	sink := w.sink()
	alert := unclassified

	result, err := w.invoke(ctx, sink, validate.Params(params), &alert)
	if err != nil {
		return nil, w.fail(sink, started, alert, err)
	}
	if result.Tags == nil {
		result.Tags = slack.Tags{}
	}
	w.record(alert, nil, started)
	return result, nil
}

// invoke runs the validation, classification, and dispatch stages.
func (w *Webhook) invoke(ctx context.Context, sink *logging.SlogSink, params validate.Params, alert *event.Alert) (*slack.Result, error) {
	source, err := event.Prepare(params)
	if err != nil {
		return nil, processingFailed(err)
	}
	notification, err := slack.CheckParams(params, source, w.settings)
	if err != nil {
		return nil, processingFailed(err)
	}
	classified, err := event.Classify(params)
	if err != nil {
		return nil, processingFailed(err)
	}
	*alert = classified

	sender, err := w.senderFor(params.Text("http_proxy"))
	if err != nil {
		return nil, processingFailed(err)
	}
	client := transport.NewClient(sender, sink)
	if w.observer != nil {
		client.WithObserver(w.observer)
	}
	correlator := slack.NewCorrelator(client, sink, w.settings)
	return correlator.Handlers(notification).Dispatch(ctx, classified)
}

// senderFor picks the sender for a per-invocation proxy.
// Params: http_proxy parameter.
// Returns: shared sender, or a dedicated one when the parameter sets a proxy.
func (w *Webhook) senderFor(proxy string) (transport.Sender, error) {
	if w.fixedSender != nil {
		return w.fixedSender, nil
	}
	proxy = strings.TrimSpace(proxy)
	if proxy == "" || proxy == w.defaultProxy {
		return w.baseSender, nil
	}
	return transport.NewHTTPSender(w.timeout, proxy)
}

// sink returns a log sink bound to a fresh invocation id.
func (w *Webhook) sink() *logging.SlogSink {
	return logging.NewSink(w.logger, ServiceName).With("invocation", uuid.NewString())
}

// fail logs, records, and flattens an invocation failure.
func (w *Webhook) fail(sink logging.Sink, started time.Time, alert event.Alert, err error) error {
	sink.Log(logging.LevelWarn, "Notification failed: "+err.Error())
	w.record(alert, err, started)
	return &Error{Err: err}
}

func (w *Webhook) record(alert event.Alert, err error, started time.Time) {
	if w.recorder == nil {
		return
	}
	source, action := "", ""
	if alert != unclassified {
		source, action = alert.Source.String(), alert.Action.String()
	}
	w.recorder.ObserveInvocation(source, action, err, time.Since(started))
}

// processingFailed prefixes failures raised before dispatch.
func processingFailed(err error) error {
	return &failure.Error{Kind: failure.KindOf(err), Message: "Webhook processing failed", Err: err}
}
