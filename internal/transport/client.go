package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"slackrelay/internal/failure"
	"slackrelay/internal/logging"
)

var (
	bodyMethods = map[string]string{
		"get":    http.MethodGet,
		"post":   http.MethodPost,
		"put":    http.MethodPut,
		"patch":  http.MethodPatch,
		"delete": http.MethodDelete,
		"trace":  http.MethodTrace,
	}
	bodilessMethods = map[string]string{
		"connect": http.MethodConnect,
		"head":    http.MethodHead,
		"options": http.MethodOptions,
	}
)

// Observer receives one record per completed or failed exchange.
type Observer func(method string, status int, elapsed time.Duration, err error)

// Client wraps a Sender with method checks, request logging, and JSON helpers.
type Client struct {
	sender   Sender
	log      logging.Sink
	observe  Observer
	baseHead map[string]string
}

// NewClient creates a transport client.
// Params: sender capability and log sink (nil discards).
// Returns: client.
func NewClient(sender Sender, log logging.Sink) *Client {
	if log == nil {
		log = logging.Discard()
	}
	return &Client{sender: sender, log: log}
}

// WithObserver attaches an exchange observer.
// Params: observer callback.
// Returns: same client for chaining.
func (c *Client) WithObserver(observe Observer) *Client {
	c.observe = observe
	return c
}

// Plain sends a raw body with the given method.
// Params: context, lower- or upper-case method name, URL, headers, and body; connect/head/options drop the body.
// Returns: raw response or configuration/transport failure.
func (c *Client) Plain(ctx context.Context, method, target string, headers map[string]string, body []byte) (Response, error) {
	name := strings.ToLower(strings.TrimSpace(method))
	httpMethod, ok := bodyMethods[name]
	if !ok {
		httpMethod, ok = bodilessMethods[name]
		if !ok {
			return Response{}, failure.Errorf(failure.KindConfiguration, "unexpected method: method %s is not supported", name)
		}
		body = nil
	}

	c.log.Log(logging.LevelInfo, fmt.Sprintf("Sending %s request: %s", name, string(body)))
	started := time.Now()
	response, err := c.sender.Send(ctx, httpMethod, target, headers, body)
	if c.observe != nil {
		c.observe(name, response.Status, time.Since(started), err)
	}
	if err != nil {
		return Response{}, err
	}
	c.log.Log(logging.LevelInfo, "Response has been received: "+string(response.Body))
	return response, nil
}

// JSON sends payload encoded as JSON and decodes the JSON response into out.
// Params: context, method, URL, extra headers (override the JSON content type), payload (nil sends no body), and decode target.
// Returns: HTTP status or configuration/transport failure; malformed response JSON is a transport failure.
func (c *Client) JSON(ctx context.Context, method, target string, headers map[string]string, payload any, out any) (int, error) {
	merged := map[string]string{"Content-Type": "application/json"}
	for name, value := range headers {
		merged[name] = value
	}

	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, failure.Wrap(failure.KindConfiguration, err, "encode request payload")
		}
		body = encoded
	}

	response, err := c.Plain(ctx, method, target, merged, body)
	if err != nil {
		return 0, err
	}
	if out == nil {
		return response.Status, nil
	}
	if err := json.Unmarshal(response.Body, out); err != nil {
		return response.Status, failure.New(failure.KindTransport, "Failed to parse response: not well-formed JSON was received")
	}
	return response.Status, nil
}
