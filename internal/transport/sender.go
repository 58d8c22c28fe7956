package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slackrelay/internal/failure"
)

const defaultTimeout = 10 * time.Second

// Response is one raw HTTP exchange result.
type Response struct {
	Status int
	Body   []byte
}

// Sender performs one synchronous HTTP exchange.
// Params: context, upper-case method, absolute URL, headers, and optional body.
// Returns: status with raw body, or transport failure.
type Sender interface {
	Send(ctx context.Context, method, target string, headers map[string]string, body []byte) (Response, error)
}

// HTTPSender implements Sender over net/http.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender creates an HTTP sender with timeout and optional proxy.
// Params: request timeout (<=0 uses 10s) and proxy address; a proxy without scheme is treated as http.
// Returns: sender or configuration failure for an unparsable proxy.
func NewHTTPSender(timeout time.Duration, proxy string) (*HTTPSender, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := http.DefaultTransport.(*http.Transport).Clone()

	proxy = strings.TrimSpace(proxy)
	if proxy != "" {
		proxyURL, err := ParseProxy(proxy)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(proxyURL)
	}

	return &HTTPSender{client: &http.Client{Timeout: timeout, Transport: base}}, nil
}

// ParseProxy normalizes a proxy address into URL form.
// Params: proxy as "host:port" or full URL.
// Returns: parsed URL or configuration failure.
func ParseProxy(proxy string) (*url.URL, error) {
	if !strings.Contains(proxy, "://") {
		proxy = "http://" + proxy
	}
	parsed, err := url.Parse(proxy)
	if err != nil || parsed.Host == "" {
		return nil, failure.Errorf(failure.KindConfiguration, "incorrect \"http_proxy\" parameter given: %s", proxy)
	}
	return parsed, nil
}

// Send executes one request and reads the whole response body.
// Params: context, method, URL, headers, and optional body.
// Returns: status with body or transport failure.
func (s *HTTPSender) Send(ctx context.Context, method, target string, headers map[string]string, body []byte) (Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return Response{}, failure.Wrap(failure.KindTransport, err, "build request")
	}
	for name, value := range headers {
		request.Header.Set(name, value)
	}

	response, err := s.client.Do(request)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return Response{}, failure.Wrap(failure.KindTransport, err, fmt.Sprintf("%s %s", method, redact(target)))
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return Response{}, failure.Wrap(failure.KindTransport, err, "read response body")
	}
	return Response{Status: response.StatusCode, Body: raw}, nil
}

// redact drops the query string from URLs before they reach error text.
func redact(target string) string {
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		return target[:idx]
	}
	return target
}
