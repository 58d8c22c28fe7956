package e2e

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"slackrelay/internal/app"
	"slackrelay/internal/clock"
	"slackrelay/internal/config"
)

// newServiceFromConfig creates Service from config content for e2e scenarios.
// Params: test handle and TOML content.
// Returns: initialized service instance.
func newServiceFromConfig(t *testing.T, content string) *app.Service {
	t.Helper()

	path := filepath.Join(t.TempDir(), "slackrelay.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	source, err := config.FromCLI(path, "")
	if err != nil {
		t.Fatalf("config source: %v", err)
	}
	service, err := app.NewService(source, clock.RealClock{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

// runService starts service in background with cancellable context.
// Params: test handle and initialized service.
// Returns: cancel callback and done channel with Run result.
func runService(t *testing.T, service *app.Service) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- service.Run(ctx)
	}()
	return cancel, done
}

// waitReady waits for /readyz endpoint to return 200.
// Params: test handle and HTTP port.
// Returns: service is ready or test fails on timeout.
func waitReady(t *testing.T, port int) {
	t.Helper()
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitFor(t, 8*time.Second, func() bool {
		response, err := http.Get(baseURL + "/readyz")
		if err != nil {
			return false
		}
		defer response.Body.Close()
		return response.StatusCode == http.StatusOK
	})
}

// waitServiceStop asserts service Run exits without error after cancellation.
// Params: test handle and done channel returned by runService.
// Returns: test fails if stop timeout/error happens.
func waitServiceStop(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case runErr := <-done:
		if runErr != nil {
			t.Fatalf("service run error: %v", runErr)
		}
	case <-time.After(8 * time.Second):
		t.Fatalf("service did not stop after cancel")
	}
}

// waitFor polls condition until it holds or timeout expires.
// Params: test handle, timeout, and condition.
// Returns: condition holds or test fails.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("condition not satisfied within %s", timeout)
}

// slackRecorder is a Slack Web API double that records called methods.
type slackRecorder struct {
	mu     sync.Mutex
	server *httptest.Server
	calls  []string
	bodies map[string][]string
}

// newSlackRecorder starts Slack API double on a local port.
// Params: test handle.
// Returns: recorder with API base at URL()+"/api/".
func newSlackRecorder(t *testing.T) *slackRecorder {
	t.Helper()
	recorder := &slackRecorder{bodies: map[string][]string{}}
	recorder.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.TrimPrefix(r.URL.Path, "/api/")
		body, _ := io.ReadAll(r.Body)
		recorder.mu.Lock()
		recorder.calls = append(recorder.calls, method)
		recorder.bodies[method] = append(recorder.bodies[method], string(body))
		recorder.mu.Unlock()

		switch method {
		case "chat.postMessage":
			_, _ = w.Write([]byte(`{"ok":true,"ts":"1712000000.000300","channel":"C0E2E0001"}`))
		case "chat.getPermalink":
			_, _ = w.Write([]byte(`{"ok":true,"permalink":"https://team.slack.com/archives/C0E2E0001/p1712000000000300"}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true}`))
		}
	}))
	t.Cleanup(recorder.server.Close)
	return recorder
}

func (r *slackRecorder) apiBase() string {
	return r.server.URL + "/api/"
}

func (r *slackRecorder) methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *slackRecorder) lastBody(method string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	bodies := r.bodies[method]
	if len(bodies) == 0 {
		return ""
	}
	return bodies[len(bodies)-1]
}
