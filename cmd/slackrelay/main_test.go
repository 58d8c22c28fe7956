package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExecuteUsage(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	if code := execute(nil, strings.NewReader(""), &bytes.Buffer{}, &stderr); code != 2 {
		t.Fatalf("expected usage exit code, got %d", code)
	}
	if !strings.Contains(stderr.String(), "usage:") {
		t.Fatalf("usage text missing: %q", stderr.String())
	}

	stderr.Reset()
	if code := execute([]string{"deploy"}, strings.NewReader(""), &bytes.Buffer{}, &stderr); code != 2 {
		t.Fatalf("expected unknown command exit code, got %d", code)
	}
}

func TestExecuteRunFromFile(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat.postMessage":
			_, _ = w.Write([]byte(`{"ok":true,"ts":"1700000001.000100","channel":"C0DISC001"}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"permalink":"https://team.slack.com/p1"}`))
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "slackrelay.toml")
	configBody := "[slack]\napi_base = \"" + server.URL + "/api/\"\n\n[log.console]\nlevel = \"error\"\n"
	if err := os.WriteFile(configPath, []byte(configBody), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	paramsPath := filepath.Join(dir, "params.json")
	params := `{"event_source":"1","alert_subject":"Discovered host","alert_message":"10.0.0.7 is up",` +
		`"zabbix_url":"https://zabbix.example.com","bot_token":"xoxb-cli","channel":"#discovery","slack_mode":"event"}`
	if err := os.WriteFile(paramsPath, []byte(params), 0o600); err != nil {
		t.Fatalf("write params: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := execute([]string{"run", "--config-file", configPath, "--params-file", paramsPath}, strings.NewReader(""), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("run failed: code=%d stderr=%s", code, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != `{"tags":{}}` {
		t.Fatalf("unexpected output: %q", stdout.String())
	}
}

func TestExecuteRunFailureFromStdin(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := execute([]string{"run"}, strings.NewReader(`not json`), &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected failure exit code, got %d", code)
	}
	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	if last := lines[len(lines)-1]; !strings.HasPrefix(last, "Sending failed: Webhook processing failed: ") {
		t.Fatalf("unexpected error line: %q", last)
	}
	if stdout.Len() != 0 {
		t.Fatalf("stdout must stay empty: %q", stdout.String())
	}
}

func TestExecuteRejectsBothConfigFlags(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	code := execute([]string{"serve", "--config-file", "a.toml", "--config-dir", "conf.d"}, strings.NewReader(""), &bytes.Buffer{}, &stderr)
	if code != 2 {
		t.Fatalf("expected usage exit code, got %d", code)
	}
}
