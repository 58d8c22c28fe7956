package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slackrelay/internal/config"
)

func TestNewWritesConsoleToSelectedStream(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	cfg := config.LogConfig{Console: config.LogSinkConfig{Enabled: true, Level: "info", Format: "json", Output: "stderr"}}
	logger, closeFn, err := newWithStreams(cfg, &stdout, &stderr)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closeFn()

	logger.Info("hello", "channel", "C1")
	if stdout.Len() != 0 {
		t.Fatalf("stdout must stay clean, got %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), `"msg":"hello"`) {
		t.Fatalf("expected record on stderr, got %q", stderr.String())
	}

	stdout.Reset()
	stderr.Reset()
	cfg.Console.Output = "stdout"
	logger, closeFn, err = newWithStreams(cfg, &stdout, &stderr)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closeFn()
	logger.Info("hello")
	if stderr.Len() != 0 || stdout.Len() == 0 {
		t.Fatalf("expected record on stdout only, stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

func TestNewTeesConsoleAndFile(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "relay.log")
	cfg := config.LogConfig{
		Console: config.LogSinkConfig{Enabled: true, Level: "warn", Format: "line", Output: "stderr"},
		File:    config.LogSinkConfig{Enabled: true, Level: "debug", Format: "json", Path: path},
	}
	logger, closeFn, err := newWithStreams(cfg, &console, &console)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.Info("below console level")
	logger.Warn("both sinks")
	closeFn()

	if strings.Contains(console.String(), "below console level") {
		t.Fatalf("console must filter info, got %q", console.String())
	}
	if !strings.Contains(console.String(), "both sinks") {
		t.Fatalf("console missing warn record: %q", console.String())
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(body), "below console level") || !strings.Contains(string(body), "both sinks") {
		t.Fatalf("file sink missing records: %q", string(body))
	}
}

func TestNewRejectsNoSinks(t *testing.T) {
	t.Parallel()

	if _, _, err := New(config.LogConfig{}); err == nil {
		t.Fatalf("expected error without sinks")
	}
}

func TestColorLineWriterHighlightsSlackTokens(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	writer := &colorLineWriter{dst: &out}
	line := "level=INFO msg=sent channel=C0123ABCDE ts=1712345678.123456 code=200\n"
	if _, err := writer.Write([]byte(line)); err != nil {
		t.Fatalf("write: %v", err)
	}

	rendered := out.String()
	if !strings.HasPrefix(rendered, ansiBlue) || !strings.HasSuffix(rendered, ansiReset) {
		t.Fatalf("expected info tone wrapping, got %q", rendered)
	}
	if !strings.Contains(rendered, ansiCyan+"C0123ABCDE"+ansiReset) {
		t.Fatalf("channel id not highlighted: %q", rendered)
	}
	if !strings.Contains(rendered, ansiMagenta+"1712345678.123456"+ansiReset) {
		t.Fatalf("message ts not highlighted: %q", rendered)
	}
	if !strings.Contains(rendered, ansiYellow+"200"+ansiReset) {
		t.Fatalf("number not highlighted: %q", rendered)
	}
}

func TestColorLineWriterPassesUnknownLines(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	writer := &colorLineWriter{dst: &out}
	if _, err := writer.Write([]byte("plain 42\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if out.String() != "plain 42\n" {
		t.Fatalf("unexpected rewrite: %q", out.String())
	}
}

func TestSinkMapsLevelsAndService(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	base := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	sink := NewSink(base, "Slack Webhook").With("invocation", "abc")

	sink.Log(LevelWarn, "Notification failed")
	sink.Log(LevelInfo, "HTTP code: 500")
	sink.Log(Level(9), "debug only")

	text := out.String()
	for _, want := range []string{
		`level=WARN msg="Notification failed" service="Slack Webhook" invocation=abc`,
		`level=INFO msg="HTTP code: 500"`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in %q", want, text)
		}
	}
	if strings.Contains(text, "debug only") {
		t.Fatalf("unknown level must map below info: %q", text)
	}

	Discard().Log(LevelError, "dropped")
}
