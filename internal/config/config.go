package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName   = "slackrelay"
	defaultSlackAPIBase  = "https://slack.com/api/"
	defaultSlackTimeout  = 10
	defaultResolveColor  = "#009900"
	defaultReaction      = "white_check_mark"
	defaultButtonText    = "Open in Zabbix"
	defaultUpdateTitle   = "Event update message"
	defaultHTTPListen    = ":8080"
	defaultWebhookPath   = "/webhook"
	defaultHealthPath    = "/healthz"
	defaultReadyPath     = "/readyz"
	defaultMetricsPath   = "/metrics"
	defaultMaxBodyBytes  = 1 << 20
	defaultNATSURL       = "nats://127.0.0.1:4222"
	defaultNATSSubject   = "slackrelay.webhook"
	defaultNATSQueue     = "slackrelay"
	defaultTagsBucket    = "slackrelay_tags"
	defaultRedisAddr     = "127.0.0.1:6379"
	defaultRedisPrefix   = "slackrelay:tags:"
	severityColorsLength = 6

	// TagsBackendMemory keeps correlation tags in process memory.
	TagsBackendMemory = "memory"
	// TagsBackendNATS keeps correlation tags in a JetStream KV bucket.
	TagsBackendNATS = "nats"
	// TagsBackendRedis keeps correlation tags in Redis keys.
	TagsBackendRedis = "redis"
)

var (
	defaultSeverityColors = []string{"#97AAB3", "#7499FF", "#FFC859", "#FFA059", "#E97659", "#E45959"}
	colorPattern          = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
	subjectPattern        = regexp.MustCompile(`^[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+)*$`)
)

// Config holds adapter runtime settings.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	Log     LogConfig     `toml:"log"`
	Slack   SlackConfig   `toml:"slack"`
	Ingest  IngestConfig  `toml:"ingest"`
	Tags    TagsConfig    `toml:"tags"`
}

// ServiceConfig contains process-level settings.
// Params: service name used in logs and metrics namespace.
// Returns: service identity.
type ServiceConfig struct {
	Name string `toml:"name"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, file path, and console stream.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
	Output  string `toml:"output"`
}

// SlackConfig defines Slack Web API access and message look.
// Params: API base URL, timeout, default proxy, colors, reaction, and labels.
// Returns: Slack correlator settings.
type SlackConfig struct {
	APIBase        string   `toml:"api_base"`
	TimeoutSec     int      `toml:"timeout_sec"`
	HTTPProxy      string   `toml:"http_proxy"`
	SeverityColors []string `toml:"severity_colors"`
	ResolveColor   string   `toml:"resolve_color"`
	Reaction       string   `toml:"reaction"`
	ButtonText     string   `toml:"button_text"`
	UpdateTitle    string   `toml:"update_title"`
}

// IngestConfig defines inbound interfaces of the serve command.
// Params: HTTP and NATS request/reply settings.
// Returns: ingest runtime options.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig configures the webhook HTTP endpoint.
// Params: enable flag, listen address, route paths, and body size limit.
// Returns: HTTP ingest behavior.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	WebhookPath  string `toml:"webhook_path"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	MetricsPath  string `toml:"metrics_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig configures the NATS request/reply webhook subscriber.
// Params: enable flag, server URLs, subject, and queue group.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled    bool     `toml:"enabled"`
	URL        []string `toml:"url"`
	Subject    string   `toml:"subject"`
	QueueGroup string   `toml:"queue_group"`
}

// TagsConfig selects where the serve command keeps correlation tags between invocations.
// Params: backend name, entry TTL, and backend-specific settings.
// Returns: tag store options.
type TagsConfig struct {
	Backend string          `toml:"backend"`
	TTLSec  int             `toml:"ttl_sec"`
	NATS    NATSTagsConfig  `toml:"nats"`
	Redis   RedisTagsConfig `toml:"redis"`
}

// NATSTagsConfig defines JetStream KV tag storage.
// Params: server URLs and bucket name.
// Returns: NATS tag store options.
type NATSTagsConfig struct {
	URL    []string `toml:"url"`
	Bucket string   `toml:"bucket"`
}

// RedisTagsConfig defines Redis tag storage.
// Params: address, credentials, database index, and key prefix.
// Returns: Redis tag store options.
type RedisTagsConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// ConfigSource describes file or directory config source.
// Params: at most one of file path or directory path; both empty means built-in defaults.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}
	return ConfigSource{File: filePath, Dir: dirPath}, nil
}

// Default returns built-in configuration with all defaults applied.
// Params: none.
// Returns: ready-to-use config.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file, directory, or defaults mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	switch {
	case src.File != "":
		err = loadFile(src.File, &cfg)
	case src.Dir != "":
		err = loadDir(src.Dir, &cfg)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile decodes one TOML file over dst.
// Params: file path and destination config; keys absent from the file keep their dst values.
// Returns: read/decode error.
func loadFile(path string, dst *Config) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	decoder := toml.NewDecoder(bytes.NewReader(body)).DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}
	return nil
}

// loadDir decodes TOML fragments from one directory in lexical order.
// Params: directory containing config fragments and destination config.
// Returns: load/decode error.
func loadDir(dir string, dst *Config) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.ToLower(filepath.Ext(name)) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	for _, file := range files {
		if err := loadFile(file, dst); err != nil {
			return err
		}
	}
	return nil
}

// applyDefaults fills empty settings in place.
// Params: config pointer.
// Returns: defaults applied in place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}

	fillLogSinkDefaults(&cfg.Log.Console, "line")
	fillLogSinkDefaults(&cfg.Log.File, "json")
	if cfg.Log.Console.Output == "" {
		cfg.Log.Console.Output = "stderr"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	if strings.TrimSpace(cfg.Slack.APIBase) == "" {
		cfg.Slack.APIBase = defaultSlackAPIBase
	}
	if !strings.HasSuffix(cfg.Slack.APIBase, "/") {
		cfg.Slack.APIBase += "/"
	}
	if cfg.Slack.TimeoutSec <= 0 {
		cfg.Slack.TimeoutSec = defaultSlackTimeout
	}
	if len(cfg.Slack.SeverityColors) == 0 {
		cfg.Slack.SeverityColors = append([]string(nil), defaultSeverityColors...)
	}
	if cfg.Slack.ResolveColor == "" {
		cfg.Slack.ResolveColor = defaultResolveColor
	}
	if cfg.Slack.Reaction == "" {
		cfg.Slack.Reaction = defaultReaction
	}
	if cfg.Slack.ButtonText == "" {
		cfg.Slack.ButtonText = defaultButtonText
	}
	if cfg.Slack.UpdateTitle == "" {
		cfg.Slack.UpdateTitle = defaultUpdateTitle
	}

	if strings.TrimSpace(cfg.Ingest.HTTP.Listen) == "" {
		cfg.Ingest.HTTP.Listen = defaultHTTPListen
	}
	if cfg.Ingest.HTTP.WebhookPath == "" {
		cfg.Ingest.HTTP.WebhookPath = defaultWebhookPath
	}
	if cfg.Ingest.HTTP.HealthPath == "" {
		cfg.Ingest.HTTP.HealthPath = defaultHealthPath
	}
	if cfg.Ingest.HTTP.ReadyPath == "" {
		cfg.Ingest.HTTP.ReadyPath = defaultReadyPath
	}
	if cfg.Ingest.HTTP.MetricsPath == "" {
		cfg.Ingest.HTTP.MetricsPath = defaultMetricsPath
	}
	if cfg.Ingest.HTTP.MaxBodyBytes <= 0 {
		cfg.Ingest.HTTP.MaxBodyBytes = defaultMaxBodyBytes
	}
	cfg.Ingest.NATS.URL = normalizeNATSURLs(cfg.Ingest.NATS.URL)
	if len(cfg.Ingest.NATS.URL) == 0 {
		cfg.Ingest.NATS.URL = []string{defaultNATSURL}
	}
	if cfg.Ingest.NATS.Subject == "" {
		cfg.Ingest.NATS.Subject = defaultNATSSubject
	}
	if cfg.Ingest.NATS.QueueGroup == "" {
		cfg.Ingest.NATS.QueueGroup = defaultNATSQueue
	}
	if !cfg.Ingest.HTTP.Enabled && !cfg.Ingest.NATS.Enabled {
		cfg.Ingest.HTTP.Enabled = true
	}

	cfg.Tags.Backend = strings.ToLower(strings.TrimSpace(cfg.Tags.Backend))
	if cfg.Tags.Backend == "" {
		cfg.Tags.Backend = TagsBackendMemory
	}
	cfg.Tags.NATS.URL = normalizeNATSURLs(cfg.Tags.NATS.URL)
	if len(cfg.Tags.NATS.URL) == 0 {
		// Tag bucket lives on the ingest cluster unless configured separately.
		cfg.Tags.NATS.URL = append([]string(nil), cfg.Ingest.NATS.URL...)
	}
	if cfg.Tags.NATS.Bucket == "" {
		cfg.Tags.NATS.Bucket = defaultTagsBucket
	}
	if cfg.Tags.Redis.Addr == "" {
		cfg.Tags.Redis.Addr = defaultRedisAddr
	}
	if cfg.Tags.Redis.Prefix == "" {
		cfg.Tags.Redis.Prefix = defaultRedisPrefix
	}
}

// fillLogSinkDefaults normalizes one sink.
// Params: sink pointer and default format.
// Returns: defaults applied in place.
func fillLogSinkDefaults(sink *LogSinkConfig, format string) {
	if sink.Level == "" {
		sink.Level = "info"
	}
	if sink.Format == "" {
		sink.Format = format
	}
}

// validateConfig validates full runtime configuration.
// Params: cfg snapshot to validate.
// Returns: first failing rule as error.
func validateConfig(cfg Config) error {
	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}
	if cfg.Log.Console.Enabled {
		switch cfg.Log.Console.Output {
		case "stdout", "stderr":
		default:
			return fmt.Errorf("log.console.output has unsupported value %q", cfg.Log.Console.Output)
		}
	}

	if !strings.HasPrefix(cfg.Slack.APIBase, "http://") && !strings.HasPrefix(cfg.Slack.APIBase, "https://") {
		return fmt.Errorf("slack.api_base must start with http:// or https://, got %q", cfg.Slack.APIBase)
	}
	if len(cfg.Slack.SeverityColors) != severityColorsLength {
		return fmt.Errorf("slack.severity_colors must contain %d colors, got %d", severityColorsLength, len(cfg.Slack.SeverityColors))
	}
	for i, color := range cfg.Slack.SeverityColors {
		if !colorPattern.MatchString(color) {
			return fmt.Errorf("slack.severity_colors[%d] has invalid color %q", i, color)
		}
	}
	if !colorPattern.MatchString(cfg.Slack.ResolveColor) {
		return fmt.Errorf("slack.resolve_color has invalid color %q", cfg.Slack.ResolveColor)
	}
	if proxy := strings.TrimSpace(cfg.Slack.HTTPProxy); proxy != "" && strings.ContainsAny(proxy, " \t") {
		return fmt.Errorf("slack.http_proxy has invalid value %q", cfg.Slack.HTTPProxy)
	}

	for name, path := range map[string]string{
		"ingest.http.webhook_path": cfg.Ingest.HTTP.WebhookPath,
		"ingest.http.health_path":  cfg.Ingest.HTTP.HealthPath,
		"ingest.http.ready_path":   cfg.Ingest.HTTP.ReadyPath,
		"ingest.http.metrics_path": cfg.Ingest.HTTP.MetricsPath,
	} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s must start with /, got %q", name, path)
		}
	}
	if cfg.Ingest.NATS.Enabled && !subjectPattern.MatchString(cfg.Ingest.NATS.Subject) {
		return fmt.Errorf("ingest.nats.subject has invalid value %q", cfg.Ingest.NATS.Subject)
	}

	switch cfg.Tags.Backend {
	case TagsBackendMemory, TagsBackendNATS, TagsBackendRedis:
	default:
		return fmt.Errorf("tags.backend has unsupported value %q", cfg.Tags.Backend)
	}
	if cfg.Tags.TTLSec < 0 {
		return errors.New("tags.ttl_sec must be >=0")
	}
	if cfg.Tags.Redis.DB < 0 {
		return errors.New("tags.redis.db must be >=0")
	}
	return nil
}

// validateLogSink validates one log sink configuration.
// Params: sink name, sink values, and whether path is required.
// Returns: sink validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level has unsupported value %q", name, sink.Level)
	}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format has unsupported value %q", name, sink.Format)
	}

	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}
	return nil
}

// normalizeNATSURLs trims entries and drops empty ones.
// Params: configured URL list.
// Returns: cleaned URL list.
func normalizeNATSURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
