package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Host     HostConfig     `yaml:"host"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Export   ExportConfig   `yaml:"export"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
	Daemon   DaemonConfig   `yaml:"daemon,omitempty"`
	Events   EventsConfig   `yaml:"events,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// HostConfig identifies the remote repository host and the organization to read from.
type HostConfig struct {
	Type         HostType `yaml:"type"`                // "github" or "local"
	BaseURL      string   `yaml:"base_url,omitempty"`  // override for GitHub Enterprise
	Organization string   `yaml:"organization"`
	Token        string   `yaml:"token,omitempty"`
	LocalRoot    string   `yaml:"local_root,omitempty"` // checkout directory for type "local"
}

// HostType enumerates supported repository host backends.
type HostType string

const (
	HostTypeGitHub HostType = "github"
	HostTypeLocal  HostType = "local"
)

// PipelineConfig holds tuning knobs for the content pipeline.
type PipelineConfig struct {
	ConfigPath   string           `yaml:"config_path,omitempty"`   // document tree file inside each repository
	BatchSize    int              `yaml:"batch_size,omitempty"`    // paths per batched content fetch
	MaxRetries   int              `yaml:"max_retries,omitempty"`
	RetryBackoff RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	QuotaBuffer  int              `yaml:"quota_buffer,omitempty"`  // remaining-call floor before proactive sleep
	Timeout      string           `yaml:"timeout,omitempty"`       // per-run deadline, e.g. "10m"
}

// ExportConfig describes where and how processed documents are written.
type ExportConfig struct {
	Directory string   `yaml:"directory,omitempty"`
	Formats   []string `yaml:"formats,omitempty"` // files|json|html
	BaseURL   string   `yaml:"base_url,omitempty"`
}

// StoreConfig locates the document database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"` // SQLite file, ":memory:" for ephemeral
}

// ServerConfig holds the webhook/health endpoint settings.
type ServerConfig struct {
	Host          string `yaml:"host,omitempty"`
	Port          int    `yaml:"port,omitempty"`
	WebhookSecret string `yaml:"webhook_secret,omitempty"`
}

// DaemonConfig controls the long-running scan mode.
type DaemonConfig struct {
	ScanInterval string `yaml:"scan_interval,omitempty"` // e.g. "30m"
	WatchConfig  bool   `yaml:"watch_config,omitempty"`
	QueueSize    int    `yaml:"queue_size,omitempty"`
	Workers      int    `yaml:"workers,omitempty"`
}

// EventsConfig configures the optional NATS event publisher.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
	Stream  string `yaml:"stream,omitempty"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Defaults applied by Load when fields are absent.
const (
	DefaultConfigPath   = "docs.yaml"
	DefaultBatchSize    = 50
	DefaultMaxRetries   = 3
	DefaultQuotaBuffer  = 100
	DefaultExportDir    = "./export"
	DefaultServerHost   = "127.0.0.1"
	DefaultServerPort   = 8080
	DefaultScanInterval = "30m"
	DefaultQueueSize    = 100
	DefaultWorkers      = 2
	DefaultEventSubject = "docpipe.runs"
	DefaultEventStream  = "DOCPIPE"
)

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env before expanding environment references in the YAML.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env file not loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Host.Type == "" {
		c.Host.Type = HostTypeGitHub
	}
	if c.Pipeline.ConfigPath == "" {
		c.Pipeline.ConfigPath = DefaultConfigPath
	}
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = DefaultBatchSize
	}
	if c.Pipeline.MaxRetries <= 0 {
		c.Pipeline.MaxRetries = DefaultMaxRetries
	}
	if c.Pipeline.RetryBackoff == "" {
		c.Pipeline.RetryBackoff = RetryBackoffExponential
	}
	if c.Pipeline.QuotaBuffer <= 0 {
		c.Pipeline.QuotaBuffer = DefaultQuotaBuffer
	}
	if c.Export.Directory == "" {
		c.Export.Directory = DefaultExportDir
	}
	if len(c.Export.Formats) == 0 {
		c.Export.Formats = []string{"files"}
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Daemon.ScanInterval == "" {
		c.Daemon.ScanInterval = DefaultScanInterval
	}
	if c.Daemon.QueueSize <= 0 {
		c.Daemon.QueueSize = DefaultQueueSize
	}
	if c.Daemon.Workers <= 0 {
		c.Daemon.Workers = DefaultWorkers
	}
	if c.Events.Subject == "" {
		c.Events.Subject = DefaultEventSubject
	}
	if c.Events.Stream == "" {
		c.Events.Stream = DefaultEventStream
	}
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Host: HostConfig{
			Type:         HostTypeGitHub,
			Organization: "example-org",
			Token:        "${GITHUB_TOKEN}",
		},
		Pipeline: PipelineConfig{
			ConfigPath:   DefaultConfigPath,
			BatchSize:    DefaultBatchSize,
			MaxRetries:   DefaultMaxRetries,
			RetryBackoff: RetryBackoffExponential,
			QuotaBuffer:  DefaultQuotaBuffer,
		},
		Export: ExportConfig{
			Directory: DefaultExportDir,
			Formats:   []string{"files", "json", "html"},
			BaseURL:   "https://docs.example.com",
		},
		Store: StoreConfig{
			Path: "./docpipe.db",
		},
		Server: ServerConfig{
			Host:          DefaultServerHost,
			Port:          DefaultServerPort,
			WebhookSecret: "${WEBHOOK_SECRET}",
		},
		Daemon: DaemonConfig{
			ScanInterval: DefaultScanInterval,
			WatchConfig:  true,
			QueueSize:    DefaultQueueSize,
			Workers:      DefaultWorkers,
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
