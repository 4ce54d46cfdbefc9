package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

// Config is the top-level application configuration.
type Config struct {
	LogLevel string  `yaml:"log_level"`
	Mailbox  Mailbox `yaml:"mailbox"`
	Sweep    Sweep   `yaml:"sweep"`
	Export   Export  `yaml:"export"`
}

// Mailbox describes the remote account to harvest.
type Mailbox struct {
	Protocol    string `yaml:"protocol"` // "imap" or "pop3"
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	UseTLS      bool   `yaml:"use_tls"`
	InboxFolder string `yaml:"inbox_folder"`
}

// Sweep selects the folders a full sweep visits.
type Sweep struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// Export controls where sweep results are written.
type Export struct {
	Output      string `yaml:"output"`
	DataDir     string `yaml:"data_dir"`
	MetricsFile string `yaml:"metrics_file"`
}

// GetInboxFolder returns the default folder name, defaulting to "INBOX".
func (m *Mailbox) GetInboxFolder() string {
	if m.InboxFolder == "" {
		return "INBOX"
	}
	return m.InboxFolder
}

// Addr returns host:port.
func (m *Mailbox) Addr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// GetDataDir returns the directory for the seen-record file, defaulting to "data".
func (e *Export) GetDataDir() string {
	if e.DataDir == "" {
		return "data"
	}
	return e.DataDir
}

// GetOutput returns the record output path, defaulting to "-" (stdout).
func (e *Export) GetOutput() string {
	if e.Output == "" {
		return "-"
	}
	return e.Output
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	m := c.Mailbox
	if m.Protocol != "pop3" && m.Protocol != "imap" {
		return fmt.Errorf("mailbox.protocol must be pop3 or imap")
	}
	if m.Host == "" {
		return fmt.Errorf("mailbox.host is required")
	}
	if m.Port <= 0 || m.Port > 65535 {
		return fmt.Errorf("mailbox.port is required")
	}
	if m.Username == "" {
		return fmt.Errorf("mailbox.username is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}
