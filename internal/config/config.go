package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for libshare.
type Config struct {
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	Database    DatabaseConfig    `toml:"database"`
	RepoService RepoServiceConfig `toml:"repo_service"`
	Cache       CacheConfig       `toml:"cache"`
	Events      EventsConfig      `toml:"events"`
	Mail        MailConfig        `toml:"mail"`
	Links       LinkConfig        `toml:"links"`
}

// DatabaseConfig represents configuration for the share database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// RepoServiceConfig represents configuration for the repo/content service.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RepoServiceConfig struct {
	Type string `toml:"type"` // "memory" or "remote"

	// Remote-specific fields (only used when Type == "remote")
	URL            string `toml:"url,omitempty"`
	Secret         string `toml:"secret,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds,omitempty"`
}

// CacheConfig represents configuration for the audit code cache.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CacheConfig struct {
	Type string `toml:"type"` // "memory" or "redis"

	// Redis-specific fields (only used when Type == "redis")
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`
}

// EventsConfig represents configuration for the event sink.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type EventsConfig struct {
	Type string `toml:"type"` // "none", "log" or "amqp"

	// AMQP-specific fields (only used when Type == "amqp")
	AMQPURL   string `toml:"amqp_url,omitempty"`
	AMQPQueue string `toml:"amqp_queue,omitempty"`
}

// MailConfig represents configuration for outgoing mail.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MailConfig struct {
	Type string `toml:"type"` // "none" or "smtp"

	// SMTP-specific fields (only used when Type == "smtp")
	Host     string `toml:"host,omitempty"`
	Port     int    `toml:"port,omitempty"`
	Username string `toml:"username,omitempty"`
	Password string `toml:"password,omitempty"`
	From     string `toml:"from,omitempty"`
}

// LinkConfig holds shared-link settings.
type LinkConfig struct {
	PasswordMinLength int    `toml:"password_min_length"`
	BaseURL           string `toml:"base_url"`
}

// NewConfig creates a new Config with the provided base directory and defaults.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		Database:    DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "data")},
		RepoService: RepoServiceConfig{Type: "memory"},
		Cache:       CacheConfig{Type: "memory"},
		Events:      EventsConfig{Type: "log"},
		Mail:        MailConfig{Type: "none"},
		Links: LinkConfig{
			PasswordMinLength: 8,
			BaseURL:           "http://localhost:8000",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
