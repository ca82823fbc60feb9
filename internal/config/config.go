// Package config loads qvarnd's runtime configuration: the Postgres
// connection string, HTTP listen address, schema directory, and a few
// operational toggles, from a JSON file overridable per-field by
// environment variables (mirrors the teacher's config-file-plus-env
// layering).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Config is qvarnd's full runtime configuration.
type Config struct {
	ListenAddr  string `json:"listen_addr"`
	DatabaseURL string `json:"database_url"`
	SchemaDir   string `json:"schema_dir"`
	StateDir    string `json:"state_dir"`
	InitDB      bool   `json:"init_db"`
	LogLevel    string `json:"log_level"`
	MetricsAddr string `json:"metrics_addr"`

	// NodeID identifies this qvarnd process across restarts, for log
	// correlation; generated once on first run and persisted.
	NodeID string `json:"node_id"`
}

func homeDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	return "."
}

func baseDir() string { return filepath.Join(homeDir(), ".qvarnd") }

// ConfigPath is the default on-disk location for the JSON config file,
// overridable with the QVARND_CONFIG environment variable.
func ConfigPath() string {
	if p := os.Getenv("QVARND_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(baseDir(), "config.json")
}

// Default returns the baseline configuration applied before the file and
// environment layers are merged in.
func Default() Config {
	return Config{
		ListenAddr:  ":9090",
		SchemaDir:   filepath.Join(baseDir(), "schemas"),
		StateDir:    filepath.Join(baseDir(), "state"),
		LogLevel:    "info",
		MetricsAddr: ":9091",
	}
}

// Load reads the config file (if present, ignoring a missing file), applies
// environment overrides (env always wins), and assigns a NodeID on first
// run, persisting it back so it survives restarts.
func Load() (Config, error) {
	c := Default()
	if b, err := os.ReadFile(ConfigPath()); err == nil {
		if err := json.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", ConfigPath(), err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: read %s: %w", ConfigPath(), err)
	}
	applyEnv(&c)

	if c.NodeID == "" {
		c.NodeID = uuid.NewString()
		if err := Save(c); err != nil {
			return Config{}, fmt.Errorf("config: persist generated node_id: %w", err)
		}
	}
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("QVARND_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("QVARND_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("QVARND_SCHEMA_DIR"); v != "" {
		c.SchemaDir = v
	}
	if v := os.Getenv("QVARND_STATE_DIR"); v != "" {
		c.StateDir = v
	}
	if v := os.Getenv("QVARND_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("QVARND_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("QVARND_INITDB"); v != "" {
		c.InitDB = v == "1" || strings.EqualFold(v, "true")
	}
}

// Save writes c to ConfigPath, creating its parent directory if needed.
func Save(c Config) error {
	if err := os.MkdirAll(filepath.Dir(ConfigPath()), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(), b, 0o600)
}

// Validate checks the fields required to start serving traffic.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: database_url is required")
	}
	if c.ListenAddr == "" {
		return errors.New("config: listen_addr is required")
	}
	if c.SchemaDir == "" {
		return errors.New("config: schema_dir is required")
	}
	if _, _, err := splitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("config: listen_addr: %w", err)
	}
	return nil
}

func splitHostPort(addr string) (host, port string, err error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", "", fmt.Errorf("%q missing port", addr)
	}
	host, port = addr[:i], addr[i+1:]
	if port == "" {
		return "", "", fmt.Errorf("%q missing port number", addr)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", "", fmt.Errorf("%q has non-numeric port", addr)
	}
	return host, port, nil
}
