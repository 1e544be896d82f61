package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"taotie/internal/app"
)

// Defaults of the user config.
const (
	defaultHistorySize = 1024
	defaultHeadSize    = 5
)

// UserConfig represents ~/.taotie/config.yaml.
type UserConfig struct {
	HistoryFile string         `yaml:"history-file,omitempty"`
	HistorySize int            `yaml:"history-size,omitempty"`
	HeadSize    int            `yaml:"head-size,omitempty"`
	Output      string         `yaml:"output,omitempty"`
	Datasets    []DatasetEntry `yaml:"datasets,omitempty"`
}

// DatasetEntry is a dataset connected when the shell starts.
type DatasetEntry struct {
	Name  string `yaml:"name"`
	Conn  string `yaml:"conn"`
	Table string `yaml:"table,omitempty"`
}

// ConfigDir returns the path to ~/.taotie/.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".taotie")
}

// ConfigPath returns the path to ~/.taotie/config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taotie_history"
	}
	return filepath.Join(home, ".taotie_history")
}

// LoadUserConfig reads the user config at path. A missing file yields the
// defaults.
func LoadUserConfig(path string) (*UserConfig, error) {
	cfg := &UserConfig{}
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// SaveUserConfig writes cfg to path, creating its directory.
func SaveUserConfig(path string, cfg *UserConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate rejects negative sizes, unknown output formats, and datasets
// without a name or connection.
func (c *UserConfig) Validate() error {
	if c.HistorySize < 0 {
		return fmt.Errorf("history-size must not be negative, got %d", c.HistorySize)
	}
	if c.HeadSize < 0 {
		return fmt.Errorf("head-size must not be negative, got %d", c.HeadSize)
	}
	if c.Output != "" {
		if err := validateOutputFormat(c.Output); err != nil {
			return err
		}
	}
	seen := make(map[string]bool, len(c.Datasets))
	for i, d := range c.Datasets {
		if d.Name == "" || d.Conn == "" {
			return fmt.Errorf("datasets[%d]: name and conn are required", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("datasets[%d]: duplicate name %q", i, d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

func (c *UserConfig) applyDefaults() {
	if c.HistoryFile == "" {
		c.HistoryFile = defaultHistoryFile()
	}
	if c.HistorySize == 0 {
		c.HistorySize = defaultHistorySize
	}
	if c.HeadSize == 0 {
		c.HeadSize = defaultHeadSize
	}
	if c.Output == "" {
		c.Output = string(formatTable)
	}
}

// datasetSpecs converts the configured datasets for app.ConnectDatasets.
func (c *UserConfig) datasetSpecs() []app.DatasetSpec {
	specs := make([]app.DatasetSpec, len(c.Datasets))
	for i, d := range c.Datasets {
		specs[i] = app.DatasetSpec{Name: d.Name, Conn: d.Conn, Table: d.Table}
	}
	return specs
}
