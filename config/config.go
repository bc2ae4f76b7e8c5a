// Package config loads the workbench client configuration from YAML with
// first-match path discovery and sensible defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "workbench.yaml"
	homeConfigDir     = ".workbench"
	homeConfigName    = "config.yaml"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30m" or "72h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UpdateConfig configures the self-update workflow.
type UpdateConfig struct {
	// ManifestURL serves the latest-release manifest.
	ManifestURL string `yaml:"manifest_url"`

	// ReleasePage is the release page URL template; %s is the version.
	ReleasePage string `yaml:"release_page"`

	// Schedule is the background check cadence (cron or @every syntax).
	// Empty disables background checks.
	Schedule string `yaml:"schedule"`
}

// HostConfig configures the host bridge endpoints.
type HostConfig struct {
	// Endpoint is where clients post globally-emitted events.
	Endpoint string `yaml:"endpoint"`

	// Listen is the bridge's listen address.
	Listen string `yaml:"listen"`
}

// JournalConfig configures the diagnostic event journal.
type JournalConfig struct {
	// Path is the SQLite database path. Empty disables the journal.
	Path string `yaml:"path"`

	// RetentionAge prunes entries older than this (default 72h).
	RetentionAge Duration `yaml:"retention_age"`

	// RetentionCount keeps at most this many entries (default 10000).
	RetentionCount int `yaml:"retention_count"`
}

// Config is the client configuration.
type Config struct {
	Update  UpdateConfig  `yaml:"update"`
	Host    HostConfig    `yaml:"host"`
	Journal JournalConfig `yaml:"journal"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Update: UpdateConfig{
			ReleasePage: "https://github.com/workbench-labs/workbench/releases/tag/%s",
			Schedule:    "@every 30m",
		},
		Host: HostConfig{
			Listen: "127.0.0.1:8190",
		},
		Journal: JournalConfig{
			RetentionAge:   Duration(72 * time.Hour),
			RetentionCount: 10000,
		},
	}
}

// Discover resolves the config file location with first-match semantics:
// the explicit path if given, then ./workbench.yaml, then
// ~/.workbench/config.yaml. A missing explicit path is an error; missing
// fallbacks are not.
func Discover(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverFrom(explicitPath, cwd, homeDir)
}

// DiscoverFrom is a testable variant of Discover.
func DiscoverFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 3)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// Load reads and parses a config file, layered over Default().
func Load(path string) (Config, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return cfg, nil
}
