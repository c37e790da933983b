package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".shade"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. SHADE_CONFIG overrides the
// default ~/.shade/config.json location.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("SHADE_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // Use defaults if we can't find config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	// If file doesn't exist, continue with defaults

	// Override with environment variables for each group
	envconfig.Process("SHADE", cfg)
	envconfig.Process("SHADE_PATHS", &cfg.Paths)
	envconfig.Process("SHADE_POLL", &cfg.Poll)
	envconfig.Process("SHADE_CONCURRENCY", &cfg.Concurrency)
	envconfig.Process("SHADE_RETRY", &cfg.Retry)
	envconfig.Process("SHADE_EXECUTION", &cfg.Execution)
	envconfig.Process("SHADE_TRIGGER", &cfg.Trigger)
	envconfig.Process("SHADE_ANTHROPIC", &cfg.Anthropic)
	envconfig.Process("SHADE_HTTP", &cfg.HTTP)

	// Fallback for API key
	if cfg.Anthropic.APIKey == "" {
		cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	// Expand ~ in paths
	expandHome := func(p *string) {
		if strings.HasPrefix(*p, "~") {
			if home, err := os.UserHomeDir(); err == nil {
				*p = filepath.Join(home, (*p)[1:])
			}
		}
	}
	expandHome(&cfg.Paths.DataDir)
	expandHome(&cfg.Paths.Database)
	expandHome(&cfg.Paths.Groups)
	expandHome(&cfg.Paths.Sessions)
	expandHome(&cfg.Paths.IPC)

	return cfg, nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDirs creates the data directory layout.
func EnsureDirs(cfg *Config) error {
	dirs := []string{
		cfg.Paths.DataDir,
		cfg.Paths.GroupsDir(),
		cfg.Paths.SessionsDir(),
		cfg.Paths.IPCDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
