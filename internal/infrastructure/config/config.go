package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config is the host configuration: where extensions live, where the admin
// API listens, and how it is authenticated.
type Config struct {
	DataDir    string `json:"data_dir"`
	PluginsDir string `json:"plugins_dir"`
	ThemesDir  string `json:"themes_dir"`
	BackupsDir string `json:"backups_dir"`
	StagingDir string `json:"staging_dir"`
	ViewsDir   string `json:"views_dir"`

	ListenAddr     string   `json:"listen_addr"`
	AdminToken     string   `json:"admin_token"`
	AllowedOrigins []string `json:"allowed_origins"`
	Debug          bool     `json:"debug"`
}

// Load builds the configuration from defaults, then the config.json inside
// the data dir, then STRONGHOLD_* environment overrides, highest last.
func Load(dataDir string) (*Config, error) {
	if dataDir == "" {
		dataDir = os.Getenv("STRONGHOLD_DATA_DIR")
	}
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".stronghold")
	}

	cfg := &Config{
		DataDir:    dataDir,
		ListenAddr: "127.0.0.1:8090",
	}

	configPath := filepath.Join(dataDir, "config.json")
	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
		cfg.DataDir = dataDir
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	}

	applyEnvOverrides(cfg)
	applyDerivedDefaults(cfg)

	for _, dir := range []string{cfg.PluginsDir, cfg.ThemesDir, cfg.BackupsDir, cfg.StagingDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return cfg, nil
}

// SettingsDBPath is the location of the durable settings database.
func (c *Config) SettingsDBPath() string {
	return filepath.Join(c.DataDir, "stronghold.db")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STRONGHOLD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("STRONGHOLD_ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("STRONGHOLD_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("STRONGHOLD_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		cfg.Debug = true
	}
}

func applyDerivedDefaults(cfg *Config) {
	if cfg.PluginsDir == "" {
		cfg.PluginsDir = filepath.Join(cfg.DataDir, "plugins")
	}
	if cfg.ThemesDir == "" {
		cfg.ThemesDir = filepath.Join(cfg.DataDir, "themes")
	}
	if cfg.BackupsDir == "" {
		cfg.BackupsDir = filepath.Join(cfg.DataDir, "backups")
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = filepath.Join(cfg.DataDir, "staging")
	}
	if cfg.ViewsDir == "" {
		cfg.ViewsDir = filepath.Join(cfg.DataDir, "views")
	}
}
