package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SnapshotConfig returns a copy of config safe to print or persist: secrets
// are replaced with their source.
func SnapshotConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}
	c := *cfg
	c.Ragflow.APIKey = redactSecret(cfg.Ragflow.APIKey, "RAGFLOW_API_KEY")
	c.Vanna.APIKey = redactSecret(cfg.Vanna.APIKey, "VANNA_API_KEY")
	c.Server.TrustedProxies = append([]string(nil), cfg.Server.TrustedProxies...)
	return &c
}

func redactSecret(value, envName string) string {
	if value == "" {
		return ""
	}
	return "<from env " + envName + ">"
}

// MarshalSnapshot renders the redacted config as YAML.
func MarshalSnapshot(cfg *Config) ([]byte, error) {
	snap := SnapshotConfig(cfg)
	if snap == nil {
		return nil, fmt.Errorf("config is nil")
	}
	return yaml.Marshal(snap)
}

// WriteTemplate writes DefaultYAML to path. An existing file is kept unless
// force is set.
func WriteTemplate(path string, force bool) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is required")
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(DefaultYAML), 0o600); err != nil {
		return fmt.Errorf("write config file %s: %w", path, err)
	}
	return nil
}
