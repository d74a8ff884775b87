package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Options for loading config. ConfigPath is relative to RootDir if not absolute.
type Options struct {
	ConfigPath   string
	RootDir      string
	SkipValidate bool
	// Overrides apply last. Nil means no CLI overrides.
	Overrides *Overrides
	// DotEnvFiles defaults to .env.local then .env.
	DotEnvFiles []string
}

// Overrides holds CLI flag values. Only non-nil fields are applied.
type Overrides struct {
	RagflowHost    *string
	RagflowPort    *int
	RagflowAPIKey  *string
	RagflowBaseURL *string
	VannaAPIKey    *string
	VannaBaseURL   *string
	AssetBaseURL   *string
	AssetsDisabled *bool
	Transport      *string
	Listen         *string
	MCPPath        *string
	LogLevel       *string
	LogFormat      *string
}

// Load builds config with precedence: defaults → config file → dotenv → env
// vars → Overrides. Errors carry the CONFIG_INVALID prefix.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	if !filepath.IsAbs(configPath) && opts.RootDir != "" {
		configPath = filepath.Join(opts.RootDir, configPath)
	}
	if err := decodeFile(configPath, &cfg); err != nil {
		return nil, err
	}

	dotenv := opts.DotEnvFiles
	if dotenv == nil {
		dotenv = []string{".env.local", ".env"}
	}
	if err := loadDotEnvFiles(dotenv...); err != nil {
		return nil, fmt.Errorf("CONFIG_INVALID: failed loading dotenv files: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if opts.Overrides != nil {
		applyOverrides(&cfg, opts.Overrides)
	}

	if !opts.SkipValidate {
		if err := Validate(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// decodeFile layers a YAML or TOML file over cfg. A missing file is not an
// error.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("CONFIG_INVALID: cannot read config file %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("CONFIG_INVALID: malformed TOML in %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("CONFIG_INVALID: malformed YAML in %s: %w", path, err)
		}
	}
	return nil
}

// loadDotEnvFiles exports dotenv entries for keys that are unset or empty.
// Earlier files win.
func loadDotEnvFiles(paths ...string) error {
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		for key, value := range values {
			if existing, ok := os.LookupEnv(key); ok && strings.TrimSpace(existing) != "" {
				continue
			}
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString := func(name string, target *string) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*target = v
		}
	}
	setPort := func(name string, target *int) error {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			return nil
		}
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONFIG_INVALID: %s=%q is not a port number", name, v)
		}
		*target = port
		return nil
	}

	setString("RAGFLOW_API_HOST", &cfg.Ragflow.Host)
	if err := setPort("RAGFLOW_API_PORT", &cfg.Ragflow.Port); err != nil {
		return err
	}
	setString("RAGFLOW_API_KEY", &cfg.Ragflow.APIKey)
	setString("RAGFLOW_API_BASE", &cfg.Ragflow.BaseURL)

	setString("VANNA_API_HOST", &cfg.Vanna.Host)
	if err := setPort("VANNA_API_PORT", &cfg.Vanna.Port); err != nil {
		return err
	}
	setString("VANNA_API_KEY", &cfg.Vanna.APIKey)
	setString("VANNA_API_BASE", &cfg.Vanna.BaseURL)

	setString("RICH_ASSET_BASE_URL", &cfg.Assets.BaseURL)
	if v := strings.TrimSpace(os.Getenv("RICH_ASSET_TIMEOUT")); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CONFIG_INVALID: RICH_ASSET_TIMEOUT=%q is not a number of seconds", v)
		}
		cfg.Assets.TimeoutSeconds = secs
	}

	setString("RAGFLOWMCP_TRANSPORT", &cfg.Server.Transport)
	setString("RAGFLOWMCP_LISTEN", &cfg.Server.Listen)
	setString("RAGFLOWMCP_LOG_LEVEL", &cfg.Log.Level)

	if isUnsetSecret(cfg.Ragflow.APIKey) {
		cfg.Ragflow.APIKey = ""
	}
	if isUnsetSecret(cfg.Vanna.APIKey) {
		cfg.Vanna.APIKey = ""
	}
	return nil
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o.RagflowHost != nil {
		cfg.Ragflow.Host = *o.RagflowHost
	}
	if o.RagflowPort != nil {
		cfg.Ragflow.Port = *o.RagflowPort
	}
	if o.RagflowAPIKey != nil {
		cfg.Ragflow.APIKey = *o.RagflowAPIKey
	}
	if o.RagflowBaseURL != nil {
		cfg.Ragflow.BaseURL = *o.RagflowBaseURL
	}
	if o.VannaAPIKey != nil {
		cfg.Vanna.APIKey = *o.VannaAPIKey
	}
	if o.VannaBaseURL != nil {
		cfg.Vanna.BaseURL = *o.VannaBaseURL
	}
	if o.AssetBaseURL != nil {
		cfg.Assets.BaseURL = *o.AssetBaseURL
	}
	if o.AssetsDisabled != nil {
		cfg.Assets.Disabled = *o.AssetsDisabled
	}
	if o.Transport != nil {
		cfg.Server.Transport = *o.Transport
	}
	if o.Listen != nil {
		cfg.Server.Listen = *o.Listen
	}
	if o.MCPPath != nil {
		cfg.Server.MCPPath = *o.MCPPath
	}
	if o.LogLevel != nil {
		cfg.Log.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Log.Format = *o.LogFormat
	}
}
