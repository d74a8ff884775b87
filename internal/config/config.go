package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/glide-the/RAGFlowMCP/internal/protocol"
)

const (
	DefaultConfigFile = ".ragflowmcp.yaml"

	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

var (
	Transports = []string{TransportStdio, TransportHTTP, TransportSSE}
	LogLevels  = []string{"debug", "info", "warn", "error"}
	LogFormats = []string{"text", "json"}
)

type Config struct {
	Version int     `yaml:"version" toml:"version"`
	Ragflow Ragflow `yaml:"ragflow" toml:"ragflow"`
	Vanna   Vanna   `yaml:"vanna" toml:"vanna"`
	Assets  Assets  `yaml:"assets" toml:"assets"`
	Server  Server  `yaml:"server" toml:"server"`
	Log     Log     `yaml:"log" toml:"log"`
}

// Ragflow addresses the retrieval API. BaseURL wins over Host and Port.
type Ragflow struct {
	Host    string `yaml:"host" toml:"host" validate:"required_without=BaseURL"`
	Port    int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	APIKey  string `yaml:"api_key" toml:"api_key"`
	BaseURL string `yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
}

// Vanna addresses the chat agent. An empty Host falls back to the Ragflow
// host.
type Vanna struct {
	Host    string `yaml:"host" toml:"host"`
	Port    int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	APIKey  string `yaml:"api_key" toml:"api_key"`
	BaseURL string `yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
}

// Assets configures the rich asset service used to export dataframes and
// render charts. An empty BaseURL means the Ragflow base.
type Assets struct {
	BaseURL        string  `yaml:"base_url" toml:"base_url" validate:"omitempty,url"`
	TimeoutSeconds float64 `yaml:"timeout_seconds" toml:"timeout_seconds" validate:"gt=0"`
	Disabled       bool    `yaml:"disabled" toml:"disabled"`
}

type Server struct {
	Transport string `yaml:"transport" toml:"transport"`
	Listen    string `yaml:"listen" toml:"listen" validate:"required,hostname_port"`
	MCPPath   string `yaml:"mcp_path" toml:"mcp_path" validate:"required,startswith=/"`
	SSEPath   string `yaml:"sse_path" toml:"sse_path" validate:"required,startswith=/"`
	// RateLimitRPS and RateLimitBurst bound tool calls per client IP on the
	// HTTP transports. Zero RPS disables limiting.
	RateLimitRPS   float64  `yaml:"rate_limit_rps" toml:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst int      `yaml:"rate_limit_burst" toml:"rate_limit_burst" validate:"gte=0"`
	TrustedProxies []string `yaml:"trusted_proxies" toml:"trusted_proxies" validate:"dive,cidr|ip"`
}

type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

func Default() Config {
	return Config{
		Version: 1,
		Ragflow: Ragflow{
			Host: "localhost",
			Port: 9621,
		},
		Vanna: Vanna{
			Port: 9621,
		},
		Assets: Assets{
			TimeoutSeconds: 8,
		},
		Server: Server{
			Transport:      TransportStdio,
			Listen:         protocol.DefaultListenAddr,
			MCPPath:        protocol.DefaultMCPPath,
			SSEPath:        protocol.DefaultSSEPath,
			RateLimitRPS:   10,
			RateLimitBurst: 20,
			TrustedProxies: []string{"127.0.0.1/32", "::1/128"},
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// RagflowBase is the explicit base URL, or http://host:port.
func (c *Config) RagflowBase() string {
	if base := strings.TrimSpace(c.Ragflow.BaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	return fmt.Sprintf("http://%s:%d", c.Ragflow.Host, c.Ragflow.Port)
}

func (c *Config) VannaBase() string {
	if base := strings.TrimSpace(c.Vanna.BaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	host := c.Vanna.Host
	if host == "" {
		host = c.Ragflow.Host
	}
	return fmt.Sprintf("http://%s:%d", host, c.Vanna.Port)
}

func (c *Config) AssetBase() string {
	if base := strings.TrimSpace(c.Assets.BaseURL); base != "" {
		return strings.TrimRight(base, "/")
	}
	return c.RagflowBase()
}

func (c *Config) AssetTimeout() time.Duration {
	return time.Duration(c.Assets.TimeoutSeconds * float64(time.Second))
}

// MaskKey keeps the last four characters of a key for log output.
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", 20)
	}
	return strings.Repeat("*", 20) + key[len(key)-4:]
}
