package config

import (
	"strings"
	"testing"
)

func TestValidate_MissingKeyYieldsActionableOutput(t *testing.T) {
	cfg := Default()

	for name, check := range map[string]func(*Config) error{
		"RAGFLOW_API_KEY": RequireRagflowKey,
		"VANNA_API_KEY":   RequireVannaKey,
	} {
		err := check(&cfg)
		if err == nil {
			t.Fatalf("expected error when %s missing", name)
		}
		msg := err.Error()
		for _, want := range []string{"CONFIG_INVALID", name, "Set env", "ragflowmcp config init"} {
			if !strings.Contains(msg, want) {
				t.Errorf("error should contain %q, got: %s", want, msg)
			}
		}
	}

	cfg.Ragflow.APIKey = "${RAGFLOW_API_KEY}"
	if err := RequireRagflowKey(&cfg); err == nil {
		t.Fatal("placeholder should count as missing")
	}
	cfg.Ragflow.APIKey = "rf"
	if err := RequireRagflowKey(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Constraints(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"transport", func(c *Config) { c.Server.Transport = "websocket" }, "server.transport"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"port", func(c *Config) { c.Ragflow.Port = 70000 }, "ragflow.port"},
		{"base url", func(c *Config) { c.Vanna.BaseURL = "not a url" }, "vanna.baseurl"},
		{"timeout", func(c *Config) { c.Assets.TimeoutSeconds = 0 }, "assets.timeoutseconds"},
		{"mcp path", func(c *Config) { c.Server.MCPPath = "mcp" }, "server.mcppath"},
		{"trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"nope"} }, "server.trustedproxies"},
		{"host", func(c *Config) { c.Ragflow.Host = "" }, "ragflow.host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.HasPrefix(err.Error(), "CONFIG_INVALID") || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	cfg := Default()
	cfg.Ragflow.Host = ""
	cfg.Ragflow.BaseURL = "https://rag.example.com"
	if err := Validate(&cfg); err != nil {
		t.Fatalf("base url should satisfy host requirement: %v", err)
	}
}

func TestSnapshot_NeverStoresPlaintextSecrets(t *testing.T) {
	cfg := Default()
	cfg.Ragflow.APIKey = "rf-secret-key"
	cfg.Vanna.APIKey = "vn-secret-key"

	snap := SnapshotConfig(&cfg)
	if snap.Ragflow.APIKey != "<from env RAGFLOW_API_KEY>" {
		t.Errorf("Ragflow.APIKey should be redacted, got %q", snap.Ragflow.APIKey)
	}
	if snap.Vanna.APIKey != "<from env VANNA_API_KEY>" {
		t.Errorf("Vanna.APIKey should be redacted, got %q", snap.Vanna.APIKey)
	}
	if cfg.Ragflow.APIKey != "rf-secret-key" {
		t.Error("snapshot must not modify the source config")
	}
	data, err := MarshalSnapshot(&cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret-key") {
		t.Errorf("snapshot must not contain plaintext secrets: %s", data)
	}
}

func TestMaskKey(t *testing.T) {
	if got := MaskKey("abcdefgh1234"); got != strings.Repeat("*", 20)+"1234" {
		t.Errorf("MaskKey=%q", got)
	}
	if got := MaskKey(""); got != "(not set)" {
		t.Errorf("MaskKey empty=%q", got)
	}
	if got := MaskKey("abc"); strings.Contains(got, "abc") {
		t.Errorf("short keys must not leak: %q", got)
	}
}
