package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and enums. Errors are prefixed with
// CONFIG_INVALID so callers can exit 2.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("CONFIG_INVALID: nil config")
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("CONFIG_INVALID: %s=%v fails %q", fieldPath(fe.Namespace()), fe.Value(), fe.Tag())
		}
		return fmt.Errorf("CONFIG_INVALID: %w", err)
	}
	if !slices.Contains(Transports, cfg.Server.Transport) {
		return fmt.Errorf("CONFIG_INVALID: server.transport=%q; allowed: %s", cfg.Server.Transport, strings.Join(Transports, ", "))
	}
	if !slices.Contains(LogLevels, strings.ToLower(cfg.Log.Level)) {
		return fmt.Errorf("CONFIG_INVALID: log.level=%q; allowed: %s", cfg.Log.Level, strings.Join(LogLevels, ", "))
	}
	if !slices.Contains(LogFormats, cfg.Log.Format) {
		return fmt.Errorf("CONFIG_INVALID: log.format=%q; allowed: %s", cfg.Log.Format, strings.Join(LogFormats, ", "))
	}
	return nil
}

// RequireRagflowKey reports a missing Ragflow key with remediation text.
func RequireRagflowKey(cfg *Config) error {
	if isUnsetSecret(cfg.Ragflow.APIKey) {
		return fmt.Errorf("CONFIG_INVALID: Missing RAGFLOW_API_KEY\nSet env: RAGFLOW_API_KEY=...\nOr run: ragflowmcp config init")
	}
	return nil
}

func RequireVannaKey(cfg *Config) error {
	if isUnsetSecret(cfg.Vanna.APIKey) {
		return fmt.Errorf("CONFIG_INVALID: Missing VANNA_API_KEY\nSet env: VANNA_API_KEY=...\nOr run: ragflowmcp config init")
	}
	return nil
}

// isUnsetSecret treats template placeholders like ${RAGFLOW_API_KEY} as unset.
func isUnsetSecret(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || (strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}"))
}

// fieldPath turns "Config.Server.MCPPath" into "server.mcppath".
func fieldPath(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		rest = ns
	}
	return strings.ToLower(rest)
}
