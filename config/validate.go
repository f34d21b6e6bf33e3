package config

import (
	"fmt"
	"strings"
)

// Validate rejects configurations that would make the service unreachable or
// silently unlogged.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown LogLevel %q", cfg.LogLevel)
	}
	return nil
}
