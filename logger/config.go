package logger

import (
	"log/slog"
	"sort"
)

// Log format constants
const (
	FormatJSON = "json"
	FormatText = "text"
)

// LoggingConfigSpec defines the logging configuration for the Configure function.
// This mirrors config.LoggingConfig to avoid import cycles.
type LoggingConfigSpec struct {
	DefaultLevel string
	Format       string // "json" or "text"
	CommonFields map[string]string
}

// Configure applies a LoggingConfigSpec to the global logger.
func Configure(cfg *LoggingConfigSpec) error {
	if cfg == nil {
		return nil
	}

	level := slog.LevelInfo
	if cfg.DefaultLevel != "" {
		level = ParseLevel(cfg.DefaultLevel)
	}

	keys := make([]string, 0, len(cfg.CommonFields))
	for k := range cfg.CommonFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	commonFields := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		commonFields = append(commonFields, slog.String(k, cfg.CommonFields[k]))
	}

	initLogger(level, commonFields, cfg.Format == FormatJSON)
	return nil
}
