package app

import (
	"fmt"
	"os"
	"strings"

	"restaurant-orders/internal/config"
	"restaurant-orders/internal/logx"
)

// NewLogger builds the service logger: JSON slog by default, zap when LOG_FORMAT=zap.
func NewLogger(cfg *config.Config) (logx.Logger, error) {
	switch strings.ToLower(cfg.LogFormat) {
	case "zap":
		return logx.NewZapProduction(cfg.LogLevel)
	case "", "json", "slog":
		return logx.NewJSON(os.Stdout, cfg.LogLevel)
	default:
		return nil, fmt.Errorf("unknown log format: %q", cfg.LogFormat)
	}
}
