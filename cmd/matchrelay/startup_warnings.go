package main

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/pairwave/matchrelay/internal/config"
)

// logStartupWarnings surfaces configuration that is fine for local
// development but dangerous or broken in production.
func logStartupWarnings(logger *slog.Logger, cfg config.Config) {
	if cfg.Mode == config.ModeDev {
		logger.Warn("running in dev mode; do not expose this instance publicly",
			"warning_code", "dev_mode")
	}

	if len(cfg.AllowedOrigins) == 0 {
		logger.Warn("no allowed origins configured; browser WebSocket connections will be rejected in prod mode",
			"warning_code", "no_allowed_origins")
	} else if slices.Contains(cfg.AllowedOrigins, "*") {
		logger.Warn("wildcard origin allowed; any website can open signaling connections",
			"warning_code", "wildcard_origin")
	}

	hasTURN := false
	for _, s := range cfg.ICEServers {
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
				hasTURN = true
			}
		}
	}
	if !hasTURN {
		logger.Warn("no TURN server configured; peers behind symmetric NATs will fail to connect",
			"warning_code", "no_turn_server")
	}

	if cfg.DirectoryBaseURL == "" {
		logger.Warn("no profile directory configured; matched peers will not receive partner usernames",
			"warning_code", "no_directory")
	}
}
