package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Engine.HTTP) == "" {
		return nil, fmt.Errorf("engine.http must not be empty")
	}
	u, err := url.Parse(cfg.Engine.HTTP)
	if err != nil {
		return nil, fmt.Errorf("engine.http: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("engine.http must use http or https scheme")
	}
	if !strings.HasPrefix(cfg.Engine.StatePath, "/") {
		return nil, fmt.Errorf("engine.state_path must start with '/'")
	}

	switch cfg.Engine.Push {
	case PushWebSocket:
		if !strings.HasPrefix(cfg.Engine.WSPath, "/") {
			return nil, fmt.Errorf("engine.ws_path must start with '/'")
		}
	case PushGRPC:
		if strings.TrimSpace(cfg.Engine.GRPC) == "" {
			return nil, fmt.Errorf("engine.grpc must not be empty when engine.push=grpc")
		}
	default:
		return nil, fmt.Errorf("engine.push must be one of: websocket, grpc")
	}

	if cfg.Engine.RequestTimeoutMS <= 0 {
		return nil, fmt.Errorf("engine.request_timeout_ms must be > 0")
	}
	if cfg.Engine.Discover {
		if strings.TrimSpace(cfg.Engine.DiscoverService) == "" {
			return nil, fmt.Errorf("engine.discover_service must not be empty when engine.discover=true")
		}
		if cfg.Engine.DiscoverTimeoutMS <= 0 {
			return nil, fmt.Errorf("engine.discover_timeout_ms must be > 0")
		}
	}

	if cfg.Reconnect.InitialMS <= 0 {
		return nil, fmt.Errorf("reconnect.initial_ms must be > 0")
	}
	if cfg.Reconnect.MaxMS < cfg.Reconnect.InitialMS {
		return nil, fmt.Errorf("reconnect.max_ms must be >= reconnect.initial_ms")
	}

	if cfg.Notifications.TTLMS < 0 {
		return nil, fmt.Errorf("notifications.ttl_ms must be >= 0")
	}
	if cfg.Notifications.TTLMS == 0 {
		warnings = append(warnings, Warning{Message: "notifications.ttl_ms=0 disables auto-expiry; toasts stay until dismissed"})
	}
	if cfg.Notifications.MaxVisible <= 0 {
		return nil, fmt.Errorf("notifications.max_visible must be > 0")
	}

	backend := cfg.Indicator.Backend
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.TimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.timeout_ms must be >= 0")
	}
	if !cfg.Indicator.Enable && cfg.Indicator.SoundEnable {
		warnings = append(warnings, Warning{Message: "indicator.sound_enable has no effect while indicator.enable=false"})
	}

	if cfg.Archive.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("archive.max_size_mb must be > 0")
	}
	if cfg.Archive.MaxBackups < 0 {
		return nil, fmt.Errorf("archive.max_backups must be >= 0")
	}

	return warnings, nil
}
