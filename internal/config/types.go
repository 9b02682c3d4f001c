// Package config resolves, parses, validates, and defaults nolook configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by nolook.
type Config struct {
	Engine        EngineConfig
	Reconnect     ReconnectConfig
	Notifications NotificationsConfig
	Indicator     IndicatorConfig
	Archive       ArchiveConfig
	Debug         DebugConfig
}

// Push transport names accepted by engine.push.
const (
	PushWebSocket = "websocket"
	PushGRPC      = "grpc"
)

// EngineConfig locates the engine's HTTP API and push channel.
type EngineConfig struct {
	HTTP              string
	StatePath         string
	Push              string
	WSPath            string
	GRPC              string
	RequestTimeoutMS  int
	Discover          bool
	DiscoverService   string
	DiscoverTimeoutMS int
}

// RequestTimeout is the per-request bound for pull fetches and commands.
func (c EngineConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// DiscoverTimeout bounds one mDNS browse.
func (c EngineConfig) DiscoverTimeout() time.Duration {
	return time.Duration(c.DiscoverTimeoutMS) * time.Millisecond
}

// ReconnectConfig controls push reconnect backoff.
type ReconnectConfig struct {
	InitialMS int
	MaxMS     int
}

// NotificationsConfig controls toast expiry and queue length.
type NotificationsConfig struct {
	TTLMS      int
	MaxVisible int
}

// TTL returns the auto-expiry delay; zero disables expiry.
func (c NotificationsConfig) TTL() time.Duration {
	return time.Duration(c.TTLMS) * time.Millisecond
}

// IndicatorConfig controls desktop notification mirroring and audio cues.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	TimeoutMS      int
}

// ArchiveConfig controls the rotating transcript archive.
type ArchiveConfig struct {
	Enable     bool
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// DebugConfig controls verbose logging.
type DebugConfig struct {
	Log bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
