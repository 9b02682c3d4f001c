package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			HTTP:              "http://127.0.0.1:8000",
			StatePath:         "/api/engine/state",
			Push:              PushWebSocket,
			WSPath:            "/ws/engine",
			GRPC:              "127.0.0.1:50061",
			RequestTimeoutMS:  5000,
			DiscoverService:   "_nolook._tcp",
			DiscoverTimeoutMS: 2000,
		},
		Reconnect: ReconnectConfig{InitialMS: 500, MaxMS: 10000},
		Notifications: NotificationsConfig{
			TTLMS:      3000,
			MaxVisible: 5,
		},
		Indicator: IndicatorConfig{
			Enable:         false,
			Backend:        "desktop",
			DesktopAppName: "nolook",
			SoundEnable:    false,
			TimeoutMS:      3000,
		},
		Archive: ArchiveConfig{
			Enable:     true,
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}
