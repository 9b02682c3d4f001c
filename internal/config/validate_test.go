package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty engine http", mutate: func(c *Config) { c.Engine.HTTP = "" }, wantErr: "engine.http"},
		{name: "ws scheme for http", mutate: func(c *Config) { c.Engine.HTTP = "ws://127.0.0.1:8000" }, wantErr: "scheme"},
		{name: "bad state path", mutate: func(c *Config) { c.Engine.StatePath = "api/state" }, wantErr: "engine.state_path"},
		{name: "unknown push", mutate: func(c *Config) { c.Engine.Push = "sse" }, wantErr: "engine.push"},
		{name: "bad ws path", mutate: func(c *Config) { c.Engine.WSPath = "ws" }, wantErr: "engine.ws_path"},
		{name: "grpc without target", mutate: func(c *Config) {
			c.Engine.Push = PushGRPC
			c.Engine.GRPC = " "
		}, wantErr: "engine.grpc"},
		{name: "zero request timeout", mutate: func(c *Config) { c.Engine.RequestTimeoutMS = 0 }, wantErr: "request_timeout_ms"},
		{name: "discover without service", mutate: func(c *Config) {
			c.Engine.Discover = true
			c.Engine.DiscoverService = ""
		}, wantErr: "discover_service"},
		{name: "zero reconnect", mutate: func(c *Config) { c.Reconnect.InitialMS = 0 }, wantErr: "reconnect.initial_ms"},
		{name: "max below initial", mutate: func(c *Config) { c.Reconnect.MaxMS = 100 }, wantErr: "reconnect.max_ms"},
		{name: "negative ttl", mutate: func(c *Config) { c.Notifications.TTLMS = -1 }, wantErr: "ttl_ms"},
		{name: "zero max visible", mutate: func(c *Config) { c.Notifications.MaxVisible = 0 }, wantErr: "max_visible"},
		{name: "unknown indicator backend", mutate: func(c *Config) { c.Indicator.Backend = "dunst" }, wantErr: "indicator.backend"},
		{name: "empty desktop app", mutate: func(c *Config) { c.Indicator.DesktopAppName = "" }, wantErr: "desktop_app_name"},
		{name: "zero archive size", mutate: func(c *Config) { c.Archive.MaxSizeMB = 0 }, wantErr: "archive.max_size_mb"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateWarnsOnSoundWithoutIndicator(t *testing.T) {
	cfg := Default()
	cfg.Indicator.SoundEnable = true

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "sound_enable")
}
