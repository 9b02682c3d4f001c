package config

import (
	"encoding/json"
	"strings"
)

type jsoncConfig struct {
	Engine        *jsoncEngine        `json:"engine"`
	Reconnect     *jsoncReconnect     `json:"reconnect"`
	Notifications *jsoncNotifications `json:"notifications"`
	Indicator     *jsoncIndicator     `json:"indicator"`
	Archive       *jsoncArchive       `json:"archive"`
	Debug         *jsoncDebug         `json:"debug"`
}

type jsoncEngine struct {
	HTTP              *string `json:"http"`
	StatePath         *string `json:"state_path"`
	Push              *string `json:"push"`
	WSPath            *string `json:"ws_path"`
	GRPC              *string `json:"grpc"`
	RequestTimeoutMS  *int    `json:"request_timeout_ms"`
	Discover          *bool   `json:"discover"`
	DiscoverService   *string `json:"discover_service"`
	DiscoverTimeoutMS *int    `json:"discover_timeout_ms"`
}

type jsoncReconnect struct {
	InitialMS *int `json:"initial_ms"`
	MaxMS     *int `json:"max_ms"`
}

type jsoncNotifications struct {
	TTLMS      *int `json:"ttl_ms"`
	MaxVisible *int `json:"max_visible"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	TimeoutMS      *int    `json:"timeout_ms"`
}

type jsoncArchive struct {
	Enable     *bool   `json:"enable"`
	Path       *string `json:"path"`
	MaxSizeMB  *int    `json:"max_size_mb"`
	MaxBackups *int    `json:"max_backups"`
}

type jsoncDebug struct {
	Log *bool `json:"log"`
}

// Parse reads JSONC configuration content layered over base.
//
// Empty content yields base unchanged (after validation).
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	if e := payload.Engine; e != nil {
		setString(&cfg.Engine.HTTP, e.HTTP)
		setString(&cfg.Engine.StatePath, e.StatePath)
		setString(&cfg.Engine.WSPath, e.WSPath)
		setString(&cfg.Engine.GRPC, e.GRPC)
		setString(&cfg.Engine.DiscoverService, e.DiscoverService)
		if e.Push != nil {
			cfg.Engine.Push = strings.ToLower(strings.TrimSpace(*e.Push))
		}
		setInt(&cfg.Engine.RequestTimeoutMS, e.RequestTimeoutMS)
		setInt(&cfg.Engine.DiscoverTimeoutMS, e.DiscoverTimeoutMS)
		setBool(&cfg.Engine.Discover, e.Discover)
	}

	if r := payload.Reconnect; r != nil {
		setInt(&cfg.Reconnect.InitialMS, r.InitialMS)
		setInt(&cfg.Reconnect.MaxMS, r.MaxMS)
	}

	if n := payload.Notifications; n != nil {
		setInt(&cfg.Notifications.TTLMS, n.TTLMS)
		setInt(&cfg.Notifications.MaxVisible, n.MaxVisible)
	}

	if ind := payload.Indicator; ind != nil {
		setBool(&cfg.Indicator.Enable, ind.Enable)
		if ind.Backend != nil {
			cfg.Indicator.Backend = strings.ToLower(strings.TrimSpace(*ind.Backend))
		}
		setString(&cfg.Indicator.DesktopAppName, ind.DesktopAppName)
		setBool(&cfg.Indicator.SoundEnable, ind.SoundEnable)
		setInt(&cfg.Indicator.TimeoutMS, ind.TimeoutMS)
	}

	if a := payload.Archive; a != nil {
		setBool(&cfg.Archive.Enable, a.Enable)
		setString(&cfg.Archive.Path, a.Path)
		setInt(&cfg.Archive.MaxSizeMB, a.MaxSizeMB)
		setInt(&cfg.Archive.MaxBackups, a.MaxBackups)
	}

	if d := payload.Debug; d != nil {
		setBool(&cfg.Debug.Log, d.Log)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
