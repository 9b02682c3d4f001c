package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfigPath overrides the config location when no --config flag is given.
const EnvConfigPath = "NOLOOK_CONFIG_PATH"

const fileName = "config.jsonc"

// ResolvePath picks the config file: --config, then $NOLOOK_CONFIG_PATH, then
// the XDG location. A file left in the legacy ~/.nolook directory is used
// only when the XDG file does not exist.
func ResolvePath(explicit string) (string, error) {
	for _, p := range []string{explicit, os.Getenv(EnvConfigPath)} {
		if p = strings.TrimSpace(p); p != "" {
			return p, nil
		}
	}

	home, homeErr := os.UserHomeDir()
	var primary string
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		primary = filepath.Join(xdg, "nolook", fileName)
	} else if homeErr == nil {
		primary = filepath.Join(home, ".config", "nolook", fileName)
	} else {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	if homeErr == nil && !fileExists(primary) {
		if legacy := filepath.Join(home, ".nolook", fileName); fileExists(legacy) {
			return legacy, nil
		}
	}
	return primary, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
