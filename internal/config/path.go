package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	configFileName = "config.toml"

	// DirEnv overrides the directory holding config.toml.
	DirEnv = "INKWELL_CONFIG_DIR"
)

// GetConfigPath resolves the config directory and file path using XDG rules
// with a fallback to ~/.config/inkwell/config.toml.
func GetConfigPath() (string, string, error) {
	if override := strings.TrimSpace(os.Getenv(DirEnv)); override != "" {
		dir := filepath.Clean(override)
		if !filepath.IsAbs(dir) {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return "", "", fmt.Errorf("resolve %s %q: %w", DirEnv, override, err)
			}
			dir = abs
		}
		return dir, filepath.Join(dir, configFileName), nil
	}

	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			if err == nil {
				err = fmt.Errorf("home directory not found")
			}
			return "", "", fmt.Errorf("resolve home dir: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	dir := filepath.Join(base, "inkwell")
	return dir, filepath.Join(dir, configFileName), nil
}
