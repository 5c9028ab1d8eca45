package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const appName = "inkwell"

// HomeEnv overrides the application-data directory on every platform.
const HomeEnv = "INKWELL_HOME"

// AppDataDir resolves the per-user application-data directory.
func AppDataDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv(HomeEnv)); override != "" {
		dir := filepath.Clean(override)
		if !filepath.IsAbs(dir) {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return "", fmt.Errorf("resolve %s %q: %w", HomeEnv, override, err)
			}
			dir = abs
		}
		return dir, nil
	}

	dir, err := platformDataDir()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("platform returned an empty data directory")
	}
	return filepath.Join(dir, appName), nil
}
