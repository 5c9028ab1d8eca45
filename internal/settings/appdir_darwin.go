//go:build darwin

package settings

import (
	"fmt"
	"os"
	"path/filepath"
)

func platformDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, "Library", "Application Support"), nil
}
