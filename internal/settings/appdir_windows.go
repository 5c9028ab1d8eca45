//go:build windows

package settings

import (
	"fmt"
	"os"
)

// platformDataDir returns %AppData% (the roaming profile).
func platformDataDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve AppData: %w", err)
	}
	return dir, nil
}
