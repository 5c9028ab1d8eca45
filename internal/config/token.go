package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TokenFileName is the generated API token's file inside the app-data dir.
const TokenFileName = "api-token"

const tokenBytes = 32

// APIToken returns the bearer token the HTTP API requires. server.token wins
// when set; otherwise the token stored in dir is used, generated on first
// call. The result is never empty.
func APIToken(cfg Config, dir string) (string, error) {
	if tok := strings.TrimSpace(cfg.Server.Token); tok != "" {
		return tok, nil
	}
	if dir == "" || !filepath.IsAbs(dir) {
		return "", fmt.Errorf("token directory %q is not an absolute path", dir)
	}
	path := filepath.Join(dir, TokenFileName)

	tok, err := readToken(path)
	if err == nil {
		return tok, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating token dir: %w", err)
	}
	tok, err = newToken()
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		// Another process generated it first.
		return readToken(path)
	}
	if err != nil {
		return "", fmt.Errorf("creating token file: %w", err)
	}
	if _, err := f.WriteString(tok + "\n"); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing token file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing token file: %w", err)
	}
	return tok, nil
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", fmt.Errorf("token file %s is empty; delete it to generate a new token", path)
	}
	return tok, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating API token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
