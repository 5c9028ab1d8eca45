// Package settings persists the editor configuration document.
//
// There is exactly one document per installation, stored as pretty-printed
// JSON at <app-data dir>/settings.json. A missing document is replaced with
// Defaults on first load; a present but unreadable one is reported as
// ParseFailed and left untouched so the caller can decide how to recover.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kalambet/inkwell/internal/apperr"
	"github.com/kalambet/inkwell/internal/fsys"
)

// FileName is the settings document's file name inside the app-data dir.
const FileName = "settings.json"

// DirFunc resolves the directory holding the settings document.
type DirFunc func() (string, error)

// Store maps EditorSettings to its on-disk document. Saves are not serialized
// against each other; the last writer wins.
type Store struct {
	dir    DirFunc
	fs     fsys.FileSystem
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithDirFunc overrides the app-data directory resolver.
func WithDirFunc(fn DirFunc) Option {
	return func(s *Store) { s.dir = fn }
}

// WithDir pins the settings directory.
func WithDir(dir string) Option {
	return WithDirFunc(func() (string, error) { return dir, nil })
}

// WithFS sets the file system the store reads and writes through.
func WithFS(fs fsys.FileSystem) Option {
	return func(s *Store) { s.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a Store using the platform app-data directory and the
// local file system unless overridden.
func NewStore(opts ...Option) *Store {
	s := &Store{
		dir:    AppDataDir,
		fs:     fsys.Default,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConfigPath returns the absolute path of the settings document.
func (s *Store) ConfigPath() (string, error) {
	dir, err := s.dir()
	if err != nil {
		return "", apperr.Wrap(apperr.KindDirectoryUnavailable, "resolve settings path", err)
	}
	if dir == "" || !filepath.IsAbs(dir) {
		return "", apperr.New(apperr.KindDirectoryUnavailable, "resolve settings path",
			fmt.Sprintf("app-data directory %q is not an absolute path", dir))
	}
	return filepath.Join(dir, FileName), nil
}

// Save writes settings in full, replacing any prior content. The parent
// directory is created if missing.
func (s *Store) Save(v EditorSettings) error {
	path, err := s.ConfigPath()
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return apperr.Wrap(apperr.KindWriteFailed, "save settings", fmt.Errorf("creating settings dir: %w", err))
	}

	data, err := Encode(v)
	if err != nil {
		return apperr.Wrap(apperr.KindWriteFailed, "save settings", fmt.Errorf("encoding settings: %w", err))
	}

	if err := fsys.WriteFile(s.fs, path, data, 0o600); err != nil {
		return apperr.Wrap(apperr.KindWriteFailed, "save settings", err)
	}

	s.logger.Debug("settings saved", "path", path)
	return nil
}

// Load returns the stored settings. When no document exists yet it writes
// and returns Defaults; this is the only case in which Load writes.
func (s *Store) Load() (EditorSettings, error) {
	path, err := s.ConfigPath()
	if err != nil {
		return EditorSettings{}, err
	}

	data, err := fsys.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("settings file not found, writing defaults", "path", path)
		v := Defaults()
		if err := s.Save(v); err != nil {
			return EditorSettings{}, err
		}
		return v, nil
	}
	if err != nil {
		return EditorSettings{}, &apperr.Error{
			Kind:   apperr.KindParseFailed,
			Op:     "load settings",
			Reason: "reading " + path,
			Err:    err,
		}
	}

	v, err := Decode(data)
	if err != nil {
		s.logger.Warn("settings file is not valid", "path", path, "error", err)
		return EditorSettings{}, &apperr.Error{
			Kind:   apperr.KindParseFailed,
			Op:     "load settings",
			Reason: path,
			Err:    err,
		}
	}
	return v, nil
}

// Reset overwrites the stored document with Defaults and returns them. It is
// the explicit recovery step after Load reported ParseFailed.
func (s *Store) Reset() (EditorSettings, error) {
	v := Defaults()
	if err := s.Save(v); err != nil {
		return EditorSettings{}, err
	}
	s.logger.Info("settings reset to defaults")
	return v, nil
}
