// Package host exposes the editor's backend commands to the shell. Each
// transport (desktop bindings, HTTP, MCP, CLI) calls into a Host.
package host

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/kalambet/inkwell/internal/events"
	"github.com/kalambet/inkwell/internal/fileaccess"
	"github.com/kalambet/inkwell/internal/history"
	"github.com/kalambet/inkwell/internal/settings"
)

// SettingsStore is the settings persistence the host needs.
type SettingsStore interface {
	Load() (settings.EditorSettings, error)
	Save(settings.EditorSettings) error
	Reset() (settings.EditorSettings, error)
	ConfigPath() (string, error)
}

// Files is the file access the host needs.
type Files interface {
	OpenFile(ctx context.Context) (fileaccess.OpenedFile, error)
	SaveFileAs(ctx context.Context, content string) (fileaccess.SavedFile, error)
	SaveFileAsNamed(ctx context.Context, content, suggested string) (fileaccess.SavedFile, error)
	SaveToPath(ctx context.Context, path, content string) error
}

// Recorder keeps snapshots of opened and saved text.
type Recorder interface {
	Record(history.Snapshot) (history.Snapshot, bool, error)
}

// Host routes shell commands to the settings store and file gateway.
type Host struct {
	settings SettingsStore
	files    Files
	recorder Recorder
	notifier events.Notifier
	logger   *slog.Logger
}

// Option configures a Host.
type Option func(*Host)

// WithRecorder enables snapshot history.
func WithRecorder(r Recorder) Option {
	return func(h *Host) { h.recorder = r }
}

// WithNotifier sets where shell events are sent.
func WithNotifier(n events.Notifier) Option {
	return func(h *Host) { h.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// New creates a Host.
func New(store SettingsStore, files Files, opts ...Option) *Host {
	h := &Host{
		settings: store,
		files:    files,
		notifier: events.Discard,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithFiles returns a copy of h that performs file operations through files.
// Transports that receive a selection per request use it to bind a preset
// picker for that request.
func (h *Host) WithFiles(files Files) *Host {
	c := *h
	c.files = files
	return &c
}

// LoadSettings returns the stored settings, writing defaults on first run.
func (h *Host) LoadSettings() (settings.EditorSettings, error) {
	return h.settings.Load()
}

// SaveSettings persists v.
func (h *Host) SaveSettings(v settings.EditorSettings) error {
	if err := h.settings.Save(v); err != nil {
		return err
	}
	h.notifier.Notify(events.SettingsChanged, v)
	return nil
}

// ResetSettings overwrites the stored settings with the defaults.
func (h *Host) ResetSettings() (settings.EditorSettings, error) {
	v, err := h.settings.Reset()
	if err != nil {
		return settings.EditorSettings{}, err
	}
	h.notifier.Notify(events.SettingsChanged, v)
	return v, nil
}

// SettingsPath returns where the settings document lives.
func (h *Host) SettingsPath() (string, error) {
	return h.settings.ConfigPath()
}

// OpenTextFile asks the user for a file and returns its content and name.
func (h *Host) OpenTextFile(ctx context.Context) (fileaccess.OpenedFile, error) {
	f, err := h.files.OpenFile(ctx)
	if err != nil {
		return fileaccess.OpenedFile{}, err
	}
	h.record(history.Snapshot{Path: f.Path, Name: f.Name, Origin: history.OriginOpen, Content: f.Content})
	return f, nil
}

// SaveTextFile asks the user for a destination and writes content there.
// A non-empty suggested name is offered in the dialog after sanitizing.
func (h *Host) SaveTextFile(ctx context.Context, content, suggested string) (fileaccess.SavedFile, error) {
	var (
		saved fileaccess.SavedFile
		err   error
	)
	if suggested != "" {
		saved, err = h.files.SaveFileAsNamed(ctx, content, suggested)
	} else {
		saved, err = h.files.SaveFileAs(ctx, content)
	}
	if err != nil {
		return fileaccess.SavedFile{}, err
	}
	h.record(history.Snapshot{Path: saved.Path, Origin: history.OriginSaveAs, Content: content})
	h.notifier.Notify(events.FileSaved, saved)
	return saved, nil
}

// SaveToExistingFile overwrites path with content without a dialog.
func (h *Host) SaveToExistingFile(ctx context.Context, path, content string) error {
	if err := h.files.SaveToPath(ctx, path, content); err != nil {
		return err
	}
	h.record(history.Snapshot{Path: filepath.Clean(path), Origin: history.OriginSave, Content: content})
	h.notifier.Notify(events.FileSaved, fileaccess.SavedFile{Path: path})
	return nil
}

// RequestClose tells the shell the window is closing so it can run its own
// unsaved-changes handling. It never prevents the close.
func (h *Host) RequestClose(context.Context) {
	h.logger.Debug("window close requested")
	h.notifier.Notify(events.WindowCloseRequested, nil)
}

func (h *Host) record(snap history.Snapshot) {
	if h.recorder == nil {
		return
	}
	if _, _, err := h.recorder.Record(snap); err != nil {
		h.logger.Warn("recording snapshot failed", "path", snap.Path, "error", err)
	}
}
