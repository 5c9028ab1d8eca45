package main

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"github.com/kalambet/inkwell/internal/apperr"
	"github.com/kalambet/inkwell/internal/config"
	"github.com/kalambet/inkwell/internal/dialog"
	"github.com/kalambet/inkwell/internal/events"
	"github.com/kalambet/inkwell/internal/host"
	"github.com/kalambet/inkwell/internal/settings"
)

//go:embed all:frontend/dist
var assets embed.FS

var desktopCmd = &cobra.Command{
	Use:   "desktop",
	Short: "Open the editor window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDesktop()
	},
}

func runDesktop() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	picker := dialog.NewNative()
	notifier := &events.Wails{}
	b := newBindings(a.host(a.files(picker), notifier))

	err = wails.Run(&options.App{
		Title:  "inkwell",
		Width:  1024,
		Height: 768,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup: func(ctx context.Context) {
			picker.Startup(ctx)
			notifier.Startup(ctx)
			b.startup(ctx)
		},
		OnBeforeClose: func(ctx context.Context) bool {
			b.host.RequestClose(ctx)
			return false
		},
		OnShutdown: func(ctx context.Context) {
			a.Close(ctx)
		},
		Bind: []interface{}{
			b,
		},
	})
	if err != nil {
		return fmt.Errorf("running desktop window: %w", err)
	}
	return nil
}

// FileResult is what the window receives from file commands. Status is "ok"
// or "cancelled"; failures are returned as errors.
type FileResult struct {
	Status  string `json:"status"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Bindings is the command surface the window calls.
type Bindings struct {
	mu   sync.Mutex
	ctx  context.Context
	host *host.Host
}

func newBindings(h *host.Host) *Bindings {
	return &Bindings{ctx: context.Background(), host: h}
}

func (b *Bindings) startup(ctx context.Context) {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()
}

func (b *Bindings) callCtx() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

func (b *Bindings) LoadSettings() (settings.EditorSettings, error) {
	v, err := b.host.LoadSettings()
	return v, bindingError(err)
}

func (b *Bindings) SaveSettings(v settings.EditorSettings) error {
	return bindingError(b.host.SaveSettings(v))
}

func (b *Bindings) ResetSettings() (settings.EditorSettings, error) {
	v, err := b.host.ResetSettings()
	return v, bindingError(err)
}

func (b *Bindings) OpenTextFile() (FileResult, error) {
	f, err := b.host.OpenTextFile(b.callCtx())
	if apperr.KindOf(err) == apperr.KindCancelled {
		return FileResult{Status: "cancelled"}, nil
	}
	if err != nil {
		return FileResult{}, bindingError(err)
	}
	return FileResult{Status: "ok", Content: f.Content, Name: f.Name, Path: f.Path}, nil
}

func (b *Bindings) SaveTextFile(content, suggestedName string) (FileResult, error) {
	saved, err := b.host.SaveTextFile(b.callCtx(), content, suggestedName)
	if apperr.KindOf(err) == apperr.KindCancelled {
		return FileResult{Status: "cancelled"}, nil
	}
	if err != nil {
		return FileResult{}, bindingError(err)
	}
	return FileResult{Status: "ok", Path: saved.Path}, nil
}

func (b *Bindings) SaveToExistingFile(path, content string) error {
	return bindingError(b.host.SaveToExistingFile(b.callCtx(), path, content))
}

// bindingError renders err as "<kind>: <message>" so the window can branch on
// the kind prefix.
func bindingError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %s", apperr.KindOf(err), apperr.Message(err))
}
