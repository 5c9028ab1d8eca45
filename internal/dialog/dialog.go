// Package dialog provides fileaccess.Picker implementations: native dialogs
// for the desktop window and preset selections for headless transports.
package dialog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/kalambet/inkwell/internal/fileaccess"
)

// ErrNotStarted is returned by Native before the desktop runtime started.
var ErrNotStarted = errors.New("native dialogs are not available before the window starts")

// Wails runtime entry points, replaced in tests.
var (
	openFileDialog = runtime.OpenFileDialog
	saveFileDialog = runtime.SaveFileDialog
)

// Native shows the platform's file dialogs through the Wails runtime.
// The dialogs open in the directory of the last selection.
type Native struct {
	mu      sync.Mutex
	appCtx  context.Context
	lastDir string
}

// NewNative returns a Native picker. It must be bound with Startup before
// use.
func NewNative() *Native {
	return &Native{}
}

// Startup binds the Wails application context. Call it from OnStartup.
func (n *Native) Startup(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.appCtx = ctx
}

func (n *Native) state() (context.Context, string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.appCtx == nil {
		return nil, "", ErrNotStarted
	}
	return n.appCtx, n.lastDir, nil
}

func (n *Native) remember(sel string) {
	if sel == "" || fileaccess.ClassifySelection(sel).Kind != fileaccess.LocationLocal {
		return
	}
	n.mu.Lock()
	n.lastDir = filepath.Dir(sel)
	n.mu.Unlock()
}

// PickOpen implements fileaccess.Picker. The request context is not used:
// Wails dialogs are modal to the window and run against its context.
func (n *Native) PickOpen(_ context.Context, req fileaccess.OpenRequest) (string, error) {
	appCtx, dir, err := n.state()
	if err != nil {
		return "", err
	}
	sel, err := openFileDialog(appCtx, runtime.OpenDialogOptions{
		DefaultDirectory: dir,
		Title:            req.Title,
		Filters:          toWails(req.Filters),
	})
	if err != nil {
		return "", err
	}
	n.remember(sel)
	return sel, nil
}

// PickSave implements fileaccess.Picker.
func (n *Native) PickSave(_ context.Context, req fileaccess.SaveRequest) (string, error) {
	appCtx, dir, err := n.state()
	if err != nil {
		return "", err
	}
	sel, err := saveFileDialog(appCtx, runtime.SaveDialogOptions{
		DefaultDirectory:     dir,
		DefaultFilename:      req.DefaultName,
		Title:                req.Title,
		Filters:              toWails(req.Filters),
		CanCreateDirectories: true,
	})
	if err != nil {
		return "", err
	}
	n.remember(sel)
	return sel, nil
}

func toWails(filters []fileaccess.Filter) []runtime.FileFilter {
	out := make([]runtime.FileFilter, 0, len(filters))
	for _, f := range filters {
		out = append(out, runtime.FileFilter{
			DisplayName: f.Name + " (" + f.Pattern() + ")",
			Pattern:     f.Pattern(),
		})
	}
	return out
}

// Preset answers every dialog with a selection chosen in advance. HTTP, MCP
// and CLI callers run their own selection step and pass the result in; an
// empty selection reads as a dismissed dialog.
type Preset struct {
	Selection string
}

// Select returns a Preset picker for sel.
func Select(sel string) Preset {
	return Preset{Selection: sel}
}

func (p Preset) PickOpen(context.Context, fileaccess.OpenRequest) (string, error) {
	return p.Selection, nil
}

func (p Preset) PickSave(context.Context, fileaccess.SaveRequest) (string, error) {
	return p.Selection, nil
}

var (
	_ fileaccess.Picker = (*Native)(nil)
	_ fileaccess.Picker = Preset{}
)
