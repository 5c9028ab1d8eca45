// Package events delivers one-way notifications from the host to the editor
// shell.
package events

import (
	"context"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Event names.
const (
	// WindowCloseRequested is emitted when the window is asked to close. It
	// has no payload and the shell cannot veto the close through it.
	WindowCloseRequested = "window:close-requested"
	// SettingsChanged carries the saved settings after a successful save or
	// reset.
	SettingsChanged = "settings:changed"
	// FileSaved carries the path of a file written by save-as or save.
	FileSaved = "file:saved"
)

// Notifier publishes events. Notify never blocks on delivery and never
// reports delivery failures.
type Notifier interface {
	Notify(event string, payload any)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(event string, payload any)

func (f NotifierFunc) Notify(event string, payload any) { f(event, payload) }

// Discard drops every event.
var Discard Notifier = NotifierFunc(func(string, any) {})

// Multi fans an event out to every notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(event string, payload any) {
		for _, n := range notifiers {
			n.Notify(event, payload)
		}
	})
}

// Wails emits events into the desktop window's frontend.
type Wails struct {
	mu  sync.RWMutex
	ctx context.Context
}

// emit is the Wails runtime entry point, replaced in tests.
var emit = runtime.EventsEmit

// Startup binds the Wails application context. Events sent before Startup
// are dropped.
func (w *Wails) Startup(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctx = ctx
}

func (w *Wails) Notify(event string, payload any) {
	w.mu.RLock()
	ctx := w.ctx
	w.mu.RUnlock()
	if ctx == nil {
		return
	}
	if payload == nil {
		emit(ctx, event)
		return
	}
	emit(ctx, event, payload)
}
