// Package fileaccess runs the editor's file dialogs and file I/O off the
// caller's goroutine.
//
// Every operation submits one task to an offload.Offloader: the picker runs
// first, then the read or write, and the caller awaits the single result.
// Failures are *apperr.Error values; a dismissed picker is reported with kind
// Cancelled and is not a failure.
package fileaccess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kalambet/inkwell/internal/apperr"
	"github.com/kalambet/inkwell/internal/fsys"
	"github.com/kalambet/inkwell/internal/offload"
)

const tracerName = "github.com/kalambet/inkwell/internal/fileaccess"

// OpenRequest describes an open dialog.
type OpenRequest struct {
	Title   string
	Filters []Filter
}

// SaveRequest describes a save dialog.
type SaveRequest struct {
	Title       string
	DefaultName string
	Filters     []Filter
}

// Picker shows file dialogs. Both methods block until the user decides and
// return "" when the dialog was dismissed.
type Picker interface {
	PickOpen(ctx context.Context, req OpenRequest) (string, error)
	PickSave(ctx context.Context, req SaveRequest) (string, error)
}

// OpenedFile is the result of OpenFile.
type OpenedFile struct {
	Content string `json:"content"`
	Name    string `json:"name"`
	// Path is the local path the content was read from.
	Path string `json:"path"`
}

// SavedFile is the result of a save-as.
type SavedFile struct {
	Path string `json:"path"`
}

// Gateway performs picker-driven file operations.
type Gateway struct {
	picker  Picker
	fs      fsys.FileSystem
	pool    offload.Offloader
	filters []Filter
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithTracerProvider sets the tracer provider used for operation spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(g *Gateway) { g.tracer = tp.Tracer(tracerName) }
}

// WithFilters replaces DefaultFilters for both dialogs.
func WithFilters(filters []Filter) Option {
	return func(g *Gateway) { g.filters = filters }
}

// New creates a Gateway. fs is the file system every selected path is
// resolved against.
func New(picker Picker, fs fsys.FileSystem, pool offload.Offloader, opts ...Option) *Gateway {
	g := &Gateway{
		picker:  picker,
		fs:      fs,
		pool:    pool,
		filters: DefaultFilters(),
		tracer:  otel.Tracer(tracerName),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OpenFile shows the open dialog and reads the chosen file.
//
// Failure kinds: Cancelled, UnsupportedLocation, ReadFailed, ExecutionFailed.
func (g *Gateway) OpenFile(ctx context.Context) (OpenedFile, error) {
	const op = "open file"
	ctx, span := g.tracer.Start(ctx, "fileaccess.open")
	defer span.End()

	res, err := offload.Run(ctx, g.pool, func() (OpenedFile, error) {
		sel, err := g.picker.PickOpen(ctx, OpenRequest{Title: "Open", Filters: g.filters})
		if err != nil {
			return OpenedFile{}, apperr.Wrap(apperr.KindExecutionFailed, op, fmt.Errorf("open dialog: %w", err))
		}
		path, err := localPath(op, sel)
		if err != nil {
			return OpenedFile{}, err
		}
		span.SetAttributes(attribute.String("file.path", path))

		data, err := fsys.ReadFile(g.fs, path)
		if err != nil {
			return OpenedFile{}, apperr.Wrap(apperr.KindReadFailed, op, err)
		}
		text, err := DecodeText(data)
		if err != nil {
			return OpenedFile{}, &apperr.Error{Kind: apperr.KindReadFailed, Op: op, Reason: path, Err: err}
		}
		return OpenedFile{Content: text, Name: filepath.Base(path), Path: path}, nil
	})
	if err = g.finish(span, op, err); err != nil {
		return OpenedFile{}, err
	}

	g.logger.Debug("file opened", "name", res.Name, "bytes", len(res.Content))
	return res, nil
}

// SaveFileAs shows the save dialog with DefaultSaveName and writes content to
// the chosen file, returning its absolute path.
//
// Failure kinds: Cancelled, UnsupportedLocation, WriteFailed, ExecutionFailed.
func (g *Gateway) SaveFileAs(ctx context.Context, content string) (SavedFile, error) {
	return g.saveAs(ctx, content, DefaultSaveName)
}

// SaveFileAsNamed is SaveFileAs with a caller-suggested file name. The name is
// sanitized before it is offered.
func (g *Gateway) SaveFileAsNamed(ctx context.Context, content, suggested string) (SavedFile, error) {
	name := SanitizeFilename(suggested)
	if err := ValidateFilename(suggested); suggested != "" && err != nil {
		g.logger.Debug("suggested file name rewritten", "suggested", suggested, "name", name, "reason", err)
	}
	return g.saveAs(ctx, content, name)
}

func (g *Gateway) saveAs(ctx context.Context, content, defaultName string) (SavedFile, error) {
	const op = "save file as"
	ctx, span := g.tracer.Start(ctx, "fileaccess.save_as")
	defer span.End()

	res, err := offload.Run(ctx, g.pool, func() (SavedFile, error) {
		sel, err := g.picker.PickSave(ctx, SaveRequest{
			Title:       "Save As",
			DefaultName: defaultName,
			Filters:     g.filters,
		})
		if err != nil {
			return SavedFile{}, apperr.Wrap(apperr.KindExecutionFailed, op, fmt.Errorf("save dialog: %w", err))
		}
		path, err := localPath(op, sel)
		if err != nil {
			return SavedFile{}, err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return SavedFile{}, apperr.Wrap(apperr.KindWriteFailed, op, err)
		}
		span.SetAttributes(attribute.String("file.path", abs), attribute.Int("file.bytes", len(content)))

		if err := fsys.WriteFile(g.fs, abs, []byte(content), 0o644); err != nil {
			return SavedFile{}, apperr.Wrap(apperr.KindWriteFailed, op, err)
		}
		return SavedFile{Path: abs}, nil
	})
	if err = g.finish(span, op, err); err != nil {
		return SavedFile{}, err
	}

	g.logger.Debug("file saved as", "path", res.Path, "bytes", len(content))
	return res, nil
}

// SaveToPath overwrites path with content without showing a dialog. A
// missing file is created.
//
// Failure kinds: WriteFailed, ExecutionFailed.
func (g *Gateway) SaveToPath(ctx context.Context, path, content string) error {
	const op = "save file"
	ctx, span := g.tracer.Start(ctx, "fileaccess.save",
		trace.WithAttributes(attribute.String("file.path", path), attribute.Int("file.bytes", len(content))))
	defer span.End()

	loc := ClassifySelection(path)
	switch {
	case loc.Kind == LocationNone:
		return g.finish(span, op, apperr.New(apperr.KindWriteFailed, op, "no path given"))
	case loc.Kind == LocationAbstract:
		return g.finish(span, op, apperr.New(apperr.KindWriteFailed, op, fmt.Sprintf("%q is not a local path", path)))
	case !filepath.IsAbs(loc.Path):
		return g.finish(span, op, apperr.New(apperr.KindWriteFailed, op, fmt.Sprintf("%q is not an absolute path", path)))
	}

	created, err := offload.Run(ctx, g.pool, func() (bool, error) {
		existed, err := fsys.Exists(g.fs, loc.Path)
		if err != nil {
			return false, apperr.Wrap(apperr.KindWriteFailed, op, err)
		}
		if err := fsys.WriteFile(g.fs, loc.Path, []byte(content), 0o644); err != nil {
			return false, apperr.Wrap(apperr.KindWriteFailed, op, err)
		}
		return !existed, nil
	})
	if err = g.finish(span, op, err); err != nil {
		return err
	}

	span.SetAttributes(attribute.Bool("file.created", created))
	g.logger.Debug("file saved", "path", loc.Path, "bytes", len(content), "created", created)
	return nil
}

// localPath maps a picker selection to a local path or the matching failure.
func localPath(op, sel string) (string, error) {
	loc := ClassifySelection(sel)
	switch loc.Kind {
	case LocationNone:
		return "", apperr.New(apperr.KindCancelled, op, "")
	case LocationAbstract:
		return "", apperr.New(apperr.KindUnsupportedLocation, op, loc.URI)
	}
	return loc.Path, nil
}

// finish converts offload failures to ExecutionFailed and records the outcome
// on span.
func (g *Gateway) finish(span trace.Span, op string, err error) error {
	if err == nil {
		span.SetAttributes(attribute.String("outcome", "ok"))
		return nil
	}

	var execErr *offload.ExecError
	if errors.As(err, &execErr) {
		err = apperr.Wrap(apperr.KindExecutionFailed, op, execErr.Err)
	}

	kind := apperr.KindOf(err)
	span.SetAttributes(attribute.String("outcome", kind.String()))
	if kind == apperr.KindCancelled {
		g.logger.Debug("file dialog dismissed", "op", op)
		return err
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, kind.String())
	g.logger.Warn("file operation failed", "op", op, "kind", kind.String(), "error", err)
	return err
}
