package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/diagramflow/internal/presentation/tui"
	"github.com/aretw0/diagramflow/pkg/domain"
	"github.com/fsnotify/fsnotify"
)

// WatchOptions configure RunWatch.
type WatchOptions struct {
	Path string
	// Export, when set, writes the diagram in this format after every successful render.
	Export domain.Format
	Out    io.Writer
}

// RenderNotifier returns hooks that signal after every render that was kept and
// every move into the error status. Pass them in Deps.Hooks; the channel drops
// signals nobody is waiting for.
func RenderNotifier() (domain.LifecycleHooks, <-chan struct{}) {
	done := make(chan struct{}, 1)
	notify := func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			if e.To == domain.StatusError && e.From != domain.StatusError {
				notify()
			}
		},
		OnRenderDone: func(_ context.Context, e *domain.RenderEvent) {
			if !e.Stale && e.Err == nil {
				notify()
			}
		},
	}, done
}

// RunWatch feeds the file at opts.Path into the studio on every change until ctx ends.
// Editors that save by rename are handled by watching the parent directory.
func RunWatch(ctx context.Context, app *App, rendered <-chan struct{}, opts WatchOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	abs, err := filepath.Abs(opts.Path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", opts.Path, err)
	}

	load := func() {
		text, err := os.ReadFile(abs)
		if err != nil {
			app.Logger.Warn("Read failed", "path", abs, "err", err)
			return
		}
		app.Studio.OnChange(string(text))
	}

	printSystemMessage(out, "Watching '%s'.", opts.Path)
	load()

	for {
		select {
		case <-ctx.Done():
			printSystemMessage(out, "Stopped watching '%s'.", opts.Path)
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				app.Logger.Debug("Change detected", "event", event.Op.String())
				load()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			app.Logger.Error("Watcher error", "err", err)

		case <-rendered:
			session := app.Studio.Snapshot()
			fmt.Fprintln(out, tui.StatusLine(session))
			if opts.Export == "" || session.HasError() {
				continue
			}
			exportCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			d, err := app.Studio.ExportAs(exportCtx, opts.Export)
			cancel()
			switch {
			case errors.Is(err, domain.ErrExportUnavailable):
			case err != nil:
				app.Logger.Error("Export failed", "err", err)
			default:
				printSystemMessage(out, "Exported '%s'.", d.Name)
			}
		}
	}
}
