package identity

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"
)

// fileWorker reloads the identity file whenever it changes. It watches the
// parent directory so editors that replace the file atomically are seen.
type fileWorker struct {
	*worker.BaseWorker
	file    *File
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
}

func newFileWorker(f *File) *fileWorker {
	return &fileWorker{
		BaseWorker: worker.NewBaseWorker("identity-watcher"),
		file:       f,
	}
}

func (w *fileWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("identity watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.file.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.file.path, err)
	}
	w.watcher = watcher

	// Catch edits made between the initial load and the watch.
	if _, err := w.file.Reload(); err != nil {
		w.file.logger.Warn("identity reload failed", "error", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *fileWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *fileWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"path":              w.file.path,
		}
	})
}

func (w *fileWorker) run(ctx context.Context) (err error) {
	logger := w.file.logger
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("identity watcher panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("identity watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				logger.Error("identity watcher panic", "error", err)
			}
		}
	}()
	defer w.watcher.Close()

	target := filepath.Clean(w.file.path)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != target || event.Has(fsnotify.Chmod) {
				continue
			}
			if _, err := w.file.Reload(); err != nil {
				logger.Warn("identity reload failed", "error", err)
			}

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			logger.Error("fsnotify error", "error", wErr)
		}
	}
}
