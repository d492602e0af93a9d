package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Dir         string        // watched non-recursively
	InitialScan bool          // emit PDFs already present at start
	Debounce    time.Duration // quiet window per path
}

// StartWatcher watches cfg.Dir and emits one debounced Event per burst of
// create/write/rename activity on a PDF. Both channels close when ctx ends.
func StartWatcher(ctx context.Context, cfg WatchConfig, log *slog.Logger) (<-chan Event, <-chan error, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Dir == "" {
		log.Error("watcher start failed: no directory provided")
		return nil, nil, errors.New("no watch directory provided")
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("failed to create watch directory", "dir", dir, "error", err)
		return nil, nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}
	if err := w.Add(dir); err != nil {
		log.Error("failed to watch directory", "dir", dir, "error", err)
		_ = w.Close()
		return nil, nil, err
	}

	evCh := make(chan Event, 256)
	errCh := make(chan error, 1)

	deb := NewDebouncer(cfg.Debounce, func(ev Event) {
		// rename events fire for the old name too; only emit paths that still exist
		if st, err := os.Stat(ev.Path); err != nil || st.IsDir() {
			log.Debug("watcher.skip.gone", "path", ev.Path)
			return
		}
		select {
		case evCh <- ev:
		case <-ctx.Done():
		}
	})

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				log.Warn("failed to close watcher", "error", err)
			}
		}()
		defer deb.Stop()

		if cfg.InitialScan {
			paths, err := ScanDirectory(dir)
			if err != nil {
				log.Error("initial scan failed", "dir", dir, "error", err)
			}
			log.Info("watcher.initial_scan", "dir", dir, "found", len(paths))
			for _, p := range paths {
				deb.Trigger(Event{Path: p, Kind: EventCreated, At: time.Now()})
			}
		}
		log.Info("watcher.started", "dir", dir, "debounce", cfg.Debounce)

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if !Candidate(e.Name) || !e.Op.Has(fsnotify.Create) && !e.Op.Has(fsnotify.Write) && !e.Op.Has(fsnotify.Rename) {
					continue
				}
				kind := EventModified
				if e.Op.Has(fsnotify.Create) {
					kind = EventCreated
				}
				log.Debug("watcher.event", "path", e.Name, "op", e.Op.String())
				deb.Trigger(Event{Path: e.Name, Kind: kind, At: time.Now()})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
