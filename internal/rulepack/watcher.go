package rulepack

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is used when the watcher is created with no debounce.
const DefaultWatchDebounce = 500 * time.Millisecond

// Reloader is the part of Store the watcher drives.
type Reloader interface {
	Reload(ctx context.Context, trigger string) (*Snapshot, error)
}

// Watcher reloads the rulepack when its file changes. The parent directory
// is watched rather than the file itself so that editors which save by
// rename-and-replace are still picked up. Bursts of events within the
// debounce window collapse into one reload.
type Watcher struct {
	path     string
	name     string
	reloader Reloader
	debounce time.Duration
	watcher  *fsnotify.Watcher

	changes  chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the rulepack at path.
func NewWatcher(path string, reloader Reloader, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:     abs,
		name:     filepath.Base(abs),
		reloader: reloader,
		debounce: debounce,
		watcher:  fw,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. Both goroutines exit when ctx is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	slog.Info("watching rulepack for changes", "path", w.path, "debounce", w.debounce.String())
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != w.name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			// A pending signal already covers this event.
			select {
			case w.changes <- struct{}{}:
			default:
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("rulepack watcher error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	stop := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-w.done:
			stop()
			return
		case <-w.changes:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			// Failures are logged and counted by the store.
			_, _ = w.reloader.Reload(ctx, TriggerWatch)
		}
	}
}
