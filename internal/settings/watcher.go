package settings

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/The-Promised-Neverland/navlink/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// ChangeEvent reports that the settings file was written, replaced or removed.
type ChangeEvent struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

// Watcher watches the settings file. The parent directory is watched rather
// than the file itself so atomic replaces (rename over the old file) are seen.
type Watcher struct {
	path      string
	events    chan ChangeEvent
	errors    chan error
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	timerMu   sync.Mutex
	timer     *time.Timer
	lastOp    fsnotify.Op
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

func NewWatcher(path string, appCtx context.Context) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(appCtx)
	return &Watcher{
		path:      abs,
		events:    make(chan ChangeEvent, 16),
		errors:    make(chan error, 4),
		fsWatcher: fsWatcher,
		debounce:  defaultDebounce,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	logger.Log.Info("Settings watcher started", "path", w.path)
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop releases the fsnotify watcher and closes Events and Errors.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		w.fsWatcher.Close()
		w.wg.Wait()
		w.timerMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		close(w.events)
		close(w.errors)
		w.timerMu.Unlock()
		logger.Log.Info("Settings watcher stopped")
	})
}

func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				logger.Log.Error("Settings watcher error channel full, dropping error", "err", err)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	w.lastOp = event.Op
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

// fire holds timerMu while sending so Stop cannot close events underneath it.
func (w *Watcher) fire() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	w.timer = nil
	if w.ctx.Err() != nil {
		return
	}
	select {
	case w.events <- ChangeEvent{Path: w.path, Op: w.lastOp, Timestamp: time.Now()}:
	default:
		logger.Log.Warn("Settings events channel full, dropping event", "path", w.path)
	}
}
