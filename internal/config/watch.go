package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "giftboard/pkg/logx"
)

// Watcher re-reads the config file on change and hands the parsed result to
// a callback. Only hot-applicable sections (currently logging) should be
// acted on by the callback; everything else requires a restart and is ignored.
//
// A broken or invalid file never reaches the callback: the last good config
// stays in effect.
type Watcher struct {
	path     string
	log      logx.Logger
	onReload func(*Config)

	mu    sync.Mutex
	timer *time.Timer
}

func NewWatcher(path string, log logx.Logger, onReload func(*Config)) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{path: path, log: log, onReload: onReload}
}

// Run watches until ctx is cancelled. Watcher failures are retried with a
// fixed delay; losing hot-reload is not worth failing the process over.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fw, err := fsnotify.NewWatcher()
		if err == nil {
			err = fw.Add(dir)
			if err != nil {
				_ = fw.Close()
			}
		}
		if err != nil {
			w.log.Warn("config watch unavailable", logx.Err(err), logx.String("dir", dir))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				continue
			}
		}

		w.log.Debug("config watcher started", logx.String("path", w.path))
		w.watchEvents(ctx, fw, file)
		_ = fw.Close()
	}
}

func (w *Watcher) watchEvents(ctx context.Context, fw *fsnotify.Watcher, file string) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			// Editors write via rename/replace as often as in-place writes.
			if strings.EqualFold(filepath.Base(ev.Name), file) &&
				ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.scheduleReload()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.log.Warn("config watch error", logx.Err(err))
			}
		}
	}
}

// scheduleReload debounces bursts of write events so partial writes are not
// parsed.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(250*time.Millisecond, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("config reload rejected", logx.Err(err))
		return
	}
	if _, err := Resolve(cfg); err != nil {
		w.log.Warn("config reload rejected", logx.Err(err))
		return
	}
	w.log.Info("config reloaded", logx.String("path", w.path))
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
