package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 100 * time.Millisecond

// Watcher reloads the configuration file whenever it changes on disk.
type Watcher struct {
	path    string
	dataDir string
	watcher *fsnotify.Watcher
	onLoad  func(*Config, error)

	mu    sync.Mutex
	timer *time.Timer

	wg sync.WaitGroup
}

// Watch starts watching configPath. onLoad receives every reloaded
// configuration, or the error that prevented loading it. The directory is
// watched rather than the file so editors that replace the file on save
// are picked up. Watching stops when ctx is cancelled.
func Watch(ctx context.Context, configPath, dataDir string, onLoad func(*Config, error)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(configPath)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    filepath.Clean(configPath),
		dataDir: dataDir,
		watcher: fw,
		onLoad:  onLoad,
	}
	w.wg.Add(1)
	go w.run(ctx)
	return w, nil
}

// Wait blocks until the watcher stopped.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		_ = w.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.onLoad(nil, err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path, w.dataDir)
	w.onLoad(cfg, err)
}
