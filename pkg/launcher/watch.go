package launcher

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// stateWatcher signals when the state file is created or replaced. It watches
// the parent directory because the server writes through a temp file + rename.
type stateWatcher struct {
	w       *fsnotify.Watcher
	name    string
	changed chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newStateWatcher(path string) (*stateWatcher, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	sw := &stateWatcher{
		w:       w,
		name:    filepath.Base(path),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go sw.loop()
	return sw, nil
}

// Changed delivers at most one pending notification; bursts coalesce.
func (sw *stateWatcher) Changed() <-chan struct{} { return sw.changed }

func (sw *stateWatcher) Close() error {
	var err error
	sw.once.Do(func() {
		close(sw.done)
		err = sw.w.Close()
	})
	return err
}

func (sw *stateWatcher) loop() {
	for {
		select {
		case ev, ok := <-sw.w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != sw.name {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				select {
				case sw.changed <- struct{}{}:
				default:
				}
			}
		case _, ok := <-sw.w.Errors:
			if !ok {
				return
			}
		case <-sw.done:
			return
		}
	}
}
