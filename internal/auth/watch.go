package auth

import (
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads policy files when they change on disk, so an admin can
// edit the oplist or whitelist without restarting the server.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
	reload  map[string]func(path string)
}

// NewWatcher starts watching the given files. reload maps an absolute,
// cleaned path to the function invoked after that file is written.
func NewWatcher(reload map[string]func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher: fw,
		done:    make(chan struct{}),
		reload:  make(map[string]func(string), len(reload)),
	}
	for path, fn := range reload {
		abs, err := filepath.Abs(path)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.reload[abs] = fn
		// Watch the directory: editors replace files instead of writing
		// them in place, which drops a plain file watch.
		if err := fw.Add(filepath.Dir(abs)); err != nil {
			fw.Close()
			return nil, err
		}
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if fn, ok := w.reload[abs]; ok {
				log.Printf("Reloading %s", abs)
				fn(abs)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
