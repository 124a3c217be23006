package registry

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// BinaryChange is a detected modification to a watched engine binary,
// surfaced so a long-running operator process can warn that a leased
// driver may now be running stale code.
type BinaryChange struct {
	EngineName string
	Path       string
}

// Watcher monitors every registered engine's binary path for changes,
// grounded on papapumpkin-quasar's internal/nebula.Watcher: one
// fsnotify.Watcher, a debounce window collapsing a rebuild's burst of
// writes into a single event, changes delivered on a buffered channel.
type Watcher struct {
	Changes <-chan BinaryChange

	changes chan BinaryChange
	done    chan struct{}
	watcher *fsnotify.Watcher
	byPath  map[string]string // path -> engine name
}

// NewWatcher builds a Watcher for every entry in reg.
func NewWatcher(reg *Registry) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ch := make(chan BinaryChange, 16)
	w := &Watcher{
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
		byPath:  make(map[string]string),
	}
	for _, name := range reg.Names() {
		entry, _ := reg.Lookup(name)
		w.byPath[entry.Path] = entry.Name
	}
	return w, nil
}

// Start begins watching every registered binary path.
func (w *Watcher) Start() error {
	for path := range w.byPath {
		if err := w.watcher.Add(path); err != nil {
			return err
		}
	}
	go w.loop()
	return nil
}

// Stop closes the underlying watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	const debounce = 200 * time.Millisecond
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				for path := range pending {
					w.emit(path)
				}
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending[event.Name] = time.Now()
			}
		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			now := time.Now()
			for path, t := range pending {
				if now.Sub(t) >= debounce {
					w.emit(path)
					delete(pending, path)
				}
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) emit(path string) {
	name, ok := w.byPath[path]
	if !ok {
		return
	}
	w.changes <- BinaryChange{EngineName: name, Path: path}
}
