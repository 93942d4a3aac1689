// Package watcher reports changes to the catalog file so long-running
// processes can drop and rebuild their warm recall index.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces the burst of events a single catalog write produces.
const DefaultDebounce = 250 * time.Millisecond

// SQLite writes touch the sidecar files as well as the main database.
var sidecarSuffixes = []string{"", "-wal", "-journal"}

// Watcher monitors a catalog file and calls onChange once per burst of
// writes, creations, renames or removals. It watches the parent directory
// since fsnotify cannot watch a file that does not exist yet.
type Watcher struct {
	fsw      *fsnotify.Watcher
	onChange func()
	targets  map[string]bool
	catalog  string
	dir      string
	debounce time.Duration

	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	stopErr   error
}

// New creates a Watcher for targetPath. A non-positive debounce selects
// DefaultDebounce.
func New(targetPath string, debounce time.Duration, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	catalog := filepath.Clean(targetPath)
	targets := make(map[string]bool, len(sidecarSuffixes))
	for _, suffix := range sidecarSuffixes {
		targets[catalog+suffix] = true
	}

	return &Watcher{
		fsw:      fsw,
		onChange: onChange,
		targets:  targets,
		catalog:  catalog,
		dir:      filepath.Dir(catalog),
		debounce: debounce,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching on a background goroutine. Calling it again is a
// no-op. A missing catalog directory is logged, not returned.
func (w *Watcher) Start() error {
	w.startOnce.Do(func() {
		if err := w.watchDir(); err != nil {
			log.Warn().Err(err).Str("path", w.dir).Msg("Catalog directory not watchable yet")
		}
		go w.loop()
	})
	return nil
}

// Stop ends the watch and drops any pending notification. It is safe to
// call more than once, and without Start.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
		w.stopErr = w.fsw.Close()
	})
	return w.stopErr
}

func (w *Watcher) watchDir() error {
	if _, err := os.Stat(w.dir); err != nil {
		return err
	}
	return w.fsw.Add(w.dir)
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	return w.targets[filepath.Clean(event.Name)]
}

func (w *Watcher) loop() {
	// settle fires once the debounce window passes without new events.
	var settle <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			name := filepath.Clean(event.Name)
			if name == w.dir && event.Op.Has(fsnotify.Create) {
				log.Info().Str("path", w.dir).Msg("Catalog directory recreated, watching again")
				_ = w.watchDir()
				continue
			}
			if !w.relevant(event) {
				continue
			}
			log.Debug().Str("path", name).Str("op", event.Op.String()).Msg("Catalog changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			settle = timer.C

		case <-settle:
			settle = nil
			log.Info().Str("path", w.catalog).Msg("Catalog change settled")
			if w.onChange != nil {
				w.onChange()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Catalog watch error")
		}
	}
}
