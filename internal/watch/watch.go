// Package watch turns file changes into structural mutation notifications.
//
// A FileWatcher observes a single file through its parent directory, so
// editors that save by rename-and-replace are still seen. Bursts of events
// are debounced into one notification.
package watch

import (
	"errors"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDelay is the debounce delay between the last file event and the notification.
const DefaultDelay = 50 * time.Millisecond

// ErrWatcherClosed is returned when subscribing to a closed watcher.
var ErrWatcherClosed = errors.New("watcher is closed")

// Reloadable is content that can be refreshed from its backing file.
type Reloadable interface {
	Reload() error
}

// Option configures a FileWatcher.
type Option func(*FileWatcher)

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(w *FileWatcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *FileWatcher) { w.log = l }
}

// WithReload reloads target before subscribers are notified. A failed
// reload is logged and suppresses the notification.
func WithReload(target Reloadable) Option {
	return func(w *FileWatcher) { w.reload = target }
}

// FileWatcher notifies subscribers when a file is written, created,
// removed or renamed.
type FileWatcher struct {
	path   string
	delay  time.Duration
	log    zerolog.Logger
	reload Reloadable

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	subs    map[int]func()
	nextID  int
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// Stats counts raw events, delivered notifications and errors.
type Stats struct {
	Events        int64
	Notifications int64
	ReloadErrors  int64
	WatchErrors   int64
}

// New starts watching path.
func New(path string, opts ...Option) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &FileWatcher{
		path:    abs,
		delay:   DefaultDelay,
		log:     zerolog.Nop(),
		fsw:     fsw,
		subs:    make(map[int]func()),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.processLoop()
	return w, nil
}

// Path returns the absolute path being watched.
func (w *FileWatcher) Path() string {
	return w.path
}

// ObserveMutations registers fn for change notifications. Subscribers run
// in registration order. It satisfies inview.MutationSource.
func (w *FileWatcher) ObserveMutations(fn func()) (func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrWatcherClosed
	}
	id := w.nextID
	w.nextID++
	w.subs[id] = fn

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}, nil
}

// Stats returns a snapshot of the counters.
func (w *FileWatcher) Stats() Stats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}

// Close stops watching.
func (w *FileWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsw.Close()
}

func (w *FileWatcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.count(func(s *Stats) { s.WatchErrors++ })
			w.log.Warn().Err(err).Str("path", w.path).Msg("File watch error")
		}
	}
}

func (w *FileWatcher) handleEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	w.count(func(s *Stats) { s.Events++ })

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	// A timer that already fired may be waiting on mu; bumping gen makes it
	// a no-op so each burst yields exactly one notification.
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.timer = time.AfterFunc(w.delay, func() { w.fire(gen) })
}

// fire runs after the debounce delay. Stale generations are ignored.
func (w *FileWatcher) fire(gen uint64) {
	w.mu.Lock()
	if w.closed || gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.gen++
	subs := make([]func(), 0, len(w.subs))
	for _, id := range slices.Sorted(maps.Keys(w.subs)) {
		subs = append(subs, w.subs[id])
	}
	w.mu.Unlock()

	if w.reload != nil {
		if err := w.reload.Reload(); err != nil {
			w.count(func(s *Stats) { s.ReloadErrors++ })
			w.log.Warn().Err(err).Str("path", w.path).Msg("Reload failed")
			return
		}
	}

	w.count(func(s *Stats) { s.Notifications++ })
	w.log.Debug().Str("path", w.path).Int("subscribers", len(subs)).Msg("File changed")
	for _, fn := range subs {
		fn()
	}
}

func (w *FileWatcher) count(fn func(*Stats)) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	fn(&w.stats)
}
