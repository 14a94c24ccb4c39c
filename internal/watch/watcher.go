// Package watch re-runs the batch when the input directory changes.
package watch

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 500 * time.Millisecond

// StopFile is the name of a file whose creation in the watched directory
// ends the watch loop.
const StopFile = "STOP"

// Change is one debounced batch of modified inputs.
type Change struct {
	// Files are the absolute paths touched since the previous batch, sorted.
	Files []string
	// Removed reports whether any of them was deleted or renamed away.
	Removed bool
}

// Watcher monitors an input directory, plus optional extra files such as
// the catalog, using fsnotify.
type Watcher struct {
	Dir     string
	Changes <-chan Change   // Read-only external channel
	Stopped <-chan struct{} // Closed when a STOP file appears

	changes  chan Change
	stopped  chan struct{}
	stopOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
	debounce time.Duration
	extra    map[string]bool
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for dir. A non-positive debounce uses
// DefaultDebounce. extra files are watched alongside the CSV inputs.
func NewWatcher(dir string, debounce time.Duration, extra ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ch := make(chan Change, 4)
	stopped := make(chan struct{})
	w := &Watcher{
		Dir:      dir,
		Changes:  ch,
		Stopped:  stopped,
		changes:  ch,
		stopped:  stopped,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		debounce: debounce,
		extra:    make(map[string]bool, len(extra)),
		watcher:  fw,
	}
	for _, f := range extra {
		if f == "" {
			continue
		}
		if abs, err := filepath.Abs(f); err == nil {
			w.extra[abs] = true
		}
	}
	return w, nil
}

// Start begins watching the directory and the directories of the extra
// files.
func (w *Watcher) Start() error {
	dirs := map[string]bool{filepath.Clean(w.Dir): true}
	for f := range w.extra {
		dirs[filepath.Dir(f)] = true
	}
	for d := range dirs {
		if err := w.watcher.Add(d); err != nil {
			return err
		}
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels. Batches nobody has read by then
// are dropped.
func (w *Watcher) Stop() {
	close(w.quit)
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	var (
		pending = make(map[string]bool)
		removed bool
		last    time.Time
	)
	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		files := make([]string, 0, len(pending))
		for f := range pending {
			files = append(files, f)
		}
		sort.Strings(files)
		select {
		case w.changes <- Change{Files: files, Removed: removed}:
		case <-w.quit:
		}
		pending = make(map[string]bool)
		removed = false
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				flush()
				return
			}
			if filepath.Base(event.Name) == StopFile && event.Has(fsnotify.Create) {
				w.stopOnce.Do(func() { close(w.stopped) })
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = true
				removed = removed || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
				last = time.Now()
			}

		case <-ticker.C:
			if len(pending) > 0 && time.Since(last) >= w.debounce {
				flush()
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore watch errors; they're non-fatal.
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	if abs, err := filepath.Abs(name); err == nil && w.extra[abs] {
		return true
	}
	if filepath.Clean(filepath.Dir(name)) != filepath.Clean(w.Dir) {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// Run calls fn for every batch until ctx is cancelled or a STOP file
// appears. Batches arriving while fn runs are coalesced into the next call.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context, Change)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.Stopped:
			return nil
		case c, ok := <-w.Changes:
			if !ok {
				return nil
			}
			fn(ctx, coalesce(c, w.Changes))
		}
	}
}

func coalesce(c Change, more <-chan Change) Change {
	seen := make(map[string]bool, len(c.Files))
	for _, f := range c.Files {
		seen[f] = true
	}
	for {
		select {
		case next, ok := <-more:
			if !ok {
				return c
			}
			c.Removed = c.Removed || next.Removed
			for _, f := range next.Files {
				if !seen[f] {
					seen[f] = true
					c.Files = append(c.Files, f)
				}
			}
			sort.Strings(c.Files)
		default:
			return c
		}
	}
}
