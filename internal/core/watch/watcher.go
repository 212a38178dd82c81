package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"sift/internal/core/walk"
	"sift/internal/model"
)

// Watcher turns raw fsnotify events into debounced batches of FileEvents,
// filtered the same way the scanner filters. New directories are added to
// the watch set recursively.
type Watcher struct {
	rootAbs  string
	stateRel string

	filter    *walk.Filter
	debouncer *Debouncer
	debounce  time.Duration

	watcher   *fsnotify.Watcher
	closeOnce sync.Once
	closed    chan struct{}
}

type Options struct {
	// StateDir is the index state directory; events under it are ignored.
	StateDir string

	Debounce         time.Duration
	MaxBatchAge      time.Duration
	MaxBatch         int
	AdaptiveDebounce bool
	DebounceMin      time.Duration
	DebounceMax      time.Duration

	// OnBatch receives each stable batch. Required.
	OnBatch func(events []model.FileEvent)
}

func NewWatcher(root string, wopts Options, fopts walk.Options) (*Watcher, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	rootAbs = filepath.Clean(rootAbs)
	if strings.TrimSpace(rootAbs) == "" {
		return nil, fmt.Errorf("root is required")
	}
	if wopts.OnBatch == nil {
		return nil, fmt.Errorf("OnBatch is required")
	}

	stateRel := ""
	if s := strings.TrimSpace(wopts.StateDir); s != "" {
		abs := s
		if !filepath.IsAbs(abs) {
			if a, err := filepath.Abs(abs); err == nil {
				abs = a
			}
		}
		if rel, err := filepath.Rel(rootAbs, abs); err == nil {
			if rel != "." && !strings.HasPrefix(rel, "..") {
				stateRel = filepath.ToSlash(rel)
			}
		}
	}

	filter, err := walk.NewFilter(rootAbs, fopts)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := wopts.Debounce
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	minDelay := wopts.DebounceMin
	if minDelay <= 0 {
		minDelay = 50 * time.Millisecond
	}
	maxDelay := wopts.DebounceMax
	if maxDelay <= 0 {
		maxDelay = 500 * time.Millisecond
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	w := &Watcher{
		rootAbs:  rootAbs,
		stateRel: stateRel,
		filter:   filter,
		debouncer: NewDebouncer(DebounceOptions{
			Delay:    debounce,
			MaxAge:   wopts.MaxBatchAge,
			MaxBatch: wopts.MaxBatch,
		}),
		debounce: debounce,
		watcher:  fsw,
		closed:   make(chan struct{}),
	}
	if wopts.AdaptiveDebounce {
		w.debouncer.SetDelayFunc(func(count int) time.Duration {
			switch {
			case count <= 10:
				return minDelay
			case count <= 100:
				return minDelay * 2
			case count <= 500:
				return minDelay * 4
			default:
				return maxDelay
			}
		})
	}
	w.debouncer.OnFire(wopts.OnBatch)

	if err := w.addExistingDirs(); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return w, nil
}

func (w *Watcher) Debounce() time.Duration {
	if w == nil {
		return 0
	}
	return w.debounce
}

func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}

	w.closeOnce.Do(func() { close(w.closed) })

	if w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}

// Run is the long-lived event consumption loop. It suspends on the
// notification channel; the debouncer owns the timer.
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.watcher == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.closed:
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (w *Watcher) addExistingDirs() error {
	return filepath.WalkDir(w.rootAbs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p == w.rootAbs {
			return w.watcher.Add(p)
		}

		rel, err := filepath.Rel(w.rootAbs, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !w.filter.ShouldInclude(rel, true) {
			return filepath.SkipDir
		}

		return w.watcher.Add(p)
	})
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, ok := w.toRel(ev.Name)
	if !ok {
		return
	}
	if w.isStateRel(rel) {
		return
	}

	if ev.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			_ = w.addDirRecursive(ev.Name)
			return
		}
	}

	if !w.filter.ShouldInclude(rel, false) {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		w.debouncer.Push(model.FileEvent{Path: rel, Kind: model.EventCreate})
	case ev.Op&fsnotify.Write != 0:
		w.debouncer.Push(model.FileEvent{Path: rel, Kind: model.EventModify})
	case ev.Op&fsnotify.Remove != 0:
		w.debouncer.Push(model.FileEvent{Path: rel, Kind: model.EventRemove})
	case ev.Op&fsnotify.Rename != 0:
		w.debouncer.Push(model.FileEvent{Path: rel, Kind: model.EventRename})
	}
}

func (w *Watcher) toRel(abs string) (string, bool) {
	if strings.TrimSpace(abs) == "" {
		return "", false
	}

	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(w.rootAbs, abs)
	if err != nil {
		return "", false
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	return rel, true
}

func (w *Watcher) isStateRel(rel string) bool {
	if w.stateRel == "" {
		return false
	}
	return rel == w.stateRel || strings.HasPrefix(rel, w.stateRel+"/")
}

func (w *Watcher) addDirRecursive(absDir string) error {
	absDir = filepath.Clean(absDir)

	return filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		rel, ok := w.toRel(p)
		if !ok {
			return nil
		}
		if !w.filter.ShouldInclude(rel, true) {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}
