package watch

import (
	"sort"
	"strings"
	"sync"
	"time"

	"sift/internal/model"
)

// Debouncer coalesces bursts of filesystem events into stable batches. Per
// path, events within the window collapse to the single most significant
// resulting event; create followed by remove cancels to nothing. A batch
// fires after a quiet window, or earlier when the oldest queued event hits
// MaxAge or the batch reaches MaxBatch, bounding latency under sustained
// bursts.
type Debouncer struct {
	delay     time.Duration
	maxAge    time.Duration
	maxBatch  int
	delayFunc func(count int) time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	queued map[string]model.EventKind
	oldest time.Time
	onFire func(events []model.FileEvent)
}

type DebounceOptions struct {
	Delay    time.Duration // quiet window; <= 0 uses 250ms
	MaxAge   time.Duration // oldest-event cap; <= 0 uses 2s
	MaxBatch int           // batch size cap; <= 0 uses 512
}

func NewDebouncer(opts DebounceOptions) *Debouncer {
	if opts.Delay <= 0 {
		opts.Delay = 250 * time.Millisecond
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 2 * time.Second
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 512
	}
	return &Debouncer{
		delay:    opts.Delay,
		maxAge:   opts.MaxAge,
		maxBatch: opts.MaxBatch,
		queued:   map[string]model.EventKind{},
	}
}

// SetDelayFunc scales the quiet window with queue depth.
func (d *Debouncer) SetDelayFunc(fn func(count int) time.Duration) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.delayFunc = fn
	d.mu.Unlock()
}

func (d *Debouncer) DelayFor(count int) time.Duration {
	if d == nil {
		return 0
	}
	if d.delayFunc == nil {
		return d.delay
	}
	delay := d.delayFunc(count)
	if delay <= 0 {
		return d.delay
	}
	return delay
}

func (d *Debouncer) OnFire(fn func(events []model.FileEvent)) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.onFire = fn
	d.mu.Unlock()
}

func (d *Debouncer) Push(ev model.FileEvent) {
	if d == nil {
		return
	}
	ev.Path = strings.TrimSpace(ev.Path)
	if ev.Path == "" {
		return
	}

	d.mu.Lock()
	if len(d.queued) == 0 {
		d.oldest = time.Now()
	}

	prev, had := d.queued[ev.Path]
	kind, keep := coalesce(prev, had, ev.Kind)
	if keep {
		d.queued[ev.Path] = kind
	} else {
		delete(d.queued, ev.Path)
	}

	overdue := len(d.queued) >= d.maxBatch || time.Since(d.oldest) >= d.maxAge
	delay := d.DelayFor(len(d.queued))
	if overdue {
		delay = 0
	}
	if d.timer != nil {
		_ = d.timer.Stop()
	}
	d.timer = time.AfterFunc(delay, d.fire)
	d.mu.Unlock()
}

// coalesce collapses two events on one path into the most significant
// resulting event. keep=false means the pair cancels out entirely.
func coalesce(prev model.EventKind, had bool, next model.EventKind) (model.EventKind, bool) {
	if !had {
		return next, true
	}
	switch {
	case prev == model.EventCreate && next == model.EventModify:
		return model.EventCreate, true
	case prev == model.EventCreate && (next == model.EventRemove || next == model.EventRename):
		return "", false
	case (prev == model.EventRemove || prev == model.EventRename) && next == model.EventCreate:
		return model.EventModify, true
	case next == model.EventRemove || next == model.EventRename:
		return next, true
	default:
		return prev, true
	}
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	queued := d.queued
	d.queued = map[string]model.EventKind{}
	fn := d.onFire
	d.mu.Unlock()

	if fn == nil || len(queued) == 0 {
		return
	}

	events := make([]model.FileEvent, 0, len(queued))
	for p, k := range queued {
		events = append(events, model.FileEvent{Path: p, Kind: k})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	fn(events)
}
