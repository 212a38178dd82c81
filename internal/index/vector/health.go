package vector

import "sync"

type Health int

const (
	Healthy Health = iota
	Degraded
	Down
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

const (
	degradedAfter = 3
	downAfter     = 10
)

// HealthTracker counts consecutive backend failures. Three in a row mark
// the backend degraded, ten mark it down; any success resets to healthy.
type HealthTracker struct {
	mu       sync.Mutex
	failures int
	state    Health
	onChange func(from, to Health)
}

func NewHealthTracker(onChange func(from, to Health)) *HealthTracker {
	return &HealthTracker{onChange: onChange}
}

func (t *HealthTracker) State() Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *HealthTracker) Failure() Health {
	t.mu.Lock()
	t.failures++
	next := t.state
	switch {
	case t.failures >= downAfter:
		next = Down
	case t.failures >= degradedAfter:
		next = Degraded
	}
	t.transitionLocked(next)
	st := t.state
	t.mu.Unlock()
	return st
}

func (t *HealthTracker) Success() Health {
	t.mu.Lock()
	t.failures = 0
	t.transitionLocked(Healthy)
	st := t.state
	t.mu.Unlock()
	return st
}

func (t *HealthTracker) transitionLocked(next Health) {
	if next == t.state {
		return
	}
	from := t.state
	t.state = next
	if t.onChange != nil {
		// Callback runs under the lock; keep it cheap.
		t.onChange(from, next)
	}
}
