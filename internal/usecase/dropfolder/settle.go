package dropfolder

import "time"

type settleTimer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// settled is one timer fire. gen tells a current fire from one that was
// already queued when the file changed again.
type settled struct {
	name string
	gen  uint64
}

type pendingFile struct {
	timer settleTimer
	gen   uint64
}

// settleTracker debounces file events. It is only used from the Run loop.
type settleTracker struct {
	settle    time.Duration
	afterFunc func(d time.Duration, f func()) settleTimer
	pending   map[string]pendingFile
	nextGen   uint64
}

func newSettleTracker(settle time.Duration) *settleTracker {
	return &settleTracker{
		settle: settle,
		afterFunc: func(d time.Duration, f func()) settleTimer {
			return time.AfterFunc(d, f)
		},
		pending: make(map[string]pendingFile),
	}
}

// touch (re)arms the timer for name. fire runs once the file has been quiet
// for the settle period.
func (t *settleTracker) touch(name string, fire func(settled)) {
	if p, ok := t.pending[name]; ok && p.timer.Stop() {
		p.timer.Reset(t.settle)
		return
	}
	// Either new, or the old timer already fired and its send is in flight.
	t.nextGen++
	current := settled{name: name, gen: t.nextGen}
	t.pending[name] = pendingFile{
		gen:   current.gen,
		timer: t.afterFunc(t.settle, func() { fire(current) }),
	}
}

// accept reports whether s is the latest fire for its file and forgets the file.
func (t *settleTracker) accept(s settled) bool {
	p, ok := t.pending[s.name]
	if !ok || p.gen != s.gen {
		return false
	}
	delete(t.pending, s.name)
	return true
}

func (t *settleTracker) stopAll() {
	for _, p := range t.pending {
		p.timer.Stop()
	}
}
