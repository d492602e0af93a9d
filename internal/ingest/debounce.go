package ingest

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of events per path. An event is emitted once the
// path has been quiet for the whole window; every new event restarts the wait.
type Debouncer struct {
	window time.Duration
	emit   func(Event)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	gen     map[string]uint64
	stopped bool
	wg      sync.WaitGroup
}

func NewDebouncer(window time.Duration, emit func(Event)) *Debouncer {
	return &Debouncer{
		window: window,
		emit:   emit,
		timers: map[string]*time.Timer{},
		gen:    map[string]uint64{},
	}
}

func (d *Debouncer) Trigger(ev Event) {
	if d.window <= 0 {
		d.emit(ev)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[ev.Path]; ok && t.Stop() {
		d.wg.Done()
	}
	d.gen[ev.Path]++
	g := d.gen[ev.Path]

	d.wg.Add(1)
	d.timers[ev.Path] = time.AfterFunc(d.window, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.stopped || d.gen[ev.Path] != g {
			d.mu.Unlock()
			return
		}
		delete(d.timers, ev.Path)
		delete(d.gen, ev.Path)
		d.mu.Unlock()
		d.emit(ev)
	})
}

// Pending reports how many paths are waiting out their window.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop drops pending events and waits for in-flight emissions to return.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for p, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, p)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
