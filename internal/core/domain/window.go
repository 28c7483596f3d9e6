// Package domain holds the core entities of the trust engine.
package domain

import "time"

// TimeWindow is a sliding log of event timestamps bounded by a horizon and,
// optionally, by a capacity. Entries older than the horizon are evicted
// lazily whenever the window is written or counted.
type TimeWindow struct {
	horizon  time.Duration
	capacity int
	stamps   []time.Time
}

// NewTimeWindow builds a window. A capacity <= 0 leaves the log unbounded in size.
func NewTimeWindow(horizon time.Duration, capacity int) TimeWindow {
	return TimeWindow{horizon: horizon, capacity: capacity}
}

// Record appends now and evicts stale entries. When the window is full the
// oldest entry is dropped.
func (w *TimeWindow) Record(now time.Time) {
	w.stamps = append(w.stamps, now)
	w.evict(now)
	if w.capacity > 0 && len(w.stamps) > w.capacity {
		excess := len(w.stamps) - w.capacity
		n := copy(w.stamps, w.stamps[excess:])
		w.stamps = w.stamps[:n]
	}
}

// Count evicts stale entries and returns how many remain.
func (w *TimeWindow) Count(now time.Time) int {
	w.evict(now)
	return len(w.stamps)
}

func (w *TimeWindow) Horizon() time.Duration {
	return w.horizon
}

// Clone returns a deep copy so callers can count without touching the original.
func (w *TimeWindow) Clone() TimeWindow {
	clone := *w
	if w.stamps != nil {
		clone.stamps = make([]time.Time, len(w.stamps))
		copy(clone.stamps, w.stamps)
	}
	return clone
}

// evict drops every entry t with now - t > horizon, compacting in place.
func (w *TimeWindow) evict(now time.Time) {
	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if now.Sub(ts) <= w.horizon {
			kept = append(kept, ts)
		}
	}
	for i := len(kept); i < len(w.stamps); i++ {
		w.stamps[i] = time.Time{}
	}
	w.stamps = kept
}
