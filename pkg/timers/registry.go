// Package timers holds named cooking deadlines polled once per
// orchestration cycle.
package timers

import (
	"sync"
	"time"
)

type entry struct {
	name     string
	deadline time.Time
}

// Registry is a thread-safe set of armed deadlines. The orchestration loop
// drains expirations with PollExpired while decision application from the
// previous cycle may still be arming new ones.
type Registry struct {
	mu      sync.Mutex
	entries []entry
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{now: time.Now}
}

// Arm records a deadline now+duration. Duplicate names are kept as
// independent entries.
func (r *Registry) Arm(name string, duration time.Duration) {
	r.mu.Lock()
	r.entries = append(r.entries, entry{name: name, deadline: r.now().Add(duration)})
	r.mu.Unlock()
}

// PollExpired atomically removes and returns the names of all entries whose
// deadline has passed. A name is reported exactly once.
func (r *Registry) PollExpired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var expired []string
	kept := r.entries[:0]
	for _, e := range r.entries {
		if !e.deadline.After(now) {
			expired = append(expired, e.name)
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return expired
}

// Pending returns the number of armed, unexpired entries.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
