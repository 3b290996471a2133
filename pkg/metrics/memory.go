package metrics

import "sync"

type MemoryObserver struct {
	mu     sync.Mutex
	Events []Event
}

func NewMemoryObserver() *MemoryObserver {
	return &MemoryObserver{}
}

func (m *MemoryObserver) RecordEvent(ev Event) {
	m.mu.Lock()
	m.Events = append(m.Events, ev)
	m.mu.Unlock()
}
