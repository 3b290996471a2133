package metrics

import "time"

// Event names recorded by the orchestration loop.
const (
	EventCycle         = "turn.cycle"
	EventOracleLatency = "oracle.latency_ms"
	EventOracleError   = "oracle.error"
	EventLedgerMerge   = "ledger.merge"
	EventLedgerPrune   = "ledger.prune"
	EventTimerExpired  = "timer.expired"
	EventTransition    = "turn.transition"
)

type Event struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// NewEvent stamps an event with the current time.
func NewEvent(name string, value float64, tags map[string]string) Event {
	return Event{Name: name, Time: time.Now(), Value: value, Tags: tags}
}

type Observer interface {
	RecordEvent(ev Event)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(Event) {}
