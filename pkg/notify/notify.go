// Package notify delivers out-of-band alerts when a cooking timer expires.
// Delivery is best effort; the orchestration loop never blocks on it.
package notify

// Notifier receives the names of timers that just expired.
type Notifier interface {
	TimerExpired(names []string) error
}

// Noop discards notifications. Used when no notify provider is configured.
type Noop struct{}

func (Noop) TimerExpired([]string) error { return nil }
