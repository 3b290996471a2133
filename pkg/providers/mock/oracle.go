package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/harunnryd/remy/pkg/oracle"
)

// Oracle replays a fixed script of decisions, one per Decide call, and
// records every request it receives.
type Oracle struct {
	mu       sync.Mutex
	script   []oracle.Decision
	next     int
	requests []oracle.Request

	// Err, when set, is returned instead of consuming the script.
	Err error
}

func NewOracle(decisions ...oracle.Decision) *Oracle {
	return &Oracle{script: decisions}
}

func (o *Oracle) Name() string { return "mock_oracle" }

func (o *Oracle) Decide(ctx context.Context, req oracle.Request) (oracle.Decision, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, req)
	if o.Err != nil {
		return oracle.Decision{}, o.Err
	}
	if o.next >= len(o.script) {
		return oracle.Decision{}, errors.New("mock oracle script exhausted")
	}
	dec := o.script[o.next]
	o.next++
	return dec, nil
}

// Calls returns how many Decide calls were made.
func (o *Oracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.requests)
}

// Requests returns a copy of the recorded requests.
func (o *Oracle) Requests() []oracle.Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]oracle.Request, len(o.requests))
	copy(out, o.requests)
	return out
}
