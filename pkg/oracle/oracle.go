// Package oracle defines the decision-oracle port. The oracle receives the
// conversation so far plus the current turn context and returns a structured
// decision: what to say, a status tag, the next FSM state, and an optional
// timer request. Transport and prompting are adapter concerns under
// pkg/providers.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Status tags a decision. The set is closed; undecodable statuses are a
// protocol violation at parse time, not at use sites.
type Status int

const (
	// StatusNoChange marks passive monitoring with nothing new to report.
	StatusNoChange Status = iota
	// StatusUpdate marks a progress update the assistant initiated.
	StatusUpdate
	// StatusInteraction marks a reply to explicit user input.
	StatusInteraction
)

func (s Status) String() string {
	switch s {
	case StatusNoChange:
		return "no_change"
	case StatusUpdate:
		return "update"
	case StatusInteraction:
		return "interaction"
	default:
		return "unknown"
	}
}

// ParseStatus maps a wire status to a Status, rejecting anything outside the
// closed set.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "no_change":
		return StatusNoChange, nil
	case "update":
		return StatusUpdate, nil
	case "interaction":
		return StatusInteraction, nil
	default:
		return StatusNoChange, fmt.Errorf("unknown decision status %q", raw)
	}
}

// Decision is the decoded oracle response for one turn. It is transient:
// the coordinator applies it within the cycle that produced it and retains
// it only as a snapshot inside the corresponding ledger entry.
type Decision struct {
	Speech       string
	Status       Status
	NextState    string
	TimerName    string
	TimerSeconds int
}

type decisionWire struct {
	Speech       string `json:"speech_output"`
	Status       string `json:"status"`
	NextState    string `json:"next_state"`
	TimerName    string `json:"timer_name,omitempty"`
	TimerSeconds int    `json:"timer_duration_s,omitempty"`
}

// ParseDecision decodes the oracle's JSON response. A missing next_state or
// a status outside the closed set is a malformed response.
func ParseDecision(raw []byte) (Decision, error) {
	var wire decisionWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Decision{}, fmt.Errorf("decode decision: %w", err)
	}
	status, err := ParseStatus(wire.Status)
	if err != nil {
		return Decision{}, err
	}
	if strings.TrimSpace(wire.NextState) == "" {
		return Decision{}, fmt.Errorf("decision missing next_state")
	}
	return Decision{
		Speech:       wire.Speech,
		Status:       status,
		NextState:    wire.NextState,
		TimerName:    wire.TimerName,
		TimerSeconds: wire.TimerSeconds,
	}, nil
}

// EncodeJSON renders the decision back to its wire form. Used when replaying
// assistant turns into oracle context.
func (d Decision) EncodeJSON() string {
	wire := decisionWire{
		Speech:       d.Speech,
		Status:       d.Status.String(),
		NextState:    d.NextState,
		TimerName:    d.TimerName,
		TimerSeconds: d.TimerSeconds,
	}
	b, err := json.Marshal(wire)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Request carries the full conversational context for one turn, rendered as
// provider-neutral chat messages (see ledger.Messages).
type Request struct {
	Messages []map[string]any
}

// Oracle is the decision port. Decide either returns a well-formed decision
// or an error; the caller treats failures as a retried cycle, never as a
// partial decision.
type Oracle interface {
	Decide(ctx context.Context, req Request) (Decision, error)
	Name() string
}
