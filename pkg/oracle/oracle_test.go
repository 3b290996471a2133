package oracle

import (
	"strings"
	"testing"
)

func TestParseDecision(t *testing.T) {
	raw := []byte(`{"speech_output":"Flip the pancake now.","status":"interaction","next_state":"COOKING","timer_name":"flip","timer_duration_s":90}`)
	dec, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if dec.Speech != "Flip the pancake now." {
		t.Fatalf("unexpected speech %q", dec.Speech)
	}
	if dec.Status != StatusInteraction {
		t.Fatalf("expected interaction status, got %s", dec.Status)
	}
	if dec.NextState != "COOKING" {
		t.Fatalf("unexpected next state %q", dec.NextState)
	}
	if dec.TimerName != "flip" || dec.TimerSeconds != 90 {
		t.Fatalf("unexpected timer %q/%d", dec.TimerName, dec.TimerSeconds)
	}
}

func TestParseDecisionRejectsUnknownStatus(t *testing.T) {
	_, err := ParseDecision([]byte(`{"speech_output":"","status":"pondering","next_state":"COOKING"}`))
	if err == nil || !strings.Contains(err.Error(), "unknown decision status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestParseDecisionRequiresNextState(t *testing.T) {
	_, err := ParseDecision([]byte(`{"speech_output":"done","status":"update","next_state":"  "}`))
	if err == nil || !strings.Contains(err.Error(), "next_state") {
		t.Fatalf("expected missing next_state error, got %v", err)
	}
}

func TestEncodeJSONRoundTrip(t *testing.T) {
	dec := Decision{
		Speech:       "Water is boiling.",
		Status:       StatusUpdate,
		NextState:    "MONITORING",
		TimerName:    "pasta",
		TimerSeconds: 480,
	}
	out, err := ParseDecision([]byte(dec.EncodeJSON()))
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if out != dec {
		t.Fatalf("round trip mismatch: %+v != %+v", out, dec)
	}
}

func TestEncodeJSONOmitsEmptyTimer(t *testing.T) {
	dec := Decision{Speech: "ok", Status: StatusNoChange, NextState: "MONITORING"}
	if s := dec.EncodeJSON(); strings.Contains(s, "timer_name") {
		t.Fatalf("expected timer fields omitted, got %s", s)
	}
}
