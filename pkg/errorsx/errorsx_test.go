package errorsx

import "testing"

func TestWrapAndReason(t *testing.T) {
	err := Wrap(assertErr{}, ReasonOracleCall)
	if Reason(err) != ReasonOracleCall {
		t.Fatalf("expected reason %s, got %s", ReasonOracleCall, Reason(err))
	}
	if !HasReason(err, ReasonOracleCall) {
		t.Fatalf("expected HasReason true")
	}
}

func TestWrapPreservesExistingReason(t *testing.T) {
	first := Wrap(assertErr{}, ReasonCameraCapture)
	second := Wrap(first, ReasonOracleCall)
	if Reason(second) != ReasonCameraCapture {
		t.Fatalf("expected reason preserved, got %s", Reason(second))
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
