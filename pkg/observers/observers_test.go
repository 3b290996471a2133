package observers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/remy/pkg/metrics"
)

func TestMultiObserverFansOut(t *testing.T) {
	a := metrics.NewMemoryObserver()
	b := metrics.NewMemoryObserver()
	multi := NewMultiObserver(a, nil, b)

	multi.RecordEvent(metrics.NewEvent(metrics.EventCycle, 1, nil))
	multi.RecordEvent(metrics.NewEvent(metrics.EventTransition, 1, nil))

	if len(a.Events) != 2 || len(b.Events) != 2 {
		t.Fatalf("expected both observers to see 2 events, got %d and %d", len(a.Events), len(b.Events))
	}
}

func TestSessionStatsAggregates(t *testing.T) {
	stats := NewSessionStatsObserver(nil)
	stats.RecordEvent(metrics.NewEvent(metrics.EventCycle, 1, nil))
	stats.RecordEvent(metrics.NewEvent(metrics.EventCycle, 1, nil))
	stats.RecordEvent(metrics.NewEvent(metrics.EventOracleLatency, 120, nil))
	stats.RecordEvent(metrics.NewEvent(metrics.EventOracleLatency, 80, nil))
	stats.RecordEvent(metrics.NewEvent(metrics.EventLedgerMerge, 1, nil))

	if stats.cycles != 2 {
		t.Fatalf("expected 2 cycles, got %d", stats.cycles)
	}
	if stats.oracleCalls != 2 || stats.latencyMaxMS != 120 {
		t.Fatalf("unexpected latency aggregation: calls=%d max=%v", stats.oracleCalls, stats.latencyMaxMS)
	}
	if stats.merges != 1 {
		t.Fatalf("expected 1 merge, got %d", stats.merges)
	}
	if err := stats.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPurgeArtifacts(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "session-old.json")
	fresh := filepath.Join(dir, "session-new.json")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("{}"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := PurgeArtifacts(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeArtifacts: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh artifact should survive: %v", err)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("old artifact should be gone")
	}
}
