package observers

import (
	"log/slog"
	"sync"

	"github.com/harunnryd/remy/pkg/metrics"
)

// SessionStatsObserver aggregates the session's event stream into counters
// and oracle latency figures, and logs a single summary line on Close.
type SessionStatsObserver struct {
	mu  sync.Mutex
	log *slog.Logger

	cycles      int64
	oracleCalls int64
	oracleErrs  int64
	merges      int64
	prunes      int64
	transitions int64
	timers      int64

	latencySumMS float64
	latencyMaxMS float64
}

func NewSessionStatsObserver(log *slog.Logger) *SessionStatsObserver {
	if log == nil {
		log = slog.Default()
	}
	return &SessionStatsObserver{log: log}
}

func (o *SessionStatsObserver) RecordEvent(ev metrics.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch ev.Name {
	case metrics.EventCycle:
		o.cycles++
	case metrics.EventOracleLatency:
		o.oracleCalls++
		o.latencySumMS += ev.Value
		if ev.Value > o.latencyMaxMS {
			o.latencyMaxMS = ev.Value
		}
	case metrics.EventOracleError:
		o.oracleErrs++
	case metrics.EventLedgerMerge:
		o.merges++
	case metrics.EventLedgerPrune:
		o.prunes++
	case metrics.EventTransition:
		o.transitions++
	case metrics.EventTimerExpired:
		o.timers++
	}
}

// Close logs the session summary. Safe to call once at drain time.
func (o *SessionStatsObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	avg := 0.0
	if o.oracleCalls > 0 {
		avg = o.latencySumMS / float64(o.oracleCalls)
	}
	o.log.Info("session_stats",
		"cycles", o.cycles,
		"oracle_calls", o.oracleCalls,
		"oracle_errors", o.oracleErrs,
		"oracle_latency_avg_ms", avg,
		"oracle_latency_max_ms", o.latencyMaxMS,
		"ledger_merges", o.merges,
		"ledger_prunes", o.prunes,
		"transitions", o.transitions,
		"timers_expired", o.timers,
	)
	return nil
}
