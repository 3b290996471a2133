// Package duplex arbitrates between the speaking and listening channels so
// the assistant never hears itself. One worker drains queued utterances in
// FIFO order; the audio source is paused for the whole span of a burst and
// resumed only after the queue drains.
package duplex

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/remy/pkg/logging"
	"github.com/harunnryd/remy/pkg/ports"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	queueCapacity       = 64
)

type Arbiter struct {
	sink   ports.AudioSink
	source ports.AudioSource

	queue   chan string
	pending atomic.Int64
	done    chan struct{}

	mu     sync.Mutex
	closed bool

	pollInterval time.Duration
	logger       *slog.Logger
}

type Option func(*Arbiter)

// WithPollInterval overrides the listen poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(a *Arbiter) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Arbiter) {
		a.logger = logging.NewComponentLogger(logger, "duplex")
	}
}

// New builds an arbiter and starts its drain worker. A nil sink degrades to
// no-op playback and a nil source to always-empty listen; both conditions are
// reported, not fatal.
func New(sink ports.AudioSink, source ports.AudioSource, opts ...Option) *Arbiter {
	a := &Arbiter{
		sink:         sink,
		source:       source,
		queue:        make(chan string, queueCapacity),
		done:         make(chan struct{}),
		pollInterval: defaultPollInterval,
		logger:       logging.NewComponentLogger(nil, "duplex"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if sink == nil {
		a.logger.Warn("audio sink unavailable, playback degraded to no-op")
	}
	if source == nil {
		a.logger.Warn("audio source unavailable, listen degraded to silence")
	}
	go a.drain()
	return a
}

// Speak enqueues one or more utterances and returns immediately. Utterances
// play strictly in FIFO order and never overlap. After Close, new utterances
// are rejected.
func (a *Arbiter) Speak(texts ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.logger.Warn("speak after shutdown dropped", slog.Int("utterances", len(texts)))
		return
	}
	for _, text := range texts {
		if text == "" {
			continue
		}
		a.pending.Add(1)
		select {
		case a.queue <- text:
		default:
			a.pending.Add(-1)
			a.logger.Warn("speak queue full, utterance dropped")
		}
	}
}

// IsPlaying reports true while an utterance is being played or the queue is
// non-empty.
func (a *Arbiter) IsPlaying() bool {
	return a.pending.Load() > 0
}

// Listen polls the source's input-ready signal until text is available or the
// timeout elapses, returning the empty string on timeout. A paused source
// reports not-ready, so Listen never returns the assistant's own speech.
func (a *Arbiter) Listen(ctx context.Context, timeout time.Duration) string {
	if a.source == nil {
		return ""
	}
	deadline := time.Now().Add(timeout)
	for {
		if a.source.HasInput() {
			return a.source.ReadInput()
		}
		if !time.Now().Before(deadline) {
			return ""
		}
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(a.pollInterval):
		}
	}
}

// WaitIdle blocks until all queued utterances have drained or the context is
// done. Callers use it to hold the loop open for a closing utterance.
func (a *Arbiter) WaitIdle(ctx context.Context) {
	for a.IsPlaying() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.pollInterval):
		}
	}
}

// Close stops accepting new utterances and waits for already-queued ones to
// finish. The worker exits through the closed queue, not a kill.
func (a *Arbiter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	<-a.done
	return nil
}

func (a *Arbiter) drain() {
	defer close(a.done)
	paused := false
	for text := range a.queue {
		if !paused && a.source != nil {
			a.source.Pause()
			paused = true
		}
		if a.sink != nil {
			if err := a.sink.Play(text); err != nil {
				a.logger.Error("playback failed", slog.String("error", err.Error()))
			}
		}
		// The source stays paused across back-to-back utterances; resume
		// only once the queue is empty.
		if a.pending.Add(-1) == 0 && paused && a.source != nil {
			a.source.Resume()
			paused = false
		}
	}
	if paused && a.source != nil {
		a.source.Resume()
	}
}
