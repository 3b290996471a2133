package mock

import (
	"strings"
	"sync"
	"time"
)

// Sink records played utterances. Delay simulates synthesis time so tests
// can observe the playing window.
type Sink struct {
	mu     sync.Mutex
	played []string

	Delay time.Duration
	Err   error
}

func (s *Sink) Play(text string) error {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	s.mu.Lock()
	s.played = append(s.played, text)
	s.mu.Unlock()
	return s.Err
}

func (s *Sink) Played() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.played))
	copy(out, s.played)
	return out
}

// Source buffers pushed text fragments and honors the pause flag: while
// paused it reports no input, matching the capture worker contract.
type Source struct {
	mu      sync.Mutex
	buf     []string
	paused  bool
	pauses  int
	resumes int
	closed  bool
}

// Push appends a recognized fragment, as the capture worker would.
func (s *Source) Push(text string) {
	s.mu.Lock()
	s.buf = append(s.buf, text)
	s.mu.Unlock()
}

func (s *Source) HasInput() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.paused && len(s.buf) > 0
}

func (s *Source) ReadInput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused || len(s.buf) == 0 {
		return ""
	}
	out := strings.Join(s.buf, " ")
	s.buf = nil
	return out
}

func (s *Source) Pause() {
	s.mu.Lock()
	if !s.paused {
		s.pauses++
	}
	s.paused = true
	s.mu.Unlock()
}

func (s *Source) Resume() {
	s.mu.Lock()
	if s.paused {
		s.resumes++
	}
	s.paused = false
	s.mu.Unlock()
}

func (s *Source) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *Source) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Source) PauseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauses
}

func (s *Source) ResumeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumes
}

// Camera returns a fixed frame per capture, or absence when Frame is nil.
type Camera struct {
	mu       sync.Mutex
	captures int
	closed   bool

	Frame []byte
	Err   error
}

func (c *Camera) Capture() ([]byte, error) {
	c.mu.Lock()
	c.captures++
	c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Frame == nil {
		return nil, nil
	}
	out := make([]byte, len(c.Frame))
	copy(out, c.Frame)
	return out, nil
}

func (c *Camera) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *Camera) Captures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captures
}

func (c *Camera) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Notifier records timer-expiry notifications.
type Notifier struct {
	mu      sync.Mutex
	batches [][]string

	Err error
}

func (n *Notifier) TimerExpired(names []string) error {
	n.mu.Lock()
	n.batches = append(n.batches, append([]string(nil), names...))
	n.mu.Unlock()
	return n.Err
}

func (n *Notifier) Batches() [][]string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([][]string, len(n.batches))
	copy(out, n.batches)
	return out
}
