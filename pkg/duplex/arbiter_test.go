package duplex

import (
	"context"
	"testing"
	"time"

	"github.com/harunnryd/remy/pkg/providers/mock"
)

func TestSpeakSerializesAndHoldsPause(t *testing.T) {
	sink := &mock.Sink{Delay: 30 * time.Millisecond}
	source := &mock.Source{}
	source.Push("should stay hidden while speaking")

	a := New(sink, source, WithPollInterval(5*time.Millisecond))
	a.Speak("a", "b", "c")

	if !a.IsPlaying() {
		t.Fatalf("expected IsPlaying true right after enqueue")
	}

	// The source must report not-ready for the whole burst, not per utterance.
	deadline := time.Now().Add(2 * time.Second)
	for a.IsPlaying() {
		if source.HasInput() && a.IsPlaying() {
			t.Fatalf("source reported input while speaking")
		}
		if time.Now().After(deadline) {
			t.Fatalf("speech never drained")
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	played := sink.Played()
	if len(played) != 3 || played[0] != "a" || played[1] != "b" || played[2] != "c" {
		t.Fatalf("expected FIFO playback [a b c], got %v", played)
	}
	if source.PauseCount() != 1 {
		t.Fatalf("expected one pause for the burst, got %d", source.PauseCount())
	}
	if source.ResumeCount() != 1 {
		t.Fatalf("expected one resume after drain, got %d", source.ResumeCount())
	}
	if source.Paused() {
		t.Fatalf("source left paused after drain")
	}
}

func TestListenCoalescesBufferedFragments(t *testing.T) {
	source := &mock.Source{}
	source.Push("add")
	source.Push("more salt")

	a := New(&mock.Sink{}, source, WithPollInterval(5*time.Millisecond))
	defer a.Close()

	got := a.Listen(context.Background(), 100*time.Millisecond)
	if got != "add more salt" {
		t.Fatalf("expected coalesced input, got %q", got)
	}
}

func TestListenTimesOutEmpty(t *testing.T) {
	a := New(&mock.Sink{}, &mock.Source{}, WithPollInterval(5*time.Millisecond))
	defer a.Close()

	start := time.Now()
	if got := a.Listen(context.Background(), 30*time.Millisecond); got != "" {
		t.Fatalf("expected empty on timeout, got %q", got)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatalf("listen returned before timeout")
	}
}

func TestDegradedWithoutDevices(t *testing.T) {
	a := New(nil, nil, WithPollInterval(5*time.Millisecond))
	a.Speak("into the void")
	if got := a.Listen(context.Background(), 10*time.Millisecond); got != "" {
		t.Fatalf("expected silence from nil source, got %q", got)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestCloseDrainsQueuedUtterancesAndRejectsNew(t *testing.T) {
	sink := &mock.Sink{Delay: 10 * time.Millisecond}
	a := New(sink, &mock.Source{})

	a.Speak("first", "second")
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := sink.Played(); len(got) != 2 {
		t.Fatalf("queued utterances lost on shutdown: %v", got)
	}

	a.Speak("late")
	time.Sleep(20 * time.Millisecond)
	if got := sink.Played(); len(got) != 2 {
		t.Fatalf("utterance accepted after shutdown: %v", got)
	}
}
