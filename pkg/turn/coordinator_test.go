package turn

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/remy/pkg/duplex"
	"github.com/harunnryd/remy/pkg/ledger"
	"github.com/harunnryd/remy/pkg/oracle"
	"github.com/harunnryd/remy/pkg/providers/mock"
	"github.com/harunnryd/remy/pkg/timers"
)

type harness struct {
	coord    *Coordinator
	oracle   *mock.Oracle
	sink     *mock.Sink
	source   *mock.Source
	camera   *mock.Camera
	notifier *mock.Notifier
	registry *timers.Registry
	led      *ledger.Ledger
	audio    *duplex.Arbiter
}

func newHarness(t *testing.T, initial string, script ...oracle.Decision) *harness {
	t.Helper()
	table, err := NewTable(cookingStates())
	if err != nil {
		t.Fatalf("table: %v", err)
	}

	h := &harness{
		oracle:   mock.NewOracle(script...),
		sink:     &mock.Sink{},
		source:   &mock.Source{},
		camera:   &mock.Camera{Frame: []byte{0xD8}},
		notifier: &mock.Notifier{},
		registry: timers.NewRegistry(),
		led:      ledger.New(ledger.Options{}),
	}
	h.audio = duplex.New(h.sink, h.source, duplex.WithPollInterval(time.Millisecond))
	t.Cleanup(func() { _ = h.audio.Close() })

	h.coord, err = NewCoordinator(CoordinatorConfig{
		InitialState:    initial,
		MonitoringState: "MONITORING",
		ListenTimeout:   10 * time.Millisecond,
		ReactivePoll:    10 * time.Millisecond,
		IdleDelay:       time.Millisecond,
	}, CoordinatorDeps{
		Table:    table,
		Ledger:   h.led,
		Timers:   h.registry,
		Audio:    h.audio,
		Camera:   h.camera,
		Oracle:   h.oracle,
		Notifier: h.notifier,
	})
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	return h
}

func (h *harness) cycle(t *testing.T) bool {
	t.Helper()
	done, err := h.coord.Cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	return done
}

func waitPlayed(t *testing.T, sink *mock.Sink, want int) []string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		got := sink.Played()
		if len(got) >= want {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d utterances, got %v", want, got)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestStartupQuiescence(t *testing.T) {
	h := newHarness(t, "START")

	for i := 0; i < 3; i++ {
		if done := h.cycle(t); done {
			t.Fatalf("quiescent cycle reported done")
		}
	}
	if h.oracle.Calls() != 0 {
		t.Fatalf("oracle consulted with no input: %d calls", h.oracle.Calls())
	}
	if h.led.Len() != 0 {
		t.Fatalf("ledger grew during quiescence: %d", h.led.Len())
	}
}

func TestFirstVoiceInputTriggersOneCallAndValidTransition(t *testing.T) {
	h := newHarness(t, "START", oracle.Decision{
		Speech:    "Show me your ingredients.",
		Status:    oracle.StatusInteraction,
		NextState: "INGREDIENT_SCAN",
	})

	h.source.Push("hello chef")
	if done := h.cycle(t); done {
		t.Fatalf("unexpected done")
	}
	if h.oracle.Calls() != 1 {
		t.Fatalf("expected exactly one oracle call, got %d", h.oracle.Calls())
	}
	if h.coord.State() != "INGREDIENT_SCAN" {
		t.Fatalf("expected INGREDIENT_SCAN, got %s", h.coord.State())
	}
	waitPlayed(t, h.sink, 1)

	// START does not require an image, so none was captured.
	if h.camera.Captures() != 0 {
		t.Fatalf("camera used in a non-image state: %d", h.camera.Captures())
	}
	// The user turn carries the voice text inside the structured context.
	msgs := h.oracle.Requests()[0].Messages
	content, _ := msgs[len(msgs)-1]["content"].(string)
	if !strings.Contains(content, "hello chef") {
		t.Fatalf("voice text missing from turn context: %s", content)
	}
}

func TestReactiveImageStateCapturesWithVoice(t *testing.T) {
	h := newHarness(t, "INGREDIENT_SCAN", oracle.Decision{
		Speech:    "I can see tomatoes and basil.",
		Status:    oracle.StatusInteraction,
		NextState: "RECIPE_CONFIRMATION",
	})

	h.source.Push("what can you make")
	h.cycle(t)

	if h.camera.Captures() != 1 {
		t.Fatalf("expected one capture, got %d", h.camera.Captures())
	}
	if h.coord.State() != "RECIPE_CONFIRMATION" {
		t.Fatalf("expected RECIPE_CONFIRMATION, got %s", h.coord.State())
	}
}

func TestInvalidTransitionIgnored(t *testing.T) {
	h := newHarness(t, "START", oracle.Decision{
		Speech:    "Jumping ahead!",
		Status:    oracle.StatusInteraction,
		NextState: "FINISHED", // not in START's successor set
	})

	h.source.Push("skip to the end")
	if done := h.cycle(t); done {
		t.Fatalf("invalid transition must not finish the session")
	}
	if h.coord.State() != "START" {
		t.Fatalf("state changed on invalid transition: %s", h.coord.State())
	}
}

func TestOracleFailureAbandonsCycle(t *testing.T) {
	h := newHarness(t, "RECIPE_CONFIRMATION")
	h.oracle.Err = context.DeadlineExceeded

	h.source.Push("sounds good")
	if done := h.cycle(t); done {
		t.Fatalf("failed cycle reported done")
	}
	if h.coord.State() != "RECIPE_CONFIRMATION" {
		t.Fatalf("state mutated on oracle failure")
	}
	if h.led.Len() != 0 {
		t.Fatalf("ledger mutated on oracle failure: %d entries", h.led.Len())
	}
}

func TestMonitoringCapturesSilently(t *testing.T) {
	h := newHarness(t, "MONITORING",
		oracle.Decision{Status: oracle.StatusNoChange, NextState: "MONITORING"},
		oracle.Decision{Status: oracle.StatusNoChange, NextState: "MONITORING"},
		oracle.Decision{Status: oracle.StatusNoChange, NextState: "MONITORING"},
	)

	for i := 0; i < 3; i++ {
		h.cycle(t)
	}
	if h.oracle.Calls() != 3 {
		t.Fatalf("expected 3 oracle calls, got %d", h.oracle.Calls())
	}
	if h.camera.Captures() != 3 {
		t.Fatalf("expected a fresh capture per cycle, got %d", h.camera.Captures())
	}
	// Silent no-change turns collapse to one counted pair.
	if h.led.Len() != 2 {
		t.Fatalf("expected merged ledger of 2 entries, got %d", h.led.Len())
	}
	entries := h.led.Entries()
	if entries[1].MonitorCount != 3 {
		t.Fatalf("expected count 3, got %d", entries[1].MonitorCount)
	}
	if got := h.sink.Played(); len(got) != 0 {
		t.Fatalf("silent monitoring must not speak: %v", got)
	}
}

func TestTimerArmAndExpiry(t *testing.T) {
	h := newHarness(t, "MONITORING",
		oracle.Decision{Status: oracle.StatusUpdate, NextState: "MONITORING", TimerName: "pasta", TimerSeconds: 600},
		oracle.Decision{Status: oracle.StatusUpdate, NextState: "COOKING_INSTRUCTION", Speech: "The pasta timer is done."},
	)

	h.source.Push("set a timer for the pasta")
	h.cycle(t)
	if h.registry.Pending() != 1 {
		t.Fatalf("timer not armed")
	}
	// A system notice about the armed timer lands in the ledger.
	foundNotice := false
	for _, e := range h.led.Entries() {
		if strings.Contains(e.Text, "timer \"pasta\" armed") {
			foundNotice = true
		}
	}
	if !foundNotice {
		t.Fatalf("armed-timer notice missing from ledger")
	}

	// Force expiry and run the next monitoring cycle.
	h.registry.Arm("sauce", -time.Second)
	h.cycle(t)

	batches := h.notifier.Batches()
	if len(batches) != 1 || batches[0][0] != "sauce" {
		t.Fatalf("expected sauce notification, got %v", batches)
	}
	// A timer pre-empts the proactive capture.
	if h.camera.Captures() != 1 {
		t.Fatalf("expected capture skipped on timer cycle, got %d", h.camera.Captures())
	}
	reqs := h.oracle.Requests()
	last := reqs[len(reqs)-1].Messages
	blocks, ok := last[len(last)-1]["content"].(string)
	if !ok || !strings.Contains(blocks, "timer expired: sauce") {
		t.Fatalf("expiry notification missing from turn context: %v", last[len(last)-1])
	}
	if h.coord.State() != "COOKING_INSTRUCTION" {
		t.Fatalf("expected COOKING_INSTRUCTION, got %s", h.coord.State())
	}
}

func TestTerminalStateFinishesAndReleasesCamera(t *testing.T) {
	h := newHarness(t, "MONITORING", oracle.Decision{
		Speech:    "Everything is done, enjoy your meal!",
		Status:    oracle.StatusUpdate,
		NextState: "FINISHED",
	})

	done := h.cycle(t)
	if !done {
		t.Fatalf("expected done on terminal transition")
	}
	if h.coord.State() != "FINISHED" {
		t.Fatalf("expected FINISHED, got %s", h.coord.State())
	}
	if !h.camera.Closed() {
		t.Fatalf("image source not released")
	}
	played := h.sink.Played()
	if len(played) != 1 || !strings.Contains(played[0], "enjoy") {
		t.Fatalf("closing utterance not played: %v", played)
	}
	if h.audio.IsPlaying() {
		t.Fatalf("loop ended before speech drained")
	}
}
