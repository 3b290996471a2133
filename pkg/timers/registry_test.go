package timers

import (
	"sort"
	"sync"
	"testing"
	"time"
)

func TestPollExpiredReportsOnce(t *testing.T) {
	base := time.Now()
	current := base
	r := NewRegistry()
	r.now = func() time.Time { return current }

	r.Arm("pasta", 10*time.Second)
	r.Arm("sauce", 30*time.Second)

	if got := r.PollExpired(); len(got) != 0 {
		t.Fatalf("expected no expirations, got %v", got)
	}

	current = base.Add(11 * time.Second)
	got := r.PollExpired()
	if len(got) != 1 || got[0] != "pasta" {
		t.Fatalf("expected [pasta], got %v", got)
	}
	if got := r.PollExpired(); len(got) != 0 {
		t.Fatalf("expired timer reported twice: %v", got)
	}

	current = base.Add(31 * time.Second)
	got = r.PollExpired()
	if len(got) != 1 || got[0] != "sauce" {
		t.Fatalf("expected [sauce], got %v", got)
	}
	if r.Pending() != 0 {
		t.Fatalf("expected empty registry, got %d pending", r.Pending())
	}
}

func TestDuplicateNamesAreIndependent(t *testing.T) {
	base := time.Now()
	current := base
	r := NewRegistry()
	r.now = func() time.Time { return current }

	r.Arm("eggs", 5*time.Second)
	r.Arm("eggs", 20*time.Second)

	current = base.Add(6 * time.Second)
	if got := r.PollExpired(); len(got) != 1 {
		t.Fatalf("expected one expiration, got %v", got)
	}
	current = base.Add(21 * time.Second)
	if got := r.PollExpired(); len(got) != 1 || got[0] != "eggs" {
		t.Fatalf("expected second eggs entry, got %v", got)
	}
}

func TestConcurrentArmDuringPoll(t *testing.T) {
	r := NewRegistry()
	names := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			r.Arm(name, -time.Second)
		}(n)
	}

	var collected []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.Now().Add(2 * time.Second)
		for len(collected) < len(names) && time.Now().Before(deadline) {
			collected = append(collected, r.PollExpired()...)
		}
	}()
	wg.Wait()
	<-done

	sort.Strings(collected)
	if len(collected) != len(names) {
		t.Fatalf("expected %d expirations, got %v", len(names), collected)
	}
	for i, n := range names {
		if collected[i] != n {
			t.Fatalf("missing or duplicated expiration, got %v", collected)
		}
	}
}
