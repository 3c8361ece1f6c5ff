package scraper

import (
	"context"
	"testing"
	"time"
)

func TestScheduler_InitialScrapeThenTicks(t *testing.T) {
	f := newFTLFixture(t)
	f.populateDefault()
	f.createGravity(5)

	e, holder := newTestEngine(f.config())
	sched := NewScheduler(e, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	// The immediate scrape publishes well before the first tick.
	deadline := time.Now().Add(2 * time.Second)
	for holder.Load() == nil {
		if time.Now().After(deadline) {
			t.Fatal("initial scrape never published")
		}
		time.Sleep(5 * time.Millisecond)
	}
	first := holder.Load()

	// And later ticks keep publishing fresh snapshots.
	deadline = time.Now().Add(2 * time.Second)
	for holder.Load() == first {
		if time.Now().After(deadline) {
			t.Fatal("no tick-driven scrape observed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

func TestScheduler_StopsOnCancelBeforeTick(t *testing.T) {
	f := newFTLFixture(t)
	f.populateDefault()

	e, _ := newTestEngine(f.config())
	sched := NewScheduler(e, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop without waiting for a tick")
	}
}
