package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"presence-bot/internal/testfixtures"
)

type presenterStub struct {
	mu     sync.Mutex
	shown  []string
	failed bool
}

func (p *presenterStub) ShowBreak(ctx context.Context, message string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = append(p.shown, message)
	return !p.failed
}

func (p *presenterStub) Fail(failed bool) {
	p.mu.Lock()
	p.failed = failed
	p.mu.Unlock()
}

func (p *presenterStub) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.shown)
}

func newTestNag(clock *testfixtures.Clock, presenter BreakPresenter) *BreakNag {
	nag := NewBreakNag(presenter, clock, time.Hour, time.Minute)
	nag.pick = func(n int) int { return 0 }
	return nag
}

func TestBreakNagFiresAfterInterval(t *testing.T) {
	ctx := context.Background()
	clock := testfixtures.NewClock(time.Time{})
	presenter := &presenterStub{}
	nag := newTestNag(clock, presenter)

	clock.Advance(59 * time.Minute)
	if nag.Check(ctx) {
		t.Fatal("must not fire before the interval")
	}

	clock.Advance(time.Minute)
	if !nag.Check(ctx) || !nag.Visible() {
		t.Fatal("must fire once the interval passed")
	}
	if nag.Message() != BreakMessages()[0] {
		t.Fatalf("unexpected message %q", nag.Message())
	}

	clock.Advance(2 * time.Hour)
	if nag.Check(ctx) {
		t.Fatal("must not show a second nag while one is visible")
	}
	if presenter.Count() != 1 {
		t.Fatalf("expected one nag, got %d", presenter.Count())
	}
}

func TestBreakNagDismissResetsTimer(t *testing.T) {
	ctx := context.Background()
	clock := testfixtures.NewClock(time.Time{})
	nag := newTestNag(clock, &presenterStub{})

	clock.Advance(time.Hour)
	nag.Check(ctx)

	clock.Advance(5 * time.Minute)
	if !nag.Handle(ctx, BreakDismiss) {
		t.Fatal("dismiss of a visible nag must change state")
	}
	if nag.Visible() || !nag.LastBreak().Equal(clock.Now()) {
		t.Fatal("dismiss must hide the nag and reset the last break time")
	}
	if nag.Handle(ctx, BreakDismiss) {
		t.Fatal("dismiss without a visible nag is a no-op")
	}

	clock.Advance(59 * time.Minute)
	if nag.Check(ctx) {
		t.Fatal("interval is counted from dismissal")
	}
}

func TestBreakNagManualTrigger(t *testing.T) {
	ctx := context.Background()
	clock := testfixtures.NewClock(time.Time{})
	presenter := &presenterStub{}
	nag := newTestNag(clock, presenter)

	if !nag.Handle(ctx, BreakTrigger) {
		t.Fatal("manual trigger must bypass the timer")
	}
	if nag.Handle(ctx, BreakTrigger) {
		t.Fatal("manual trigger must not stack a second nag")
	}
	if presenter.Count() != 1 {
		t.Fatalf("expected one nag, got %d", presenter.Count())
	}
}

func TestBreakNagUndismissableShowDoesNotStick(t *testing.T) {
	ctx := context.Background()
	clock := testfixtures.NewClock(time.Time{})
	presenter := &presenterStub{}
	presenter.Fail(true)
	nag := newTestNag(clock, presenter)

	clock.Advance(time.Hour)
	if !nag.Check(ctx) {
		t.Fatal("nag must fire once the interval passed")
	}
	if nag.Visible() || !nag.LastBreak().Equal(clock.Now()) {
		t.Fatal("nag without a dismiss control must be treated as dismissed")
	}

	presenter.Fail(false)
	if !nag.Handle(ctx, BreakTrigger) || !nag.Visible() {
		t.Fatal("manual trigger must work after a failed show")
	}
	nag.Handle(ctx, BreakDismiss)

	clock.Advance(time.Hour)
	if !nag.Check(ctx) {
		t.Fatal("timer must keep firing after a failed show")
	}
	if presenter.Count() != 3 {
		t.Fatalf("expected three nags, got %d", presenter.Count())
	}
}

func TestBreakNagAutoDismiss(t *testing.T) {
	ctx := context.Background()
	clock := testfixtures.NewClock(time.Time{})
	presenter := &presenterStub{}
	nag := newTestNag(clock, presenter).WithAutoDismiss()

	clock.Advance(time.Hour)
	if !nag.Check(ctx) || nag.Visible() {
		t.Fatal("auto-dismissed nag fires and is never left visible")
	}
	clock.Advance(time.Hour)
	if !nag.Check(ctx) {
		t.Fatal("periodic nag must fire again after the next interval")
	}
	if presenter.Count() != 2 {
		t.Fatalf("expected two nags, got %d", presenter.Count())
	}
}

func TestBreakNagRunHandlesCommands(t *testing.T) {
	clock := testfixtures.NewClock(time.Time{})
	presenter := &presenterStub{}
	nag := newTestNag(clock, presenter)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		nag.Run(ctx)
		close(done)
	}()

	if !nag.Trigger() {
		t.Fatal("trigger must be queued")
	}
	deadline := time.Now().Add(2 * time.Second)
	for presenter.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("trigger was not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	nag.Dismiss()
	for nag.Visible() {
		if time.Now().After(deadline) {
			t.Fatal("dismiss was not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nag did not stop")
	}
}
