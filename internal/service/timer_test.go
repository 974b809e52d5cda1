package service

import (
	"errors"
	"testing"
	"time"

	"quizclash/internal/model"
)

func TestTimerArenaFiresOnce(t *testing.T) {
	arena := newTimerArena()
	fired := make(chan struct{}, 4)

	arena.Arm("s1", 1, 10*time.Millisecond, func() {
		fired <- struct{}{}
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	select {
	case <-fired:
		t.Fatal("timer fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimerArenaDisarm(t *testing.T) {
	arena := newTimerArena()
	fired := make(chan struct{}, 1)

	arena.Arm("s1", 1, 50*time.Millisecond, func() {
		fired <- struct{}{}
	})
	arena.Disarm("s1")

	select {
	case <-fired:
		t.Fatal("disarmed timer fired")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestTimerArenaRearmReplaces(t *testing.T) {
	arena := newTimerArena()
	fired := make(chan uint64, 4)

	arena.Arm("s1", 1, 20*time.Millisecond, func() { fired <- 1 })
	arena.Arm("s1", 2, 20*time.Millisecond, func() { fired <- 2 })

	select {
	case token := <-fired:
		if token != 2 {
			t.Fatalf("fired token = %d, want 2", token)
		}
	case <-time.After(time.Second):
		t.Fatal("replacement timer never fired")
	}

	select {
	case <-fired:
		t.Fatal("replaced timer fired as well")
	case <-time.After(60 * time.Millisecond):
	}
}

// Scenario D: the deadline passes with no correct guess. The round resolves
// once with the answer revealed, and a guess arriving afterwards is rejected.
func TestTimeoutResolution(t *testing.T) {
	d, bc := newTestDispatcher()
	ctx := startedRound(t, d)

	view, _ := d.Snapshot(ctx, "s1")
	if view.Phase != model.PhaseInProgress {
		t.Fatalf("phase = %q, want in_progress", view.Phase)
	}

	// Deliver the timer callback for the current round directly; the real
	// timer would do the same 60 seconds in.
	d.timeoutFired("s1", 1)

	ended, ok := bc.last(EventGameEnded)
	if !ok {
		t.Fatal("no gameEnded after timeout")
	}
	payload := ended.Payload.(GameEndedPayload)
	if payload.Reason != model.ResolveTimeout || payload.Answer != "4" {
		t.Errorf("gameEnded = %+v, want timeout revealing 4", payload)
	}
	if bc.count(EventGameEnded) != 1 {
		t.Errorf("gameEnded count = %d, want 1", bc.count(EventGameEnded))
	}

	if err := d.SubmitGuess(ctx, "s1", "c2", "4"); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("guess after deadline err = %v, want ErrInvalidPhase", err)
	}
}

// A timer that fires after the round was already resolved by a winning guess
// carries a stale fencing token and must be discarded silently.
func TestStaleTimerIsNoOp(t *testing.T) {
	d, bc := newTestDispatcher()
	ctx := startedRound(t, d)

	if err := d.SubmitGuess(ctx, "s1", "c2", "4"); err != nil {
		t.Fatalf("SubmitGuess: %v", err)
	}
	if bc.count(EventGameEnded) != 1 {
		t.Fatalf("gameEnded count = %d, want 1", bc.count(EventGameEnded))
	}

	d.timeoutFired("s1", 1)

	if bc.count(EventGameEnded) != 1 {
		t.Errorf("stale timer produced extra resolution, gameEnded count = %d", bc.count(EventGameEnded))
	}
}

// The token also fences firings across rounds: a leftover callback from
// round 1 must not resolve round 2.
func TestStaleTokenAcrossRounds(t *testing.T) {
	d, bc := newTestDispatcher()
	ctx := startedRound(t, d)

	// Round 1 resolves by winner; Bob becomes master.
	if err := d.SubmitGuess(ctx, "s1", "c2", "4"); err != nil {
		t.Fatalf("SubmitGuess: %v", err)
	}
	if err := d.SetQuestion(ctx, "s1", "c2", "3+3?", "6"); err != nil {
		t.Fatalf("SetQuestion: %v", err)
	}
	if err := d.StartRound(ctx, "s1", "c2"); err != nil {
		t.Fatalf("StartRound: %v", err)
	}

	d.timeoutFired("s1", 1) // round 1's token

	view, _ := d.Snapshot(ctx, "s1")
	if view.Phase != model.PhaseInProgress {
		t.Errorf("stale token resolved round 2, phase = %q", view.Phase)
	}

	d.timeoutFired("s1", 2) // round 2's token
	view, _ = d.Snapshot(ctx, "s1")
	if view.Phase != model.PhaseLobby {
		t.Errorf("current token did not resolve round 2, phase = %q", view.Phase)
	}
	if bc.count(EventGameEnded) != 2 {
		t.Errorf("gameEnded count = %d, want 2 (one per round)", bc.count(EventGameEnded))
	}
}

func TestTimeoutAfterDestructionIsNoOp(t *testing.T) {
	d, bc := newTestDispatcher()
	ctx := startedRound(t, d)

	d.Disconnect(ctx, "c1")
	d.Disconnect(ctx, "c2")

	before := bc.count(EventGameEnded)
	d.timeoutFired("s1", 1)
	if bc.count(EventGameEnded) != before {
		t.Error("timer for destroyed session produced a resolution")
	}
}
