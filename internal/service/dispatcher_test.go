package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"quizclash/internal/model"
)

// Scenario C: the master disconnects while the other player's winning guess
// is in flight. Whichever lands first, the session must come out of it with
// one consistent master and exactly one resolution event.
func TestGuessAndDisconnectDoNotInterleave(t *testing.T) {
	for i := 0; i < 50; i++ {
		d, bc := newTestDispatcher()
		ctx := startedRound(t, d)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = d.SubmitGuess(ctx, "s1", "c2", "4")
		}()
		go func() {
			defer wg.Done()
			d.Disconnect(ctx, "c1")
		}()
		wg.Wait()

		if got := bc.count(EventGameEnded); got != 1 {
			t.Fatalf("iteration %d: gameEnded count = %d, want exactly 1", i, got)
		}

		view, err := d.Snapshot(ctx, "s1")
		if err != nil {
			t.Fatalf("iteration %d: Snapshot: %v", i, err)
		}
		if view.Phase != model.PhaseLobby {
			t.Fatalf("iteration %d: phase = %q, want lobby", i, view.Phase)
		}
		masters := 0
		for _, m := range view.Members {
			if m.IsMaster {
				masters++
			}
		}
		if masters != 1 || view.Master == "" {
			t.Fatalf("iteration %d: masters = %d (%q), want exactly one", i, masters, view.Master)
		}
	}
}

// Concurrent wrong guesses from the same player must account for every
// attempt exactly once and never drive attemptsLeft negative.
func TestConcurrentGuessesSpendAttemptsExactly(t *testing.T) {
	d, bc := newTestDispatcher()
	ctx := startedRound(t, d)

	const guessers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	var rejected int

	wg.Add(guessers)
	for i := 0; i < guessers; i++ {
		go func() {
			defer wg.Done()
			err := d.SubmitGuess(ctx, "s1", "c2", "wrong")
			if errors.Is(err, ErrNoAttemptsLeft) {
				mu.Lock()
				rejected++
				mu.Unlock()
			} else if err != nil {
				t.Errorf("SubmitGuess: %v", err)
			}
		}()
	}
	wg.Wait()

	if rejected != guessers-3 {
		t.Errorf("rejected = %d, want %d (3 attempts spent)", rejected, guessers-3)
	}

	results := bc.forConn("c2", EventGuessResult)
	if len(results) != 3 {
		t.Fatalf("guessResult count = %d, want 3", len(results))
	}
	seen := make(map[int]bool)
	for _, r := range results {
		left := r.Payload.(GuessResultPayload).AttemptsLeft
		if left < 0 {
			t.Fatalf("attemptsLeft went negative: %d", left)
		}
		seen[left] = true
	}
	for _, want := range []int{2, 1, 0} {
		if !seen[want] {
			t.Errorf("missing guessResult with attemptsLeft=%d", want)
		}
	}
}

// Operations on unrelated sessions run against independent locks; hammering
// many sessions concurrently must leave each internally consistent.
func TestSessionsAreIsolated(t *testing.T) {
	d, _ := newTestDispatcher()
	ctx := context.Background()

	const sessions = 8
	var wg sync.WaitGroup
	wg.Add(sessions)
	for i := 0; i < sessions; i++ {
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n)
			master := fmt.Sprintf("m%d", n)
			player := fmt.Sprintf("p%d", n)
			if err := d.CreateSession(ctx, id, master, "Host"); err != nil {
				t.Errorf("%s: CreateSession: %v", id, err)
				return
			}
			if err := d.JoinSession(ctx, id, player, "Guest"); err != nil {
				t.Errorf("%s: JoinSession: %v", id, err)
				return
			}
			if err := d.SetQuestion(ctx, id, master, "q", "a"); err != nil {
				t.Errorf("%s: SetQuestion: %v", id, err)
				return
			}
			if err := d.StartRound(ctx, id, master); err != nil {
				t.Errorf("%s: StartRound: %v", id, err)
				return
			}
			if err := d.SubmitGuess(ctx, id, player, "a"); err != nil {
				t.Errorf("%s: SubmitGuess: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("s%d", i)
		view, err := d.Snapshot(ctx, id)
		if err != nil {
			t.Fatalf("%s: Snapshot: %v", id, err)
		}
		if view.Phase != model.PhaseLobby || view.Master != "Guest" {
			t.Errorf("%s: phase=%q master=%q, want lobby/Guest", id, view.Phase, view.Master)
		}
	}
}

// A connection in several sessions is removed from all of them on disconnect
// through the reverse index.
func TestDisconnectSpansSessions(t *testing.T) {
	d, _ := newTestDispatcher()
	ctx := context.Background()

	if err := d.CreateSession(ctx, "a", "c1", "Alice"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := d.CreateSession(ctx, "b", "c2", "Bea"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := d.JoinSession(ctx, "b", "c1", "Alice"); err != nil {
		t.Fatalf("JoinSession: %v", err)
	}

	d.Disconnect(ctx, "c1")

	if _, err := d.Snapshot(ctx, "a"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("session a should be destroyed, err = %v", err)
	}
	view, err := d.Snapshot(ctx, "b")
	if err != nil {
		t.Fatalf("Snapshot b: %v", err)
	}
	if len(view.Members) != 1 || view.Master != "Bea" {
		t.Errorf("session b = %+v, want Bea alone", view)
	}
}

func TestKeyedLocksDoNotLeak(t *testing.T) {
	locks := newKeyedLocks()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				entry := locks.acquire("shared")
				locks.release("shared", entry)
			}
		}()
	}
	wg.Wait()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.entries) != 0 {
		t.Errorf("lock entries remaining = %d, want 0", len(locks.entries))
	}
}
