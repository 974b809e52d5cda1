package service

import (
	"sync"
	"time"
)

// timerArena owns the round timers, one per session while a round is in
// progress. Each armed timer carries the round's fencing token; Disarm is
// best-effort (the timer function may already be running), so a late firing
// is neutralized by the token check in resolveTimeout, not by Stop.
type timerArena struct {
	mu     sync.Mutex
	timers map[string]*roundTimer
}

type roundTimer struct {
	token uint64
	timer *time.Timer
}

func newTimerArena() *timerArena {
	return &timerArena{timers: make(map[string]*roundTimer)}
}

// Arm schedules fire after d, replacing any timer the session already owns.
func (a *timerArena) Arm(sessionID string, token uint64, d time.Duration, fire func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.timers[sessionID]; ok {
		existing.timer.Stop()
	}
	a.timers[sessionID] = &roundTimer{
		token: token,
		timer: time.AfterFunc(d, fire),
	}
}

// Disarm stops and discards the session's timer, if any.
func (a *timerArena) Disarm(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rt, ok := a.timers[sessionID]; ok {
		rt.timer.Stop()
		delete(a.timers, sessionID)
	}
}
