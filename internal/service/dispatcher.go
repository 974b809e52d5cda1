package service

import (
	"context"
	"log"
	"sync"

	"quizclash/internal/model"
)

// Dispatcher is the sole entry point to session mutations. It serializes
// every operation behind its session's lock, so at most one state-machine
// step runs per session at a time while unrelated sessions proceed in
// parallel. Round-timer firings go through the same lock as any other event.
type Dispatcher struct {
	svc   *SessionService
	locks *keyedLocks
	index *connIndex
}

// NewDispatcher wraps a session service and wires itself in as the round
// timer's callback sink.
func NewDispatcher(svc *SessionService) *Dispatcher {
	d := &Dispatcher{
		svc:   svc,
		locks: newKeyedLocks(),
		index: newConnIndex(),
	}
	svc.SetTimeoutHandler(d.timeoutFired)
	return d
}

func (d *Dispatcher) CreateSession(ctx context.Context, id, connID, username string) error {
	err := d.withSession(id, func() error {
		return d.svc.createSession(ctx, id, connID, username)
	})
	if err == nil {
		d.index.add(connID, id)
	}
	return err
}

func (d *Dispatcher) JoinSession(ctx context.Context, id, connID, username string) error {
	err := d.withSession(id, func() error {
		return d.svc.joinSession(ctx, id, connID, username)
	})
	if err == nil {
		d.index.add(connID, id)
	}
	return err
}

func (d *Dispatcher) SetQuestion(ctx context.Context, id, connID, question, answer string) error {
	return d.withSession(id, func() error {
		return d.svc.setQuestion(ctx, id, connID, question, answer)
	})
}

func (d *Dispatcher) StartRound(ctx context.Context, id, connID string) error {
	return d.withSession(id, func() error {
		return d.svc.startRound(ctx, id, connID)
	})
}

func (d *Dispatcher) SubmitGuess(ctx context.Context, id, connID, guess string) error {
	return d.withSession(id, func() error {
		return d.svc.submitGuess(ctx, id, connID, guess)
	})
}

// RotateMaster is the explicit administrative rotation.
func (d *Dispatcher) RotateMaster(ctx context.Context, id string) error {
	return d.withSession(id, func() error {
		return d.svc.rotate(ctx, id)
	})
}

// Disconnect removes the connection from every session it belongs to, found
// through the reverse index rather than a store scan. Cleanup failures are
// logged and left to later events to repair.
func (d *Dispatcher) Disconnect(ctx context.Context, connID string) {
	for _, id := range d.index.sessionsFor(connID) {
		err := d.withSession(id, func() error {
			_, err := d.svc.removeMember(ctx, id, connID)
			return err
		})
		if err != nil {
			log.Printf("disconnect cleanup failed for conn %s in session %s: %v", connID, id, err)
		}
		d.index.remove(connID, id)
	}
}

// Snapshot reads a consistent public view of a session.
func (d *Dispatcher) Snapshot(ctx context.Context, id string) (model.SessionView, error) {
	var view model.SessionView
	err := d.withSession(id, func() error {
		var err error
		view, err = d.svc.snapshot(ctx, id)
		return err
	})
	return view, err
}

// Scoreboard reads current standings for a session.
func (d *Dispatcher) Scoreboard(ctx context.Context, id string) ([]model.ScoreEntry, error) {
	var board []model.ScoreEntry
	err := d.withSession(id, func() error {
		var err error
		board, err = d.svc.scoreboard(ctx, id)
		return err
	})
	return board, err
}

// timeoutFired runs on the timer goroutine; it queues behind whatever
// operation is in flight for the session instead of racing it.
func (d *Dispatcher) timeoutFired(sessionID string, token uint64) {
	err := d.withSession(sessionID, func() error {
		return d.svc.resolveTimeout(context.Background(), sessionID, token)
	})
	if err != nil {
		log.Printf("timeout resolution failed for session %s: %v", sessionID, err)
	}
}

func (d *Dispatcher) withSession(id string, fn func() error) error {
	entry := d.locks.acquire(id)
	defer d.locks.release(id, entry)
	return fn()
}

// keyedLocks hands out one mutex per live session id. Entries are
// refcounted so locks for destroyed sessions do not accumulate.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*lockEntry)}
}

func (l *keyedLocks) acquire(id string) *lockEntry {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return entry
}

func (l *keyedLocks) release(id string, entry *lockEntry) {
	entry.mu.Unlock()

	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, id)
	}
	l.mu.Unlock()
}

// connIndex maps a connection to the sessions it belongs to, maintained
// incrementally on join and leave so a disconnect never scans the store.
type connIndex struct {
	mu       sync.Mutex
	sessions map[string]map[string]struct{}
}

func newConnIndex() *connIndex {
	return &connIndex{sessions: make(map[string]map[string]struct{})}
}

func (i *connIndex) add(connID, sessionID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	set, ok := i.sessions[connID]
	if !ok {
		set = make(map[string]struct{})
		i.sessions[connID] = set
	}
	set[sessionID] = struct{}{}
}

func (i *connIndex) remove(connID, sessionID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	set, ok := i.sessions[connID]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(i.sessions, connID)
	}
}

func (i *connIndex) sessionsFor(connID string) []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	ids := make([]string, 0, len(i.sessions[connID]))
	for id := range i.sessions[connID] {
		ids = append(ids, id)
	}
	return ids
}
