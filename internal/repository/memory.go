package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"quizclash/internal/model"
)

// In-memory implementations used for --store=memory and by tests. They hold
// deep copies so callers never share document pointers with the store.

var ErrDuplicateKey = errors.New("duplicate key")

type memorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
}

func NewMemorySessionRepo() SessionRepo {
	return &memorySessionRepo{sessions: make(map[string]model.Session)}
}

func (r *memorySessionRepo) Create(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; ok {
		return ErrDuplicateKey
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *memorySessionRepo) GetByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := s
	if s.RoundDeadline != nil {
		d := *s.RoundDeadline
		copied.RoundDeadline = &d
	}
	return &copied, nil
}

func (r *memorySessionRepo) Update(_ context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

func (r *memorySessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

type memberKey struct {
	sessionID string
	connID    string
}

type memoryMemberRepo struct {
	mu      sync.RWMutex
	members map[memberKey]model.Membership
}

func NewMemoryMemberRepo() MemberRepo {
	return &memoryMemberRepo{members: make(map[memberKey]model.Membership)}
}

func (r *memoryMemberRepo) Insert(_ context.Context, m *model.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memberKey{m.SessionID, m.ConnID}
	if _, ok := r.members[key]; ok {
		return ErrDuplicateKey
	}
	r.members[key] = *m
	return nil
}

func (r *memoryMemberRepo) Get(_ context.Context, sessionID, connID string) (*model.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[memberKey{sessionID, connID}]
	if !ok {
		return nil, nil
	}
	copied := m
	return &copied, nil
}

func (r *memoryMemberRepo) ListBySession(_ context.Context, sessionID string) ([]*model.Membership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var members []*model.Membership
	for key, m := range r.members {
		if key.sessionID != sessionID {
			continue
		}
		copied := m
		members = append(members, &copied)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].Seq < members[j].Seq
	})
	return members, nil
}

func (r *memoryMemberRepo) Update(_ context.Context, m *model.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[memberKey{m.SessionID, m.ConnID}] = *m
	return nil
}

func (r *memoryMemberRepo) Delete(_ context.Context, sessionID, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, memberKey{sessionID, connID})
	return nil
}

func (r *memoryMemberRepo) DeleteBySession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.members {
		if key.sessionID == sessionID {
			delete(r.members, key)
		}
	}
	return nil
}
