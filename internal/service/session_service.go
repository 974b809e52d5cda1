package service

import (
	"context"
	"log"
	"strings"
	"time"

	"quizclash/internal/cache"
	"quizclash/internal/model"
	"quizclash/internal/repository"
)

const (
	attemptBudget = 3
	roundDuration = 60 * time.Second
	winPoints     = 10
)

// SessionService is the session state machine. Every mutating method below
// assumes the caller (the Dispatcher) holds the session's lock; nothing here
// may run concurrently for the same session id.
type SessionService struct {
	sessions repository.SessionRepo
	members  repository.MemberRepo
	scores   cache.ScoreboardCache
	timers   *timerArena

	bc        Broadcaster
	onTimeout func(sessionID string, token uint64)
}

// NewSessionService creates the state machine over the given stores.
func NewSessionService(sessions repository.SessionRepo, members repository.MemberRepo, scores cache.ScoreboardCache) *SessionService {
	return &SessionService{
		sessions: sessions,
		members:  members,
		scores:   scores,
		timers:   newTimerArena(),
	}
}

// SetBroadcaster injects the outbound gateway (the WebSocket hub implements it).
func (s *SessionService) SetBroadcaster(bc Broadcaster) {
	s.bc = bc
}

// SetTimeoutHandler injects the round-timer callback sink. The handler must
// serialize the call behind the session's lock before it reaches
// resolveTimeout; the Dispatcher wires itself in here.
func (s *SessionService) SetTimeoutHandler(fn func(sessionID string, token uint64)) {
	s.onTimeout = fn
}

func normalizeAnswer(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func (s *SessionService) createSession(ctx context.Context, id, connID, username string) error {
	existing, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateSession
	}

	now := time.Now()
	session := &model.Session{
		ID:           id,
		MasterConnID: connID,
		Phase:        model.PhaseLobby,
		NextSeq:      2,
		CreatedAt:    now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return err
	}

	member := &model.Membership{
		SessionID:    id,
		ConnID:       connID,
		Username:     username,
		AttemptsLeft: attemptBudget,
		Seq:          1,
		JoinedAt:     now,
	}
	if err := s.members.Insert(ctx, member); err != nil {
		return err
	}
	s.mirrorScore(ctx, id, username, 0)

	view := model.NewView(session, []*model.Membership{member})
	s.send(connID, EventSessionCreated, view)
	s.broadcast([]*model.Membership{member}, EventSessionUpdate, view)
	return nil
}

func (s *SessionService) joinSession(ctx context.Context, id, connID, username string) error {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.Phase != model.PhaseLobby {
		return ErrInvalidPhase
	}

	members, err := s.members.ListBySession(ctx, id)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.ConnID == connID {
			return ErrAlreadyMember
		}
		if m.Username == username {
			return ErrNameTaken
		}
	}

	member := &model.Membership{
		SessionID:    id,
		ConnID:       connID,
		Username:     username,
		AttemptsLeft: attemptBudget,
		Seq:          session.NextSeq,
		JoinedAt:     time.Now(),
	}
	session.NextSeq++

	if err := s.members.Insert(ctx, member); err != nil {
		return err
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return err
	}
	s.mirrorScore(ctx, id, username, 0)

	members = append(members, member)
	view := model.NewView(session, members)
	s.send(connID, EventJoinedSession, view)
	s.broadcast(members, EventSessionUpdate, view)
	return nil
}

func (s *SessionService) setQuestion(ctx context.Context, id, connID, question, answer string) error {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.MasterConnID != connID {
		return ErrNotMaster
	}
	if session.Phase != model.PhaseLobby {
		return ErrInvalidPhase
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}
	if normalizeAnswer(answer) == "" {
		return ErrEmptyAnswer
	}

	session.Question = question
	session.Answer = normalizeAnswer(answer)
	if err := s.sessions.Update(ctx, session); err != nil {
		return err
	}

	s.send(connID, EventQuestionSet, QuestionSetPayload{Question: session.Question})
	return nil
}

func (s *SessionService) startRound(ctx context.Context, id, connID string) error {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.MasterConnID != connID {
		return ErrNotMaster
	}
	if session.Question == "" || session.Answer == "" {
		return ErrQuestionNotSet
	}

	members, err := s.members.ListBySession(ctx, id)
	if err != nil {
		return err
	}
	if len(members) < 2 {
		return ErrInsufficientPlayers
	}
	if session.Phase != model.PhaseLobby {
		return ErrInvalidPhase
	}

	deadline := time.Now().Add(roundDuration)
	session.Phase = model.PhaseInProgress
	session.RoundDeadline = &deadline
	session.RoundToken++
	token := session.RoundToken

	for _, m := range members {
		m.AttemptsLeft = attemptBudget
		if err := s.members.Update(ctx, m); err != nil {
			return err
		}
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return err
	}

	s.timers.Arm(id, token, roundDuration, func() {
		s.onTimeout(id, token)
	})

	s.broadcast(members, EventGameStarted, GameStartedPayload{
		Question: session.Question,
		Deadline: deadline,
	})
	return nil
}

func (s *SessionService) submitGuess(ctx context.Context, id, connID, guess string) error {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.Phase != model.PhaseInProgress {
		return ErrInvalidPhase
	}

	member, err := s.members.Get(ctx, id, connID)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrNotAMember
	}
	if member.AttemptsLeft <= 0 {
		return ErrNoAttemptsLeft
	}

	// An attempt is spent whether or not the guess is right.
	member.AttemptsLeft--
	if err := s.members.Update(ctx, member); err != nil {
		return err
	}

	if normalizeAnswer(guess) != session.Answer {
		s.send(connID, EventGuessResult, GuessResultPayload{
			Correct:      false,
			AttemptsLeft: member.AttemptsLeft,
		})
		return nil
	}

	member.Score += winPoints
	if err := s.members.Update(ctx, member); err != nil {
		return err
	}
	s.mirrorScore(ctx, id, member.Username, member.Score)

	return s.resolveRound(ctx, session, model.ResolveWinner, member.Username)
}

// resolveTimeout is invoked only via the round timer, serialized by the
// Dispatcher. A token that no longer matches the session's current round is
// a stale timer from a round already resolved by other means.
func (s *SessionService) resolveTimeout(ctx context.Context, id string, token uint64) error {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session == nil || session.Phase != model.PhaseInProgress || session.RoundToken != token {
		return nil
	}
	return s.resolveRound(ctx, session, model.ResolveTimeout, "")
}

// resolveRound emits the round's single resolution event and folds the
// session back into the lobby with the master rotated.
func (s *SessionService) resolveRound(ctx context.Context, session *model.Session, reason model.ResolveReason, winnerName string) error {
	s.timers.Disarm(session.ID)

	session.Phase = model.PhaseResolved
	session.RoundDeadline = nil
	if err := s.sessions.Update(ctx, session); err != nil {
		return err
	}

	members, err := s.members.ListBySession(ctx, session.ID)
	if err != nil {
		return err
	}

	ended := GameEndedPayload{Reason: reason}
	if reason == model.ResolveWinner {
		ended.WinnerName = winnerName
	} else {
		ended.Answer = session.Answer
	}
	s.broadcast(members, EventGameEnded, ended)

	if reason == model.ResolveWinner {
		board := make([]model.ScoreEntry, 0, len(members))
		for _, m := range members {
			board = append(board, model.ScoreEntry{Username: m.Username, Score: m.Score})
		}
		s.broadcast(members, EventScoreboard, board)
	}

	return s.rotateMaster(ctx, session, members)
}

// rotateMaster hands the master role to the next member by persisted
// join-order seq (wrapping around), clears the question, and re-enters the
// lobby. No-op for an empty member list.
func (s *SessionService) rotateMaster(ctx context.Context, session *model.Session, members []*model.Membership) error {
	if len(members) > 0 {
		masterSeq := -1
		for _, m := range members {
			if m.ConnID == session.MasterConnID {
				masterSeq = m.Seq
				break
			}
		}
		session.MasterConnID = nextBySeq(members, masterSeq).ConnID
	}

	session.Question = ""
	session.Answer = ""
	session.Phase = model.PhaseLobby
	session.RoundDeadline = nil
	if err := s.sessions.Update(ctx, session); err != nil {
		return err
	}

	s.broadcast(members, EventSessionUpdate, model.NewView(session, members))
	return nil
}

// rotate is the explicit administrative rotation. Rotating away a round in
// progress first resolves it as abandoned, so a started round still gets
// exactly one resolution event.
func (s *SessionService) rotate(ctx context.Context, id string) error {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.Phase == model.PhaseInProgress {
		return s.resolveRound(ctx, session, model.ResolveAbandoned, "")
	}

	members, err := s.members.ListBySession(ctx, id)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}
	return s.rotateMaster(ctx, session, members)
}

// removeMember handles disconnect cleanup. Unknown sessions and unknown
// members are tolerated as no-ops so repeated disconnects stay idempotent.
func (s *SessionService) removeMember(ctx context.Context, id, connID string) (removed bool, err error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}

	member, err := s.members.Get(ctx, id, connID)
	if err != nil {
		return false, err
	}
	if member == nil {
		return false, nil
	}

	if err := s.members.Delete(ctx, id, connID); err != nil {
		return false, err
	}
	if err := s.scores.RemovePlayer(ctx, id, member.Username); err != nil {
		log.Printf("scoreboard remove failed for session %s: %v", id, err)
	}

	remaining, err := s.members.ListBySession(ctx, id)
	if err != nil {
		return true, err
	}

	if len(remaining) == 0 {
		return true, s.destroySession(ctx, id)
	}

	if session.MasterConnID == connID {
		// Promote the next member anchored at the leaver's join position.
		session.MasterConnID = nextBySeq(remaining, member.Seq).ConnID
	}

	if session.Phase == model.PhaseInProgress && len(remaining) < 2 {
		return true, s.resolveRound(ctx, session, model.ResolveAbandoned, "")
	}

	if err := s.sessions.Update(ctx, session); err != nil {
		return true, err
	}
	s.broadcast(remaining, EventSessionUpdate, model.NewView(session, remaining))
	return true, nil
}

func (s *SessionService) destroySession(ctx context.Context, id string) error {
	s.timers.Disarm(id)
	if err := s.members.DeleteBySession(ctx, id); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.scores.Purge(ctx, id); err != nil {
		log.Printf("scoreboard purge failed for session %s: %v", id, err)
	}
	return nil
}

func (s *SessionService) snapshot(ctx context.Context, id string) (model.SessionView, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return model.SessionView{}, err
	}
	if session == nil {
		return model.SessionView{}, ErrSessionNotFound
	}
	members, err := s.members.ListBySession(ctx, id)
	if err != nil {
		return model.SessionView{}, err
	}
	return model.NewView(session, members), nil
}

func (s *SessionService) scoreboard(ctx context.Context, id string) ([]model.ScoreEntry, error) {
	entries, err := s.scores.Top(ctx, id, 100)
	if err != nil {
		log.Printf("scoreboard read failed for session %s, falling back to store: %v", id, err)
		entries = nil
	}
	if len(entries) > 0 {
		board := make([]model.ScoreEntry, len(entries))
		for i, e := range entries {
			board[i] = model.ScoreEntry{Username: e.Username, Score: e.Score}
		}
		return board, nil
	}

	view, err := s.snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	board := make([]model.ScoreEntry, 0, len(view.Members))
	for _, m := range view.Members {
		board = append(board, model.ScoreEntry{Username: m.Username, Score: m.Score})
	}
	return board, nil
}

// nextBySeq picks the first member whose join seq is greater than anchorSeq,
// wrapping around to the earliest joiner. members must be sorted by seq.
func nextBySeq(members []*model.Membership, anchorSeq int) *model.Membership {
	for _, m := range members {
		if m.Seq > anchorSeq {
			return m
		}
	}
	return members[0]
}

func (s *SessionService) mirrorScore(ctx context.Context, id, username string, score int) {
	if err := s.scores.SetScore(ctx, id, username, score); err != nil {
		log.Printf("scoreboard update failed for session %s: %v", id, err)
	}
}

func (s *SessionService) send(connID, event string, payload interface{}) {
	if s.bc == nil {
		return
	}
	s.bc.Send(connID, event, payload)
}

// broadcast fans an event out to the given membership snapshot, taken from
// the store inside the current critical section.
func (s *SessionService) broadcast(members []*model.Membership, event string, payload interface{}) {
	if s.bc == nil {
		return
	}
	for _, m := range members {
		s.bc.Send(m.ConnID, event, payload)
	}
}
