package model

import "time"

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseInProgress Phase = "in_progress"
	PhaseResolved   Phase = "resolved"
)

// ResolveReason says how a round ended
type ResolveReason string

const (
	ResolveWinner    ResolveReason = "winner"
	ResolveTimeout   ResolveReason = "timeout"
	ResolveAbandoned ResolveReason = "abandoned"
)

// Session is one independent game instance, identified by a creator-chosen id.
type Session struct {
	ID            string     `json:"id" bson:"_id"`
	MasterConnID  string     `json:"masterConnId" bson:"masterConnId"`
	Phase         Phase      `json:"phase" bson:"phase"`
	Question      string     `json:"question" bson:"question"`
	Answer        string     `json:"answer" bson:"answer"` // stored lowercase
	RoundDeadline *time.Time `json:"roundDeadline,omitempty" bson:"roundDeadline,omitempty"`
	// RoundToken increments every time a round starts; stale timer
	// callbacks carry an older token and are discarded.
	RoundToken uint64    `json:"roundToken" bson:"roundToken"`
	NextSeq    int       `json:"nextSeq" bson:"nextSeq"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// Membership ties a connection to a session and carries per-player round state.
type Membership struct {
	SessionID    string `json:"sessionId" bson:"sessionId"`
	ConnID       string `json:"connId" bson:"connId"`
	Username     string `json:"username" bson:"username"`
	Score        int    `json:"score" bson:"score"`
	AttemptsLeft int    `json:"attemptsLeft" bson:"attemptsLeft"`
	// Seq is the persisted join-order number. Master rotation walks this
	// sequence, not list position, since earlier members may have left.
	Seq      int       `json:"seq" bson:"seq"`
	JoinedAt time.Time `json:"joinedAt" bson:"joinedAt"`
}

// MemberView is the public projection of a membership.
type MemberView struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
	IsMaster bool   `json:"isMaster"`
}

// SessionView is the public projection broadcast as sessionUpdate.
type SessionView struct {
	ID      string       `json:"id"`
	Phase   Phase        `json:"phase"`
	Master  string       `json:"master"`
	Members []MemberView `json:"members"`
}

// ScoreEntry is one row of the scoreboard broadcast.
type ScoreEntry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// NewView projects a session and its members (already in join order) into
// the shape sent to clients.
func NewView(s *Session, members []*Membership) SessionView {
	v := SessionView{
		ID:      s.ID,
		Phase:   s.Phase,
		Members: make([]MemberView, 0, len(members)),
	}
	for _, m := range members {
		isMaster := m.ConnID == s.MasterConnID
		if isMaster {
			v.Master = m.Username
		}
		v.Members = append(v.Members, MemberView{
			Username: m.Username,
			Score:    m.Score,
			IsMaster: isMaster,
		})
	}
	return v
}
