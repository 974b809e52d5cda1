package service

import (
	"time"

	"quizclash/internal/model"
)

// Outbound event names
const (
	EventSessionCreated = "sessionCreated"
	EventJoinedSession  = "joinedSession"
	EventSessionUpdate  = "sessionUpdate"
	EventQuestionSet    = "questionSet"
	EventGameStarted    = "gameStarted"
	EventGuessResult    = "guessResult"
	EventGameEnded      = "gameEnded"
	EventScoreboard     = "scoreboard"
	EventError          = "errorMessage"
)

// Broadcaster delivers an event to a single connection, best-effort, no
// delivery guarantee (avoids an import cycle with the transport layer).
// Fan-out to a session's members is done by the service, which re-derives
// the recipient set from current membership at send time.
type Broadcaster interface {
	Send(connID string, event string, payload interface{})
}

// GameStartedPayload announces a new round to all members
type GameStartedPayload struct {
	Question string    `json:"question"`
	Deadline time.Time `json:"deadline"`
}

// GuessResultPayload goes back to the guesser only, on a wrong guess
type GuessResultPayload struct {
	Correct      bool `json:"correct"`
	AttemptsLeft int  `json:"attemptsLeft"`
}

// GameEndedPayload announces the round's single resolution event.
// WinnerName is set for winner resolutions, Answer for timeout/abandoned.
type GameEndedPayload struct {
	Reason     model.ResolveReason `json:"reason"`
	WinnerName string              `json:"winnerName,omitempty"`
	Answer     string              `json:"answer,omitempty"`
}

// QuestionSetPayload confirms the question to the master
type QuestionSetPayload struct {
	Question string `json:"question"`
}

// ErrorPayload carries a failed operation's message to its initiator
type ErrorPayload struct {
	Text string `json:"text"`
}
