package service

import "errors"

// Validation failures reported back to the initiating connection as an
// errorMessage. None of them mutate the store or reach other members.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrDuplicateSession    = errors.New("session id already exists")
	ErrInvalidPhase        = errors.New("action not allowed in current phase")
	ErrNotMaster           = errors.New("only the master can do that")
	ErrNameTaken           = errors.New("username already taken in this session")
	ErrAlreadyMember       = errors.New("connection already in this session")
	ErrEmptyQuestion       = errors.New("question must not be empty")
	ErrEmptyAnswer         = errors.New("answer must not be empty")
	ErrQuestionNotSet      = errors.New("question not set")
	ErrInsufficientPlayers = errors.New("need at least 2 players")
	ErrNotAMember          = errors.New("player not in session")
	ErrNoAttemptsLeft      = errors.New("no attempts left")
)
