package ws

// Inbound event types
const (
	MsgCreateSession = "createSession"
	MsgJoinSession   = "joinSession"
	MsgSetQuestion   = "setQuestion"
	MsgStartGame     = "startGame"
	MsgPlayerGuess   = "playerGuess"
	MsgRotateMaster  = "rotateMaster"
)

type createSessionPayload struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
}

type joinSessionPayload struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
}

type setQuestionPayload struct {
	SessionID string `json:"sessionId"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
}

type startGamePayload struct {
	SessionID string `json:"sessionId"`
}

type playerGuessPayload struct {
	SessionID string `json:"sessionId"`
	Guess     string `json:"guess"`
}

type rotateMasterPayload struct {
	SessionID string `json:"sessionId"`
}
