package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quizclash/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev
	},
}

// Handler upgrades client connections and turns their messages into
// dispatcher operations.
type Handler struct {
	hub        *Hub
	dispatcher *service.Dispatcher
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, dispatcher *service.Dispatcher) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
	}
}

// ServeWS handles GET /v1/ws
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	conn := &Connection{
		ID:   uuid.NewString(),
		Send: make(chan []byte, 256),
	}

	h.hub.Register(conn)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.hub.Unregister(conn)
		wsConn.Close()
		h.dispatcher.Disconnect(context.Background(), conn.ID)
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		h.handleMessage(conn, data)
	}
}

// handleMessage resolves one inbound event to exactly one dispatcher
// operation. Failures go back to the initiating connection only.
func (h *Handler) handleMessage(conn *Connection, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(conn.ID, "malformed message")
		return
	}

	ctx := context.Background()
	var err error

	switch msg.Type {
	case MsgCreateSession:
		var p createSessionPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.dispatcher.CreateSession(ctx, p.SessionID, conn.ID, p.Username)
		}
	case MsgJoinSession:
		var p joinSessionPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.dispatcher.JoinSession(ctx, p.SessionID, conn.ID, p.Username)
		}
	case MsgSetQuestion:
		var p setQuestionPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.dispatcher.SetQuestion(ctx, p.SessionID, conn.ID, p.Question, p.Answer)
		}
	case MsgStartGame:
		var p startGamePayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.dispatcher.StartRound(ctx, p.SessionID, conn.ID)
		}
	case MsgPlayerGuess:
		var p playerGuessPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.dispatcher.SubmitGuess(ctx, p.SessionID, conn.ID, p.Guess)
		}
	case MsgRotateMaster:
		var p rotateMasterPayload
		if err = json.Unmarshal(msg.Payload, &p); err == nil {
			err = h.dispatcher.RotateMaster(ctx, p.SessionID)
		}
	default:
		h.sendError(conn.ID, "unknown event: "+msg.Type)
		return
	}

	if err != nil {
		h.sendError(conn.ID, err.Error())
	}
}

func (h *Handler) sendError(connID, text string) {
	h.hub.Send(connID, service.EventError, service.ErrorPayload{Text: text})
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
