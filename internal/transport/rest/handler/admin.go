package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"quizclash/internal/model"
	"quizclash/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Login handles POST /v1/admin/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.authSvc.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// AdminHandler exposes session inspection and administrative actions.
type AdminHandler struct {
	dispatcher *service.Dispatcher
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(dispatcher *service.Dispatcher) *AdminHandler {
	return &AdminHandler{dispatcher: dispatcher}
}

// GetSession handles GET /v1/admin/sessions/{id}
func (h *AdminHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	view, err := h.dispatcher.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// RotateMaster handles POST /v1/admin/sessions/{id}/rotate
func (h *AdminHandler) RotateMaster(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.dispatcher.RotateMaster(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	view, err := h.dispatcher.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Scoreboard handles GET /v1/admin/sessions/{id}/scoreboard
func (h *AdminHandler) Scoreboard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	board, err := h.dispatcher.Scoreboard(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, board)
}

func statusFor(err error) int {
	if errors.Is(err, service.ErrSessionNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
