package rest

import (
	"net/http"

	"github.com/gorilla/mux"

	"quizclash/internal/service"
	"quizclash/internal/transport/rest/handler"
	"quizclash/internal/transport/rest/middleware"
	"quizclash/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService *service.AuthService
	Dispatcher  *service.Dispatcher
	WSHub       *ws.Hub
	StaticDir   string
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	authHandler := handler.NewAuthHandler(c.AuthService)
	adminHandler := handler.NewAdminHandler(c.Dispatcher)
	wsHandler := ws.NewHandler(c.WSHub, c.Dispatcher)

	authMW := middleware.NewAuthMiddleware(c.AuthService)

	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/admin/login", authHandler.Login).Methods("POST")
	v1.HandleFunc("/ws", wsHandler.ServeWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Admin routes (require admin auth)
	adminRoutes := v1.NewRoute().Subrouter()
	adminRoutes.Use(authMW.RequireAdmin)

	adminRoutes.HandleFunc("/admin/sessions/{id}", adminHandler.GetSession).Methods("GET")
	adminRoutes.HandleFunc("/admin/sessions/{id}/rotate", adminHandler.RotateMaster).Methods("POST")
	adminRoutes.HandleFunc("/admin/sessions/{id}/scoreboard", adminHandler.Scoreboard).Methods("GET")

	// Browser client assets, when configured
	if c.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(c.StaticDir)))
	}

	return r
}
