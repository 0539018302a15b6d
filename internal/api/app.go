package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/reigigax/ring-de-batalla/internal/config"
	"github.com/reigigax/ring-de-batalla/internal/database"
	"github.com/reigigax/ring-de-batalla/internal/server"
)

// DebateApp is the REST surface around the debate server: auth glue, room
// CRUD, invitations, history, and the websocket upgrade endpoint.
type DebateApp struct {
	log            zerolog.Logger
	db             database.Repository
	srv            *http.Server
	ds             *server.DebateServer
	signingKey     []byte
	sessionTTL     time.Duration
	allowedOrigins []string
}

func NewDebateApp(mux *http.ServeMux, logger zerolog.Logger, ds *server.DebateServer, db database.Repository, cfg *config.Config) *DebateApp {
	s := &DebateApp{
		log:            logger,
		db:             db,
		ds:             ds,
		signingKey:     cfg.SigningKey,
		sessionTTL:     cfg.SessionTTL(),
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("/api/account", s.authMiddleware(s.account))
	mux.Handle("GET /api/users", s.authMiddleware(s.listUsers))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.getRoom))
	mux.Handle("PUT /api/rooms", s.authMiddleware(s.updateRoom))
	mux.Handle("DELETE /api/rooms", s.authMiddleware(s.deleteRoom))
	mux.Handle("GET /api/rooms/list", s.authMiddleware(s.listRooms))
	mux.Handle("POST /api/invitations", s.authMiddleware(s.createInvitation))
	mux.Handle("GET /api/invitations", s.authMiddleware(s.listInvitations))
	mux.Handle("PUT /api/invitations", s.authMiddleware(s.respondInvitation))
	mux.Handle("GET /api/history", s.authMiddleware(s.getHistory))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

func (s *DebateApp) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("starting HTTP server")
	return s.srv.ListenAndServe()
}

func (s *DebateApp) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

// errorHandler converts handler panics into JSON 500 responses.
func (s *DebateApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Error().Err(panicError).Str("path", r.URL.Path).Msg("panic")
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *DebateApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("json encode")
	}
}
