// Package server exposes the plan panel over HTTP and a websocket so a
// browser or editor front end can drive it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/user/planbridge/internal/controller"
	"github.com/user/planbridge/internal/mention"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var ErrUnknownAction = errors.New("unknown action")

// Action is a UI intent sent by a front end.
type Action struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	Cursor int    `json:"cursor,omitempty"`
	Key    string `json:"key,omitempty"`
	Model  string `json:"model,omitempty"`
}

// Frame is a server-to-client websocket message.
type Frame struct {
	Type  string           `json:"type"`
	View  *controller.View `json:"view,omitempty"`
	Error string           `json:"error,omitempty"`
}

// Server is an http.Handler for the panel endpoints.
type Server struct {
	session  *controller.Session
	upgrader websocket.Upgrader
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer creates a Server driving session.
func NewServer(session *controller.Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		session: session,
		logger:  logger,
		mux:     http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The listener is loopback by default; front ends run from
			// editor webviews with arbitrary origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/view", s.handleView)
	s.mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	s.mux.HandleFunc("POST /api/actions", s.handleAction)
	s.mux.HandleFunc("GET /ws", s.handleSocket)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	v, err := s.session.View(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	v, err := s.session.View(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":  v.Messages,
		"completed": v.Completed,
	})
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var a Action
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON"))
		return
	}
	v, err := s.apply(r.Context(), a)
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, ErrUnknownAction) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// apply runs a on the session and returns the resulting view.
func (s *Server) apply(ctx context.Context, a Action) (controller.View, error) {
	var v controller.View
	err := s.session.Do(ctx, func(c *controller.Controller) error {
		var err error
		switch a.Type {
		case "setDraft":
			err = c.SetDraft(a.Text, a.Cursor)
		case "submit":
			err = c.Submit(ctx)
		case "key":
			_, err = c.MentionKey(mention.Key(a.Key))
		case "clear":
			err = c.ClearHistory(ctx)
		case "copy":
			c.CopyLatest()
		case "openModels":
			err = c.OpenModelSelector()
		case "selectModel":
			err = c.SelectModel(a.Model)
		case "closeModels":
			err = c.CloseModelSelector(ctx)
		default:
			return fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
		}
		v = c.View()
		return err
	})
	return v, err
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := newClient(conn, s.logger)
	cancel := s.session.Watch(c.offer)
	defer cancel()

	go c.writeLoop()
	defer c.close()

	if v, err := s.session.View(r.Context()); err == nil {
		c.offer(v)
	}
	c.readLoop(func(a Action) {
		if _, err := s.apply(r.Context(), a); err != nil {
			c.send(Frame{Type: "error", Error: err.Error()})
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
