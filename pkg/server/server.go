// Package server exposes grid worlds over websockets. Every /env connection
// plays in its own world; /watch streams the events of all of them.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/boristopalov/gridworld/pkg/agent"
	"github.com/boristopalov/gridworld/pkg/config"
	"github.com/boristopalov/gridworld/pkg/core"
	"github.com/boristopalov/gridworld/pkg/environment"
	"github.com/boristopalov/gridworld/pkg/logging"
	"github.com/boristopalov/gridworld/pkg/messaging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gonum.org/v1/gonum/mat"
)

const (
	RequestReset   = "reset"
	RequestStep    = "step"
	RequestObserve = "observe"

	ResponseHello       = "hello"
	ResponseObservation = "observation"
	ResponseStep        = "step"
	ResponseError       = "error"

	watchBuffer = 256
)

// Request is a client message on /env.
type Request struct {
	Type   string    `json:"type"`
	Actor  int       `json:"actor"`
	Action []float64 `json:"action,omitempty"`
}

// Response answers every request. Observation is always the state after the
// request was applied.
type Response struct {
	Type        string            `json:"type"`
	Session     string            `json:"session"`
	Observation *core.Observation `json:"observation,omitempty"`
	Transition  *core.Transition  `json:"transition,omitempty"`
	Reward      float32           `json:"reward"`
	Done        bool              `json:"done"`
	Return      float32           `json:"return"`
	Error       string            `json:"error,omitempty"`
}

// WatchEvent wraps a broker message for /watch clients.
type WatchEvent struct {
	Type  string `json:"type"`
	From  string `json:"from"`
	Event any    `json:"event"`
}

type Server struct {
	world    config.WorldConfig
	broker   *messaging.SimpleBroker
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*environment.World
}

type Option func(*Server)

func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithBroker shares a broker with the server, so /watch also sees events
// published by experiments running in the same process.
func WithBroker(b *messaging.SimpleBroker) Option {
	return func(s *Server) {
		s.broker = b
	}
}

// New checks the world configuration once up front so that a bad file fails
// at startup instead of on the first connection.
func New(world config.WorldConfig, opts ...Option) (*Server, error) {
	if _, err := world.Build(); err != nil {
		return nil, err
	}

	s := &Server{
		world: world,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow connections from any origin
			},
		},
		sessions: make(map[string]*environment.World),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.broker == nil {
		s.broker = messaging.NewBroker()
	}
	if s.logger == nil {
		s.logger = logging.New("SERVER", logging.ColorServer, os.Stderr)
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/env", s.handleEnv)
	mux.HandleFunc("/watch", s.handleWatch)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.Sessions(),
	})
}

func (s *Server) handleEnv(w http.ResponseWriter, r *http.Request) {
	world, err := s.world.Build()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	id := uuid.New().String()
	if err := world.Start(); err != nil {
		s.logger.Errorf("session %s: %v", id, err)
		return
	}
	s.mu.Lock()
	s.sessions[id] = world
	s.mu.Unlock()
	s.logger.Infof("session %s connected", id)

	defer func() {
		world.Stop()
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		s.logger.Infof("session %s disconnected", id)
	}()

	obs := world.Observe()
	if err := conn.WriteJSON(Response{Type: ResponseHello, Session: id, Observation: &obs}); err != nil {
		s.logger.Warnf("session %s: failed to send hello: %v", id, err)
		return
	}

	step := 0
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debugf("session %s: read failed: %v", id, err)
			}
			return
		}

		resp := s.apply(id, world, req, &step)
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Warnf("session %s: write failed: %v", id, err)
			return
		}
	}
}

func (s *Server) apply(id string, world *environment.World, req Request, step *int) Response {
	resp := Response{Session: id}

	switch req.Type {
	case RequestReset:
		world.Reset()
		*step = 0
		resp.Type = ResponseObservation
	case RequestObserve:
		resp.Type = ResponseObservation
	case RequestStep:
		if len(req.Action) == 0 {
			return errorResponse(id, fmt.Errorf("empty action: %w", agent.ErrActionShape))
		}
		action := mat.NewVecDense(len(req.Action), req.Action)
		tr, err := world.Step(req.Actor, action)
		if err != nil {
			return errorResponse(id, err)
		}
		*step++
		s.publishStep(id, *step, req.Actor, action, tr)

		resp.Type = ResponseStep
		resp.Transition = &tr
		resp.Reward = tr.Reward
		resp.Done = tr.Done
	default:
		return errorResponse(id, fmt.Errorf("unknown request type %q", req.Type))
	}

	obs := world.Observe()
	resp.Observation = &obs
	resp.Return = world.PerformanceReturn()
	return resp
}

func errorResponse(id string, err error) Response {
	return Response{Type: ResponseError, Session: id, Error: err.Error()}
}

func (s *Server) publishStep(id string, step, actor int, action mat.Matrix, tr core.Transition) {
	move, err := agent.DecodeAction(action)
	if err != nil {
		return
	}
	err = s.broker.Publish(messaging.Message{
		From: id,
		Content: messaging.StepEvent{
			RunID:      id,
			Step:       step,
			Actor:      actor,
			Action:     move.String(),
			Transition: tr,
		},
		Timestamp: time.Now(),
	})
	if err != nil {
		s.logger.Warnf("session %s: %v", id, err)
	}
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := "watch-" + uuid.New().String()
	inbox := make(chan messaging.Message, watchBuffer)
	if err := s.broker.Subscribe(id, inbox); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer s.broker.Unsubscribe(id)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	// reads only detect the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case msg := <-inbox:
			event := WatchEvent{From: msg.From, Event: msg.Content}
			switch msg.Content.(type) {
			case messaging.StepEvent:
				event.Type = "step"
			case messaging.EpisodeEvent:
				event.Type = "episode"
			default:
				event.Type = "message"
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
