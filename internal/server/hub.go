package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"DialogueWidget/internal/interpreter"
)

const sendQueueSize = 32

var (
	errSessionClosed = errors.New("server: session closed")
	errQueueFull     = errors.New("server: send queue full")
)

// Session is one connected visitor and the interpreter driving them.
type Session struct {
	ID     string
	Interp *interpreter.Interpreter

	engine *remoteEngine
	out    chan outboundMessage
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	lastSeen time.Time
}

func newSession(parent context.Context, id string) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ID:       id,
		out:      make(chan outboundMessage, sendQueueSize),
		ctx:      ctx,
		cancel:   cancel,
		lastSeen: time.Now(),
	}
	s.engine = &remoteEngine{send: s.enqueue}
	return s
}

// enqueue hands msg to the writer without blocking.
func (s *Session) enqueue(msg outboundMessage) error {
	if s.ctx.Err() != nil {
		return errSessionClosed
	}
	select {
	case s.out <- msg:
		return nil
	default:
		return errQueueFull
	}
}

// Touch records client activity.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Close ends the session; the connection handler tears down the rest.
func (s *Session) Close() {
	s.cancel()
}

// Done is closed once the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Hub tracks live sessions.
type Hub struct {
	Sessions map[string]*Session
	Mu       sync.Mutex
}

func NewHub() *Hub { return &Hub{Sessions: map[string]*Session{}} }

func (h *Hub) Add(s *Session) {
	h.Mu.Lock()
	h.Sessions[s.ID] = s
	h.Mu.Unlock()
}

func (h *Hub) Remove(id string) {
	h.Mu.Lock()
	delete(h.Sessions, id)
	h.Mu.Unlock()
}

func (h *Hub) Get(id string) *Session {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return h.Sessions[id]
}

func (h *Hub) Len() int {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return len(h.Sessions)
}

// CleanupIdle closes sessions without client activity for maxIdle and
// returns how many it closed.
func (h *Hub) CleanupIdle(maxIdle time.Duration) int {
	now := time.Now()
	var idle []*Session
	h.Mu.Lock()
	for id, s := range h.Sessions {
		if s.idleFor(now) >= maxIdle {
			idle = append(idle, s)
			delete(h.Sessions, id)
		}
	}
	h.Mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// CloseAll closes every session.
func (h *Hub) CloseAll() {
	h.Mu.Lock()
	sessions := make([]*Session, 0, len(h.Sessions))
	for id, s := range h.Sessions {
		sessions = append(sessions, s)
		delete(h.Sessions, id)
	}
	h.Mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
