package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/cart"
	"github.com/safar/go-storefront/internal/checkout"
	"go.uber.org/zap"
)

const (
	SessionHeader = "X-Session-ID"
	sessionCookie = "session_id"
)

// CartFactory builds the cart for a new browsing session.
type CartFactory func(ctx context.Context, sessionID string) *cart.Store

// FlowFactory builds a checkout flow over a session's cart.
type FlowFactory func(c *cart.Store) *checkout.Flow

// Session is one browser's cart plus its current checkout attempt.
type Session struct {
	ID   string
	Cart *cart.Store

	mu       sync.Mutex
	flow     *checkout.Flow
	newFlow  FlowFactory
	lastSeen time.Time
	// exited flows whose hand-off has not fired yet
	retired []*checkout.Flow
	orders  []int64
}

// Flow returns the active checkout flow. A flow that ended in Exited is
// replaced by a fresh one in Reviewing; it is kept until its hand-off fires so
// closing the session still cancels it.
func (s *Session) Flow() *checkout.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow.State() == checkout.StateExited {
		s.retired = append(s.retired, s.flow)
		s.flow = s.newFlow(s.Cart)
	}
	live := s.retired[:0]
	for _, f := range s.retired {
		if f.PendingHandoffs() > 0 {
			live = append(live, f)
		}
	}
	s.retired = live
	return s.flow
}

func (s *Session) recordOrder(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, id)
}

func (s *Session) ownsOrder(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, own := range s.orders {
		if own == id {
			return true
		}
	}
	return false
}

func (s *Session) orderIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.orders...)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flow.Close()
	for _, f := range s.retired {
		f.Close()
	}
	s.retired = nil
}

// Sessions keeps the live browsing sessions. Nothing is shared between them.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	newCart  CartFactory
	newFlow  FlowFactory
	idle     time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewSessions(newCart CartFactory, newFlow FlowFactory, idle time.Duration, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{
		sessions: make(map[string]*Session),
		newCart:  newCart,
		newFlow:  newFlow,
		idle:     idle,
		now:      time.Now,
		logger:   logger,
	}
}

// Get returns the session for id, creating it (and loading a durable cart) on
// first use.
func (s *Sessions) Get(ctx context.Context, id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions[id]; ok {
		sess.touch(now)
		return sess
	}

	c := s.newCart(ctx, id)
	sess := &Session{
		ID:       id,
		Cart:     c,
		flow:     s.newFlow(c),
		newFlow:  s.newFlow,
		lastSeen: now,
	}
	s.sessions[id] = sess
	s.logger.Debug("session started", zap.String("session_id", id), zap.Bool("durable", c.Durable()))
	return sess
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes and forgets sessions idle for longer than the idle timeout.
// A durable cart survives in its slot and is reloaded on the next visit.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if sess.idleSince(now) <= s.idle {
			continue
		}
		sess.close()
		delete(s.sessions, id)
		removed++
	}
	if removed > 0 {
		s.logger.Info("idle sessions closed", zap.Int("count", removed), zap.Int("remaining", len(s.sessions)))
	}
	return removed
}

// Run sweeps idle sessions until ctx is done.
func (s *Sessions) Run(ctx context.Context) {
	interval := s.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// CloseAll tears down every session. Used on shutdown.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		sess.close()
		delete(s.sessions, id)
	}
}

type sessionKey struct{}

// Middleware resolves the caller's session from the X-Session-ID header or
// the session cookie, issuing a new id when neither carries a valid one.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			if c, err := r.Cookie(sessionCookie); err == nil {
				id = c.Value
			}
		}
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w.Header().Set(SessionHeader, id)
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		sess := s.Get(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey{}).(*Session)
	return sess
}
