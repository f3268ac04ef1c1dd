package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"songswipe/internal/core"
	"songswipe/internal/gesture"
)

// DefaultMaxSessions bounds the number of live sessions; the least recently used is dropped.
const DefaultMaxSessions = 1024

// DefaultCommitTimeout bounds the advance or rebuild triggered by one decision.
const DefaultCommitTimeout = 30 * time.Second

// CommitFunc is called after a gesture decision was applied to the controller.
type CommitFunc func(s *Session, d core.Decision, err error)

// Session pairs a controller with the gesture machine of its card surface.
type Session struct {
	ID         string
	Controller *Controller
	Gesture    *gesture.Machine
}

// Factory creates the controller for a new session.
type Factory func(id string) *Controller

type Manager struct {
	logger        *zap.Logger
	factory       Factory
	afterCommit   CommitFunc
	commitTimeout time.Duration
	gestureOpts   []gesture.Option

	mu       sync.Mutex
	sessions *lru.Cache[string, *Session]
}

type ManagerOption func(*Manager)

// WithAfterCommit registers a hook run after each gesture decision, e.g. to redraw a card.
func WithAfterCommit(f CommitFunc) ManagerOption {
	return func(m *Manager) { m.afterCommit = f }
}

func WithGestureOptions(opts ...gesture.Option) ManagerOption {
	return func(m *Manager) { m.gestureOpts = opts }
}

func WithCommitTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.commitTimeout = d }
}

func NewManager(size int, factory Factory, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	m := &Manager{
		logger:        logger.Named("sessions"),
		factory:       factory,
		commitTimeout: DefaultCommitTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	cache, _ := lru.NewWithEvict[string, *Session](size, func(id string, s *Session) {
		s.Gesture.Stop()
		m.logger.Debug("Session evicted", zap.String("session", id))
	})
	m.sessions = cache
	return m
}

// NewID returns a fresh random session identifier.
func NewID() string {
	return uuid.New().String()
}

// Get returns the session for id, creating it on first use.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions.Get(id); ok {
		return s
	}

	s := &Session{ID: id, Controller: m.factory(id)}
	s.Gesture = gesture.New(func(d core.Decision) { m.commit(s, d) }, m.gestureOpts...)
	m.sessions.Add(id, s)
	m.logger.Debug("Session created", zap.String("session", id))
	return s
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions.Get(id)
}

func (m *Manager) Len() int {
	return m.sessions.Len()
}

func (m *Manager) commit(s *Session, d core.Decision) {
	ctx, cancel := context.WithTimeout(context.Background(), m.commitTimeout)
	defer cancel()

	err := s.Controller.OnGestureCommitted(ctx, d)
	if err != nil {
		m.logger.Warn("Decision not applied",
			zap.String("session", s.ID),
			zap.String("decision", d.String()),
			zap.Error(err))
	}
	if m.afterCommit != nil {
		m.afterCommit(s, d, err)
	}
}
