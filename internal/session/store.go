// Package session keeps one catalog controller per browser session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/cocktail-catalog/internal/catalog"
)

// Factory builds the controller of a new session. ctx outlives the request
// that created the session and carries a session scoped logger.
type Factory func(ctx context.Context) (*catalog.Controller, error)

// Config bounds the store.
type Config struct {
	// IdleTTL is how long an untouched session is kept.
	IdleTTL time.Duration
	// MaxSessions caps live sessions; the least recently used one is evicted
	// to make room. Zero means unbounded.
	MaxSessions int
}

type entry struct {
	ctrl     *catalog.Controller
	lastSeen time.Time
}

// Store maps session ids to started controllers.
type Store struct {
	ctx     context.Context
	factory Factory
	cfg     Config
	now     func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
}

// New returns an empty store. ctx is the parent of every session context.
func New(ctx context.Context, factory Factory, cfg Config) *Store {
	return &Store{
		ctx:      ctx,
		factory:  factory,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*entry),
	}
}

// Get returns the controller of an existing session and refreshes its idle
// timer.
func (s *Store) Get(id string) (*catalog.Controller, bool) {
	key, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[key]
	if !ok {
		return nil, false
	}
	e.lastSeen = s.now()
	return e.ctrl, true
}

// Has reports whether id names a live session without touching it.
func (s *Store) Has(id string) bool {
	key, err := uuid.Parse(id)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[key]
	return ok
}

// Acquire returns the session for id, creating and starting a new one when id
// is unknown or malformed. The returned id is the one to hand back to the
// client.
func (s *Store) Acquire(id string) (string, *catalog.Controller, error) {
	if ctrl, ok := s.Get(id); ok {
		return id, ctrl, nil
	}

	key := uuid.New()
	ctx := zctx.With(s.ctx, zap.String("session", key.String()))
	ctrl, err := s.factory(ctx)
	if err != nil {
		return "", nil, errors.Wrap(err, "create controller")
	}

	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.evictOldestLocked()
	}
	s.sessions[key] = &entry{ctrl: ctrl, lastSeen: s.now()}
	s.mu.Unlock()

	ctrl.Start()
	zctx.From(ctx).Debug("Session started")
	return key.String(), ctrl, nil
}

func (s *Store) evictOldestLocked() {
	var (
		oldest uuid.UUID
		seen   time.Time
		found  bool
	)
	for key, e := range s.sessions {
		if !found || e.lastSeen.Before(seen) {
			oldest, seen, found = key, e.lastSeen, true
		}
	}
	if found {
		delete(s.sessions, oldest)
		zctx.From(s.ctx).Debug("Session evicted", zap.String("session", oldest.String()))
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than IdleTTL and returns how many were
// dropped.
func (s *Store) Sweep() int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}
	deadline := s.now().Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, e := range s.sessions {
		if e.lastSeen.Before(deadline) {
			delete(s.sessions, key)
			n++
		}
	}
	return n
}

// Run sweeps idle sessions until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	if s.cfg.IdleTTL <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(max(time.Second, s.cfg.IdleTTL/2))
	defer ticker.Stop()

	lg := zctx.From(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				lg.Debug("Idle sessions dropped", zap.Int("count", n), zap.Int("live", s.Len()))
			}
		}
	}
}
