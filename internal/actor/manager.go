package actor

import (
	"context"
	"sync"

	"github.com/soyeahso/minder/internal/domain"
	"github.com/soyeahso/minder/internal/logging"
	"github.com/soyeahso/minder/internal/protocol"
)

// Manager spawns and indexes actors by user id. It is the only place actors
// are created, so there is never more than one goroutine owning a user.
type Manager struct {
	mu      sync.Mutex
	actors  map[string]*Actor
	deps    Deps
	reg     *Registry
	log     *logging.Logger
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewManager creates an actor manager with its own connection registry.
func NewManager(deps Deps, log *logging.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		actors:  make(map[string]*Actor),
		deps:    deps,
		reg:     NewRegistry(log),
		log:     log.Sub("manager"),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Registry exposes the connection registry for the transport layer.
func (m *Manager) Registry() *Registry { return m.reg }

// ActorFor returns the user's actor, spawning and activating one if needed.
func (m *Manager) ActorFor(userID string) *Actor {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.actors[userID]; ok {
		select {
		case <-a.Done():
			// Fell idle between lookup and use; replace it.
		default:
			return a
		}
	}

	a := New(userID, m.deps, m.log)
	a.onIdle = m.evict
	m.actors[userID] = a
	a.Start(m.baseCtx)
	m.log.Debug().Str("userId", userID).Msg("actor spawned")
	return a
}

// Attach binds a connection to a user and wires it into the user's actor.
// The registry decides whether the claimed identity is acceptable.
func (m *Manager) Attach(h Handle, userID string) (domain.Session, *Actor, error) {
	sess, err := m.reg.Register(h, userID)
	if err != nil {
		return domain.Session{}, nil, err
	}

	a := m.ActorFor(sess.UserID)
	if err := a.Attach(h); err != nil {
		m.reg.Unregister(h.ID())
		return domain.Session{}, nil, err
	}
	return sess, a, nil
}

// Recover re-binds a connection whose session index entry is gone, using the
// registry's attachment and tag fallbacks.
func (m *Manager) Recover(h Handle) (domain.Session, *Actor, error) {
	sess, err := m.reg.Resolve(h)
	if err != nil {
		return domain.Session{}, nil, err
	}

	a := m.ActorFor(sess.UserID)
	if err := a.Attach(h); err != nil {
		return domain.Session{}, nil, err
	}
	return sess, a, nil
}

// Detach unbinds a closed connection from its session and actor.
func (m *Manager) Detach(h Handle) {
	sess, err := m.reg.Resolve(h)
	m.reg.Unregister(h.ID())
	if err != nil {
		return
	}

	m.mu.Lock()
	a, ok := m.actors[sess.UserID]
	m.mu.Unlock()
	if ok {
		_ = a.Detach(h)
	}
}

// Deliver routes a parsed frame to the right actor. The session must resolve
// first; a connection nothing can identify gets session_lost.
func (m *Manager) Deliver(frame protocol.Inbound, h Handle) error {
	sess, err := m.reg.Resolve(h)
	if err != nil {
		return err
	}
	return m.ActorFor(sess.UserID).Deliver(frame, h)
}

// ActiveActors reports how many actors are currently resident.
func (m *Manager) ActiveActors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actors)
}

// ActiveSessions reports how many connections are registered.
func (m *Manager) ActiveSessions() int { return m.reg.Len() }

// Shutdown stops every actor. Each loop persists its state on the way out.
func (m *Manager) Shutdown() {
	m.cancel()
	m.mu.Lock()
	actors := make([]*Actor, 0, len(m.actors))
	for _, a := range m.actors {
		actors = append(actors, a)
	}
	m.actors = make(map[string]*Actor)
	m.mu.Unlock()

	for _, a := range actors {
		<-a.Done()
	}
	m.log.Info().Int("actors", len(actors)).Msg("actor manager shut down")
}

// evict drops a hibernating actor from the index. The actor drains its
// mailbox after calling this, so frames that raced the hibernation are still
// handled; anything newer goes to a fresh actor via ActorFor.
func (m *Manager) evict(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.actors, userID)
}
