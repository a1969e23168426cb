package actor

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/minder/internal/domain"
	"github.com/soyeahso/minder/internal/logging"
)

// Handle is one live client connection as the actor layer sees it. The
// attachment is a small blob the transport keeps pinned to the connection
// for its lifetime; it survives a process restart as long as the connection
// itself does, which is what makes session recovery possible.
type Handle interface {
	ID() string
	SetAttachment(data []byte)
	Attachment() []byte
	Tag() string
	Send(v any) error
	Close() error
}

// Registry maps live connections to user sessions. Its in-memory index is a
// cache: after a restart the map is empty and sessions are rebuilt from
// connection attachments, falling back to the transport tag.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	log      *logging.Logger
	now      func() time.Time
}

// NewRegistry creates an empty connection registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]domain.Session),
		log:      log.Sub("registry"),
		now:      time.Now,
	}
}

// Register binds a connection to a claimed user identity. If the connection
// already carries an attachment for a different user, the claim is rejected
// with a conflict: the attachment is the canonical record.
func (r *Registry) Register(h Handle, userID string) (domain.Session, error) {
	if userID == "" {
		return domain.Session{}, domain.ErrValidation("user id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := sessionFromAttachment(h); ok && prior.UserID != userID {
		return domain.Session{}, domain.NewError(domain.CodeConflict,
			"connection already bound to another user")
	}

	sess := domain.Session{
		ConnID:      h.ID(),
		UserID:      userID,
		ConnectedAt: r.now().UTC(),
	}
	if existing, ok := r.sessions[h.ID()]; ok {
		if existing.UserID != userID {
			return domain.Session{}, domain.NewError(domain.CodeConflict,
				"connection already bound to another user")
		}
		sess = existing
	}

	r.sessions[h.ID()] = sess
	r.attach(h, sess)
	r.log.Debug().Str("connId", sess.ConnID).Str("userId", sess.UserID).Msg("session registered")
	return sess, nil
}

// Resolve recovers the session for a connection. Lookup order: the in-memory
// index, then the connection attachment, then the transport tag. Only when
// all three come up empty is the session lost.
func (r *Registry) Resolve(h Handle) (domain.Session, error) {
	r.mu.Lock()
	if sess, ok := r.sessions[h.ID()]; ok {
		r.mu.Unlock()
		return sess, nil
	}
	r.mu.Unlock()

	if sess, ok := sessionFromAttachment(h); ok {
		r.mu.Lock()
		r.sessions[h.ID()] = sess
		r.mu.Unlock()
		r.log.Info().Str("connId", sess.ConnID).Str("userId", sess.UserID).
			Msg("session recovered from attachment")
		return sess, nil
	}

	if tag := h.Tag(); tag != "" {
		r.log.Info().Str("connId", h.ID()).Str("tag", tag).
			Msg("session rebuilt from transport tag")
		return r.Register(h, tag)
	}

	return domain.Session{}, domain.NewError(domain.CodeSessionLost, "session cannot be recovered")
}

// Unregister drops a connection from the index. The attachment is left in
// place; the transport discards it when the connection actually closes.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connID)
}

// Forget clears the in-memory index, simulating what a process restart does
// to it. Attachments held by live connections are untouched.
func (r *Registry) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]domain.Session)
}

// Len reports how many live sessions the index holds.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// attach pins the session to the connection. Caller holds the lock.
func (r *Registry) attach(h Handle, sess domain.Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		r.log.Error().Err(err).Str("connId", sess.ConnID).Msg("encoding session attachment failed")
		return
	}
	h.SetAttachment(data)
}

func sessionFromAttachment(h Handle) (domain.Session, bool) {
	data := h.Attachment()
	if len(data) == 0 {
		return domain.Session{}, false
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil || sess.UserID == "" {
		return domain.Session{}, false
	}
	return sess, true
}

// NewConnID mints a connection id for transports that do not have a natural
// one.
func NewConnID() string {
	return uuid.New().String()
}
