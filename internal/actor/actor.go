// Package actor hosts one goroutine per user. Each actor owns its user's
// working state outright: events arrive through a mailbox, are handled one
// at a time, and state is persisted after every mutating event. Actors
// hibernate when idle and are rebuilt on demand from the durable store.
package actor

import (
	"context"
	"time"

	"github.com/soyeahso/minder/internal/domain"
	"github.com/soyeahso/minder/internal/llm"
	"github.com/soyeahso/minder/internal/logging"
	"github.com/soyeahso/minder/internal/protocol"
	"github.com/soyeahso/minder/internal/ratelimit"
	"github.com/soyeahso/minder/internal/retrieval"
	"github.com/soyeahso/minder/internal/store"
	"github.com/soyeahso/minder/internal/workflow"
)

// mailboxSize bounds how many events can queue per actor before delivery
// blocks.
const mailboxSize = 64

// DefaultIdleTimeout is how long a connectionless, inactive actor lingers
// before hibernating.
const DefaultIdleTimeout = 10 * time.Minute

// Limits configures the per-user sliding-window rate limits.
type Limits struct {
	ChatCalls int
	TaskCalls int
	Window    time.Duration
}

// DefaultLimits allows 10 chat turns and 60 task operations per minute.
func DefaultLimits() Limits {
	return Limits{
		ChatCalls: 10,
		TaskCalls: 60,
		Window:    time.Minute,
	}
}

// Deps are the collaborators an actor needs. All of them are shared across
// actors; per-user isolation comes from the actor loop, not from the deps.
type Deps struct {
	State       *store.StateStore
	Messages    *store.MessageStore
	Tasks       *store.TaskStore
	Knowledge   *store.KnowledgeStore
	Model       llm.Client
	Search      retrieval.Searcher
	Limiter     *ratelimit.Limiter
	Engine      *workflow.Engine
	Limits      Limits
	Prompt      string
	MaxTokens   int // context token budget for history assembly
	MaxMessages int // context message cap for history assembly
	TopK        int
	ReplyTokens int // completion output cap, zero means provider default
	Temperature *float64
	IdleTimeout time.Duration
}

type eventKind int

const (
	evFrame eventKind = iota
	evAttach
	evDetach
)

type event struct {
	kind   eventKind
	frame  protocol.Inbound
	handle Handle
}

// Actor is the single-threaded owner of one user's state.
type Actor struct {
	userID  string
	mailbox chan event
	deps    Deps
	log     *logging.Logger
	now     func() time.Time

	// Everything below is touched only by the run goroutine.
	state   *domain.ActorState
	handles map[string]Handle

	idleTimeout time.Duration
	onIdle      func(userID string)
	done        chan struct{}
}

// New creates an actor for a user. Call Start to activate it.
func New(userID string, deps Deps, log *logging.Logger) *Actor {
	if deps.Limits.Window == 0 {
		deps.Limits = DefaultLimits()
	}
	idleTimeout := deps.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Actor{
		userID:      userID,
		mailbox:     make(chan event, mailboxSize),
		deps:        deps,
		log:         log.Sub("actor").ForUser(userID),
		now:         time.Now,
		handles:     make(map[string]Handle),
		idleTimeout: idleTimeout,
		done:        make(chan struct{}),
	}
}

// Start activates the actor: durable state is loaded before the first event
// is consumed, so no handler ever observes a half-built actor.
func (a *Actor) Start(ctx context.Context) {
	go a.run(ctx)
}

// Deliver queues an inbound frame from a connection.
func (a *Actor) Deliver(frame protocol.Inbound, h Handle) error {
	return a.enqueue(event{kind: evFrame, frame: frame, handle: h})
}

// Attach adds a live connection to the actor.
func (a *Actor) Attach(h Handle) error {
	return a.enqueue(event{kind: evAttach, handle: h})
}

// Detach removes a connection from the actor.
func (a *Actor) Detach(h Handle) error {
	return a.enqueue(event{kind: evDetach, handle: h})
}

func (a *Actor) enqueue(ev event) error {
	select {
	case a.mailbox <- ev:
		return nil
	case <-a.done:
		return domain.NewError(domain.CodeSessionLost, "actor is shut down")
	}
}

// Done is closed when the actor's run loop exits.
func (a *Actor) Done() <-chan struct{} { return a.done }

func (a *Actor) run(ctx context.Context) {
	defer close(a.done)

	if err := a.activate(); err != nil {
		a.log.Error().Err(err).Msg("actor activation failed")
		return
	}

	idle := time.NewTimer(a.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			a.persist()
			return
		case ev := <-a.mailbox:
			a.dispatch(ctx, ev)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(a.idleTimeout)
		case <-idle.C:
			if len(a.handles) == 0 {
				a.hibernate(ctx)
				return
			}
			idle.Reset(a.idleTimeout)
		}
	}
}

// hibernate deregisters the actor and drains events that raced the idle
// timer before the loop exits. Later frames route to a fresh actor.
func (a *Actor) hibernate(ctx context.Context) {
	if a.onIdle != nil {
		a.onIdle(a.userID)
	}
	for {
		select {
		case ev := <-a.mailbox:
			a.dispatch(ctx, ev)
		default:
			a.persist()
			a.log.Debug().Msg("actor hibernating")
			return
		}
	}
}

// activate loads the durable state blob, or rebuilds the working set from
// the conversation log when no blob exists.
func (a *Actor) activate() error {
	state, version, err := a.deps.State.Load(a.userID)
	if err != nil {
		return err
	}
	if state == nil {
		history, err := a.deps.Messages.History(a.userID, domain.HistoryWindow)
		if err != nil {
			return err
		}
		state = &domain.ActorState{
			UserID:  a.userID,
			History: history,
		}
		a.log.Info().Int("messages", len(history)).Msg("actor state rebuilt from conversation log")
	} else {
		a.log.Debug().Int64("version", version).Msg("actor state loaded")
	}
	a.state = state
	return nil
}

func (a *Actor) dispatch(ctx context.Context, ev event) {
	switch ev.kind {
	case evAttach:
		a.handles[ev.handle.ID()] = ev.handle
		a.state.Connections = len(a.handles)
		a.state.LastActivity = a.now().UTC()
		a.persist()
	case evDetach:
		delete(a.handles, ev.handle.ID())
		a.state.Connections = len(a.handles)
		a.persist()
	case evFrame:
		a.handleFrame(ctx, ev.frame, ev.handle)
	}
}

// persist writes the state blob. Persistence failures are logged, not
// propagated: the log remains the source of truth and the blob is rebuilt
// from it next activation.
func (a *Actor) persist() {
	if a.state == nil {
		return
	}
	if err := a.deps.State.Save(a.userID, a.state); err != nil {
		a.log.Error().Err(err).Msg("persisting actor state failed")
	}
}

// send writes a frame to one handle, logging delivery failures.
func (a *Actor) send(h Handle, v any) {
	if h == nil {
		return
	}
	if err := h.Send(v); err != nil {
		a.log.Warn().Err(err).Str("connId", h.ID()).Msg("sending frame failed")
	}
}
