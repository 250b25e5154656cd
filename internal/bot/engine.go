// ABOUTME: Turn engine: dedupe, per-conversation locking, session load/save and the effect loop
// ABOUTME: HandleEvent turns one inbound chat event into exactly one render instruction

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vistly/vistly-bot/internal/dedupe"
	"github.com/vistly/vistly-bot/internal/flow"
	"github.com/vistly/vistly-bot/internal/i18n"
	"github.com/vistly/vistly-bot/internal/metrics"
	"github.com/vistly/vistly-bot/internal/provider"
	"github.com/vistly/vistly-bot/internal/render"
	"github.com/vistly/vistly-bot/internal/store"
)

// DefaultTurnTimeout bounds a turn when Config.TurnTimeout is zero
const DefaultTurnTimeout = 30 * time.Second

// saveTimeout bounds the session write that closes a turn, which is
// detached from the turn deadline
const saveTimeout = 5 * time.Second

// Inbound is one chat event as delivered by a frontend
type Inbound struct {
	// Frontend names the transport, e.g. "telegram"
	Frontend string
	// ConversationID is the chat the event belongs to, unique per frontend
	ConversationID string
	// EventID is the transport's update id; empty disables redelivery checks
	EventID string

	ExternalUserID string
	Username       string
	Name           string
	// LanguageCode is the client's IETF language hint, used before the user
	// has picked a language
	LanguageCode string

	Event flow.Event
}

// Key is the session key of the conversation
func (in Inbound) Key() string {
	return in.Frontend + ":" + in.ConversationID
}

// Config holds the engine's collaborators
type Config struct {
	Store     store.Store
	Providers provider.Set
	Sessions  SessionStore
	Renderer  *render.Renderer
	// Dedupe is optional; nil accepts every event
	Dedupe      *dedupe.Window
	Metrics     metrics.Recorder
	TurnTimeout time.Duration
	Logger      *slog.Logger
}

// Engine runs conversation turns. It is safe for concurrent use; turns of
// the same conversation are serialized.
type Engine struct {
	store       store.Store
	providers   provider.Set
	sessions    SessionStore
	renderer    *render.Renderer
	machine     *flow.Machine
	dedupe      *dedupe.Window
	locks       *keyedMutex
	metrics     metrics.Recorder
	turnTimeout time.Duration
	logger      *slog.Logger
}

// New validates cfg and builds an Engine
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("bot: store is required")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("bot: renderer is required")
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewMemorySessions()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = DefaultTurnTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Providers == nil {
		cfg.Providers = provider.Set{}
	}

	return &Engine{
		store:       cfg.Store,
		providers:   cfg.Providers,
		sessions:    cfg.Sessions,
		renderer:    cfg.Renderer,
		machine:     flow.NewMachine(cfg.Renderer.Catalog()),
		dedupe:      cfg.Dedupe,
		locks:       newKeyedMutex(),
		metrics:     cfg.Metrics,
		turnTimeout: cfg.TurnTimeout,
		logger:      cfg.Logger.With("component", "engine"),
	}, nil
}

// Sessions returns the session store the engine uses
func (e *Engine) Sessions() SessionStore { return e.sessions }

// HandleEvent runs one turn. It never returns an error: failures are logged
// and rendered as a localized message, and redelivered events yield NoOp.
func (e *Engine) HandleEvent(ctx context.Context, in Inbound) (reply render.Instruction) {
	start := time.Now()
	if e.dedupe != nil && in.EventID != "" && e.dedupe.Seen(in.Frontend+":"+in.EventID) {
		e.metrics.RecordDuplicate(in.Frontend)
		e.logger.Debug("dropping redelivered event", "frontend", in.Frontend, "event_id", in.EventID)
		return render.Instruction{Kind: render.NoOp}
	}

	key := in.Key()
	unlock, err := e.locks.Lock(ctx, key)
	if err != nil {
		e.logger.Warn("turn abandoned waiting for conversation lock", "conversation", key, "error", err)
		e.metrics.ObserveTurn(metrics.TurnTimeout, time.Since(start))
		return render.Instruction{Kind: render.NoOp}
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()

	t := &turn{
		engine:    e,
		ctx:       ctx,
		in:        in,
		preferred: i18n.Match(in.LanguageCode),
		logger:    e.logger.With("turn_id", uuid.NewString(), "conversation", key),
	}

	outcome := metrics.TurnOK
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in turn", "panic", r)
			outcome = metrics.TurnPanic
			reply = e.renderer.Message(t.lang(), i18n.KeyError, nil, true)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && outcome == metrics.TurnOK {
			outcome = metrics.TurnTimeout
		}
		e.metrics.ObserveTurn(outcome, time.Since(start))
	}()

	reply, err = t.run()
	if err != nil {
		outcome = metrics.TurnFailed
		t.logger.Error("turn failed", "error", err)
		reply = e.renderer.Message(t.lang(), i18n.KeyError, nil, true)
	}
	return reply
}

// turn is the state of one HandleEvent call
type turn struct {
	engine    *Engine
	ctx       context.Context
	in        Inbound
	user      *store.User
	session   *flow.Session
	preferred string
	logger    *slog.Logger
}

// lang is the interface language for rendering. Until the user picks one
// the client hint decides.
func (t *turn) lang() string {
	if t.session != nil && t.session.Language != "" {
		return t.session.Language
	}
	if t.user != nil && t.user.Language != "" {
		return t.user.Language
	}
	return t.preferred
}

func (t *turn) run() (render.Instruction, error) {
	e := t.engine
	start := time.Now()

	user, err := retryConflict(func() (*store.User, error) {
		return e.store.GetOrCreateUser(t.ctx, t.in.Frontend, t.in.ExternalUserID, t.in.Username, t.in.Name)
	})
	if err != nil {
		return render.Instruction{}, fmt.Errorf("resolving user: %w", err)
	}
	t.user = user

	sess, err := e.sessions.Load(t.ctx, t.in.Key())
	if err != nil {
		t.logger.Warn("starting fresh session", "error", err)
		sess = flow.NewSession(t.in.Key())
	}
	sess.Language = user.Language
	t.session = sess
	from := sess.State

	reply := render.Instruction{Kind: render.NoOp}
	effects := e.machine.Step(sess, t.in.Event).Effects
	redirects := 0
	for i := 0; i < len(effects); i++ {
		eff := effects[i]
		out, in := t.execute(eff)
		if in != nil {
			reply = *in
		}
		if f, ok := out.(flow.Failed); ok {
			e.metrics.RecordEffectFailure(eff.Name(), f.Kind.String())
			t.logger.Warn("effect failed", "effect", eff.Name(), "kind", f.Kind.String(), "error", f.Err)
		}

		next := e.machine.Observe(sess, eff, out)
		if next == nil {
			continue
		}
		redirects++
		e.metrics.RecordRedirect()
		if redirects > flow.MaxRedirects {
			t.logger.Error("redirect limit exceeded", "effect", eff.Name(), "state", sess.State)
			sess.Reset()
			reply = e.renderer.Message(t.lang(), i18n.KeyError, nil, true)
			break
		}
		effects = next.Effects
		i = -1
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(t.ctx), saveTimeout)
	defer cancel()
	if err := e.sessions.Save(saveCtx, sess); err != nil {
		t.logger.Error("saving session", "error", err)
	}

	t.logger.Debug("turn handled",
		"from", from,
		"to", sess.State,
		"reply", reply.Kind.String(),
		"duration", time.Since(start),
	)
	return reply, nil
}

// retryConflict runs fn and retries it once when the store reports a
// concurrent-write conflict.
func retryConflict[T any](fn func() (T, error)) (T, error) {
	v, err := fn()
	if errors.Is(err, store.ErrConflict) {
		v, err = fn()
	}
	return v, err
}

// classify maps collaborator errors onto failure kinds
func classify(err error) flow.FailureKind {
	switch {
	case errors.Is(err, provider.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return flow.FailureProviderUnavailable
	case errors.Is(err, provider.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return flow.FailureNotFound
	case errors.Is(err, store.ErrConflict):
		return flow.FailurePersistenceConflict
	default:
		return flow.FailureInternal
	}
}

func failed(err error) flow.Outcome {
	return flow.Failed{Kind: classify(err), Err: err}
}
