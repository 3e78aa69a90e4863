package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Alex-Men-VL/sell-pizza/internal/customers"
	"github.com/Alex-Men-VL/sell-pizza/internal/logger"
	"github.com/Alex-Men-VL/sell-pizza/internal/session"
)

// Dispatcher serializes events per user, runs the transition and its
// effects and commits the session once at the end. Two events for the same
// user never interleave; different users proceed concurrently.
type Dispatcher struct {
	store session.Store
	env   *Env

	locks sync.Map // userKey -> *sync.Mutex
}

func NewDispatcher(store session.Store, env *Env) *Dispatcher {
	return &Dispatcher{store: store, env: env}
}

func (d *Dispatcher) userLock(userKey string) *sync.Mutex {
	mu, _ := d.locks.LoadOrStore(userKey, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Dispatch handles one inbound event end to end. A contract violation or a
// transport failure drops the event and leaves the stored session intact;
// a recoverable validation failure re-prompts the user and keeps the prior
// state.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	mu := d.userLock(ev.UserKey)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	ctx = logger.WithUserKey(ctx, ev.UserKey)

	sess, err := d.loadSession(ctx, ev.UserKey)
	if err != nil {
		logger.Error(ctx, "dispatcher", "session.load_failed", slog.String("err", err.Error()))
		return err
	}
	if !sess.State.Valid() {
		logger.Error(ctx, "dispatcher", "session.unknown_state",
			slog.String("state", string(sess.State)))
		return ErrUnknownState
	}
	d.hydrateCustomer(ctx, ev.UserKey, sess)

	prior := sess.State
	next, effects, err := Transition(sess.State, ev, *sess)
	if err != nil {
		logger.Error(ctx, "dispatcher", "event.dropped",
			slog.String("state", string(prior)), slog.String("err", err.Error()))
		return err
	}
	if !next.Valid() {
		logger.Error(ctx, "dispatcher", "transition.undeclared_state",
			slog.String("next_state", string(next)))
		return ErrUnknownState
	}

	for _, eff := range effects {
		if err := eff.Apply(ctx, d.env, ev.UserKey, sess); err != nil {
			var retry *RetryError
			if errors.As(err, &retry) {
				if retry.Notice != "" {
					_ = d.env.Messenger.SendMessage(ctx, ev.UserKey, Message{Text: retry.Notice})
				}
				next = prior
				break
			}
			logger.Error(ctx, "dispatcher", "effect.failed",
				slog.String("state", string(prior)),
				slog.String("err", err.Error()))
			_ = d.env.Messenger.SendMessage(ctx, ev.UserKey, Message{Text: noticeActionFailed})
			return err
		}
	}

	sess.State = next
	sess.PendingReply = ev.Reply()
	if err := d.store.Set(ctx, ev.UserKey, sess); err != nil {
		logger.Error(ctx, "dispatcher", "session.save_failed", slog.String("err", err.Error()))
		return err
	}

	logger.Info(ctx, "dispatcher", "event.handled",
		slog.String("state", string(prior)),
		slog.String("next_state", string(next)),
		slog.Duration("duration", logger.Took(start)))
	return nil
}

func (d *Dispatcher) loadSession(ctx context.Context, userKey string) (*session.Session, error) {
	sess, err := d.store.Get(ctx, userKey)
	if errors.Is(err, session.ErrNotFound) {
		return session.New(), nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// hydrateCustomer restores the durable customer mapping before a checkout
// so a returning user skips the email step.
func (d *Dispatcher) hydrateCustomer(ctx context.Context, userKey string, sess *session.Session) {
	if sess.State != session.StateCart || sess.CustomerID != "" || d.env.Directory == nil {
		return
	}
	id, err := d.env.Directory.CustomerID(ctx, userKey)
	switch {
	case err == nil:
		sess.CustomerID = id
	case errors.Is(err, customers.ErrNotFound):
	default:
		logger.Warn(ctx, "dispatcher", "customer.lookup_failed", slog.String("err", err.Error()))
	}
}
