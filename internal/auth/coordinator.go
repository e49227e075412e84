package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fragmede/shelf/internal/config"
)

// Coordinator owns the session lifecycle: the store, the verifier, the
// revalidation scheduler and the actions built on them. Create one per
// process with NewCoordinator and tear it down with Close.
type Coordinator struct {
	Store     *Store
	Verifier  *Verifier
	Scheduler *Scheduler
	Actions   *Actions

	log         *slog.Logger
	mu          sync.Mutex
	unsubscribe func()
}

// NewCoordinator wires the session components together.
func NewCoordinator(cfg config.Config, backend Backend, jar CookieJar, persist Persister,
	notifier Notifier, nav Navigator, log *slog.Logger, opts ...VerifierOption) *Coordinator {
	store := NewStore(jar, persist, log.With("component", "session_store"))
	verifier := NewVerifier(cfg, backend, store, log.With("component", "status_verifier"), opts...)
	actions := NewActions(cfg, backend, jar, store, verifier, notifier, nav, log.With("component", "session_actions"))
	return &Coordinator{
		Store:     store,
		Verifier:  verifier,
		Scheduler: NewScheduler(cfg, verifier, actions, store, notifier, nav, log.With("component", "revalidation")),
		Actions:   actions,
		log:       log,
	}
}

// Start restores any persisted session and keeps the scheduler running
// exactly while the session is authenticated. It reports whether a session
// was restored.
func (c *Coordinator) Start(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		return c.Store.Read().IsAuthenticated
	}

	c.unsubscribe = c.Store.Subscribe(func(s Session) {
		if s.IsAuthenticated {
			c.Scheduler.Start(ctx)
		} else {
			c.Scheduler.Stop()
		}
	})

	restored := c.Store.Restore()
	if c.Store.Read().IsAuthenticated {
		c.Scheduler.Start(ctx)
	}
	return restored
}

// VerifyRestored checks a restored session with the backend right away,
// bypassing the debounce gate. A definite negative answer is handled the way
// a scheduled check handles it: the user is told and sent to login.
func (c *Coordinator) VerifyRestored(ctx context.Context) Result {
	res := c.Verifier.CheckStatus(ctx, true)
	c.Scheduler.signOut(res)
	return res
}

// Close stops revalidation and waits for its goroutine to exit. The store
// keeps its state so the next process can restore it.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.mu.Unlock()

	c.Scheduler.Stop()
	c.Scheduler.Wait()
	c.log.Debug("session coordinator closed")
}
