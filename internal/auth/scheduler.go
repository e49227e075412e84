package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fragmede/shelf/internal/config"
)

// Refresher rotates the session's token pair.
type Refresher interface {
	RefreshSession(ctx context.Context) Result
}

// Scheduler revalidates the session once shortly after it starts and then
// on a fixed interval, rotating the token pair before each periodic check.
// It runs only while started; the coordinator starts it when the session
// becomes authenticated and stops it when it is cleared.
type Scheduler struct {
	verifier     *Verifier
	refresher    Refresher
	store        *Store
	notifier     Notifier
	nav          Navigator
	log          *slog.Logger
	initialDelay time.Duration
	interval     time.Duration
	maxFailures  int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(cfg config.Config, v *Verifier, r Refresher, store *Store, notifier Notifier, nav Navigator,
	log *slog.Logger) *Scheduler {
	return &Scheduler{
		verifier:     v,
		refresher:    r,
		store:        store,
		notifier:     notifier,
		nav:          nav,
		log:          log,
		initialDelay: cfg.InitialCheckDelay,
		interval:     cfg.RevalidateInterval,
		maxFailures:  cfg.MaxConsecutiveFailures,
	}
}

// Start begins revalidation. It is a no-op if already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
	s.log.Debug("revalidation started", "initial_delay", s.initialDelay, "interval", s.interval)
}

// Stop cancels both timers and any in-flight check. It does not wait for
// the loop to exit, so it is safe to call from a store observer. It is a
// no-op if not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.log.Debug("revalidation stopped")
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Wait blocks until every loop started so far has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	initial := time.NewTimer(s.initialDelay)
	defer initial.Stop()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-initial.C:
			failures = s.fire(ctx, failures)
		case <-ticker.C:
			failures = s.fire(ctx, s.rotate(ctx, failures))
		}
	}
}

// fire runs one revalidation and returns the updated count of consecutive
// ambiguous failures.
func (s *Scheduler) fire(ctx context.Context, failures int) int {
	if ctx.Err() != nil || !s.store.Read().IsAuthenticated {
		return failures
	}

	res := s.verifier.CheckStatus(ctx, false)
	switch {
	case res.Success:
		return 0
	case res.Kind == KindRateLimited:
		return failures
	case s.signOut(res):
		return 0
	}

	if ctx.Err() != nil {
		return failures
	}
	return s.inconclusive(res, failures)
}

// rotate refreshes the token pair and returns the updated failure count.
// Only a status check resets the count. Actions has already notified the
// user of any failure.
func (s *Scheduler) rotate(ctx context.Context, failures int) int {
	if s.refresher == nil || ctx.Err() != nil || !s.store.Read().IsAuthenticated {
		return failures
	}

	res := s.refresher.RefreshSession(ctx)
	switch {
	case res.LoggedOut:
		return 0
	case res.Success, res.Kind == KindNone, ctx.Err() != nil:
		return failures
	}
	return s.inconclusive(res, failures)
}

// inconclusive counts an ambiguous failure and signs out once the limit is hit.
func (s *Scheduler) inconclusive(res Result, failures int) int {
	failures++
	s.log.Warn("revalidation inconclusive", "kind", res.Kind, "consecutive", failures, "limit", s.maxFailures)
	if failures < s.maxFailures {
		return failures
	}
	s.store.Clear()
	s.notifier.Error(MsgVerifyFailed)
	s.nav.ToLogin()
	return 0
}

// signOut tells the user why a definite negative result ended the session
// and sends them to the login view. It reports whether res was one.
func (s *Scheduler) signOut(res Result) bool {
	switch {
	case res.LoggedOut:
		s.log.Info("revalidation: session expired")
		s.notifier.Error(MsgSessionExpired)
	case res.Kind == KindAccountInactive:
		s.log.Info("revalidation: account not activated")
		s.notifier.Error(MsgAccountInactive)
	default:
		return false
	}
	s.nav.ToLogin()
	return true
}
