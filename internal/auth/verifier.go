package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fragmede/shelf/internal/config"
)

const (
	errRateLimited    = "rate limited"
	errNotActivated   = "not activated"
	errExpired        = "session expired"
	errStatusFailed   = "failed to check status"
	errSuperseded     = "session changed during check"
	errNotSignedIn    = "not signed in"
	errNoRefreshToken = "no refresh token"
)

// Verifier asks the backend whether the session is still valid. Calls made
// within the debounce window of the previous one are suppressed.
type Verifier struct {
	backend    Backend
	store      *Store
	log        *slog.Logger
	window     time.Duration
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time

	mu        sync.Mutex
	lastCheck time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock replaces time.Now for the debounce gate.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a status verifier over store.
func NewVerifier(cfg config.Config, backend Backend, store *Store, log *slog.Logger, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		backend:    backend,
		store:      store,
		log:        log,
		window:     cfg.DebounceWindow,
		maxRetries: cfg.StatusRetries,
		retryDelay: cfg.RetryDelay,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// CheckStatus verifies the session with the backend and updates the store:
// an active account replaces the user, a 401 or inactive account clears the
// session, anything ambiguous leaves it as it is.
func (v *Verifier) CheckStatus(ctx context.Context, bypassDebounce bool) Result {
	if !v.admit(bypassDebounce) {
		v.log.Debug("status check suppressed by debounce")
		return Result{Kind: KindRateLimited, Error: errRateLimited}
	}
	return v.attempt(ctx, v.store.Generation(), 0, v.maxRetries+1)
}

// admit applies the debounce gate and stamps lastCheck before any network
// call so a burst of callers issues one request.
func (v *Verifier) admit(bypass bool) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	if !bypass && !v.lastCheck.IsZero() && now.Sub(v.lastCheck) < v.window {
		return false
	}
	v.lastCheck = now
	return true
}

// attempt runs the status call for attempts [attempt, maxAttempts). Retries
// continue the same logical check and do not pass through the gate again.
// Store updates apply only while the store is still at generation gen.
func (v *Verifier) attempt(ctx context.Context, gen uint64, attempt, maxAttempts int) Result {
	for ; attempt < maxAttempts; attempt++ {
		acct, err := v.backend.Status(ctx)
		if err == nil {
			if !acct.IsActive {
				v.log.Info("account not activated", "username", acct.Username)
				if !v.store.ClearIf(gen) {
					return superseded()
				}
				return Result{Kind: KindAccountInactive, Error: errNotActivated}
			}
			if !v.store.ReplaceIf(gen, User{ID: acct.ID, Username: acct.Username, Email: acct.Email}) {
				return superseded()
			}
			return Result{Success: true}
		}

		kind := classify(err)
		if ctx.Err() != nil {
			// Cancelled by teardown: leave the store alone.
			return Result{Kind: KindTransient, Error: errStatusFailed}
		}
		v.log.Warn("status check failed", "attempt", attempt+1, "kind", kind, "error", err)

		switch kind {
		case KindUnauthorized:
			if !v.store.ClearIf(gen) {
				return superseded()
			}
			return Result{Kind: KindUnauthorized, Error: errExpired, LoggedOut: true}
		case KindTransient:
			if attempt+1 < maxAttempts {
				if sleep(ctx, v.retryDelay) != nil {
					return Result{Kind: KindTransient, Error: errStatusFailed}
				}
				continue
			}
			return Result{Kind: KindTransient, Error: errStatusFailed}
		default:
			return Result{Kind: kind, Error: errStatusFailed}
		}
	}
	return Result{Kind: KindTransient, Error: errStatusFailed}
}

// superseded is the result of a check whose answer arrived after the
// session it was asking about had been cleared.
func superseded() Result {
	return Result{Kind: KindTransient, Error: errSuperseded}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
