package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fragmede/shelf/internal/api"
	"github.com/fragmede/shelf/internal/config"
)

// Actions implements the multi-step session operations. Each one converts
// backend errors into a Result and a notification; none returns a raw
// transport error.
type Actions struct {
	backend       Backend
	jar           CookieJar
	store         *Store
	verifier      *Verifier
	notifier      Notifier
	nav           Navigator
	log           *slog.Logger
	logoutRetries int
	retryDelay    time.Duration
}

// NewActions creates the session actions.
func NewActions(cfg config.Config, backend Backend, jar CookieJar, store *Store, v *Verifier,
	notifier Notifier, nav Navigator, log *slog.Logger) *Actions {
	return &Actions{
		backend:       backend,
		jar:           jar,
		store:         store,
		verifier:      v,
		notifier:      notifier,
		nav:           nav,
		log:           log,
		logoutRetries: cfg.LogoutRetries,
		retryDelay:    cfg.RetryDelay,
	}
}

// Login drops any previous session, authenticates, then pulls the
// authoritative profile. The store ends either fully populated or empty.
func (a *Actions) Login(ctx context.Context, email, password string) Result {
	a.store.Clear()

	if err := a.backend.Login(ctx, email, password); err != nil {
		a.store.Clear()
		res, msg := a.failure("login", err, MsgLoginFailed)
		if res.Kind == KindUnauthorized {
			res.Kind = KindInvalidCredentials
		}
		a.notifier.Error(msg)
		return res
	}

	res := a.verifier.CheckStatus(ctx, true)
	if !res.Success {
		a.store.Clear()
		a.log.Warn("login verification failed", "kind", res.Kind, "error", res.Error)
		if res.Kind == KindAccountInactive {
			a.notifier.Error(MsgVerifyEmail)
		} else {
			a.notifier.Error(MsgLoginFailed)
		}
		return Result{Kind: res.Kind, Error: res.Error}
	}

	a.log.Info("logged in", "username", a.store.Read().User.Username)
	a.notifier.Success(MsgLoggedIn)
	return Result{Success: true}
}

// Register creates an account. It never touches the session: the account
// has to be activated by email before it can log in.
func (a *Actions) Register(ctx context.Context, username, email, password string) Result {
	if err := a.backend.Register(ctx, username, email, password); err != nil {
		res, msg := a.failure("register", err, MsgRegisterFailed)
		a.notifier.Error(msg)
		return res
	}
	a.log.Info("registered", "username", username)
	a.notifier.Success(MsgRegistered)
	return Result{Success: true}
}

// Logout ends the session. It always succeeds from the caller's point of
// view and always clears local state, even when the backend is unreachable
// or ctx is cancelled.
func (a *Actions) Logout(ctx context.Context) Result {
	defer a.store.Clear()

	if !a.store.Read().IsAuthenticated && a.jar.SessionTokenID() == "" {
		a.notifier.Success(MsgLoggedOut)
		return Result{Success: true}
	}

	attempts := a.logoutRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		err := a.backend.Logout(ctx)
		if err == nil {
			a.notifier.Success(MsgLoggedOut)
			return Result{Success: true}
		}

		kind := classify(err)
		a.log.Warn("logout request failed", "attempt", attempt+1, "kind", kind, "error", err)
		switch kind {
		case KindUnauthorized:
			a.notifier.Error(MsgLogoutExpired)
			return Result{Success: true}
		case KindServerError:
			a.notifier.Error(MsgLogoutServerError)
		case KindTransient:
		default:
			a.notifier.Error(MsgLogoutFailed)
			return Result{Success: true}
		}

		if attempt+1 < attempts && sleep(ctx, a.retryDelay) != nil {
			break
		}
	}

	a.log.Warn("logout not confirmed by server, clearing local session")
	a.notifier.Error(MsgLogoutFailed)
	return Result{Success: true}
}

// RevokeSession revokes sessionID, or every other session when it is empty.
// Revoking the caller's own session clears the store and fires exactly one
// navigation signal.
func (a *Actions) RevokeSession(ctx context.Context, sessionID string) Result {
	currentID := a.jar.SessionTokenID()

	n, err := a.backend.RevokeSessions(ctx, sessionID)
	if err != nil {
		if classify(err) == KindUnauthorized {
			a.log.Info("revoke rejected with 401, treating as self revocation")
			a.store.Clear()
			a.notifier.Error(MsgRevokeExpired)
			a.nav.ToLogin()
			return Result{Kind: KindUnauthorized, Error: MsgRevokeExpired, LoggedOut: true, CurrentSession: true}
		}
		res, msg := a.failure("revoke", err, MsgRevokeFailed)
		a.notifier.Error(msg)
		return res
	}

	if sessionID == "" {
		a.notifier.Success(RevokedOthers(n))
		return Result{Success: true, Count: n}
	}
	a.notifier.Success(MsgSessionRevoked)

	var self bool
	if currentID != "" {
		self = sessionID == currentID
	} else {
		// Token id unknown locally: the session is ours if it no longer verifies.
		res := a.verifier.CheckStatus(ctx, true)
		self = res.LoggedOut || res.Kind == KindAccountInactive
	}
	if self {
		a.log.Info("revoked own session", "session_id", sessionID)
		a.store.Clear()
		a.nav.ToLogin()
	}
	return Result{Success: true, Count: n, CurrentSession: self}
}

// RefreshSession rotates the token pair and persists it. A rejected refresh
// token, or a new pair naming two sessions, ends the session with one
// navigation signal. Any other failure leaves the session in place.
func (a *Actions) RefreshSession(ctx context.Context) Result {
	gen := a.store.Generation()
	sess := a.store.Read()
	if !sess.IsAuthenticated {
		return Result{Kind: KindUnauthorized, Error: errNotSignedIn}
	}

	err := a.backend.Refresh(ctx)
	if errors.Is(err, api.ErrNoRefreshToken) {
		a.log.Debug("no refresh token held, skipping rotation")
		return Result{Error: errNoRefreshToken}
	}
	if err != nil {
		return a.refreshFailed(ctx, gen, err)
	}

	if !a.store.ReplaceIf(gen, *sess.User) {
		return superseded()
	}
	a.log.Info("session refreshed", "session_id", a.jar.SessionTokenID())
	return Result{Success: true}
}

func (a *Actions) refreshFailed(ctx context.Context, gen uint64, err error) Result {
	kind := classify(err)
	a.log.Warn("refresh failed", "kind", kind, "status", api.StatusCode(err), "error", err)
	if ctx.Err() != nil {
		return Result{Kind: KindTransient, Error: err.Error()}
	}

	mismatch := errors.Is(err, api.ErrTokenMismatch)
	if kind == KindUnauthorized || mismatch {
		if !a.store.ClearIf(gen) {
			return superseded()
		}
		msg := MsgSessionExpired
		if mismatch {
			msg = MsgRefreshFailed
		}
		a.notifier.Error(msg)
		a.nav.ToLogin()
		return Result{Kind: kind, Error: msg, LoggedOut: true}
	}

	msg := MsgRefreshFailed
	if kind == KindServerError {
		msg = MsgServerError
	}
	a.notifier.Error(msg)
	return Result{Kind: kind, Error: msg}
}

// CurrentSessionID returns the token id of the caller's session, or "" if unknown.
func (a *Actions) CurrentSessionID() string {
	return a.jar.SessionTokenID()
}

// failure classifies err and picks the notification for it.
func (a *Actions) failure(op string, err error, fallback string) (Result, string) {
	kind := classify(err)
	detail := api.Detail(err)
	a.log.Warn(op+" failed", "kind", kind, "status", api.StatusCode(err), "error", err)

	if strings.Contains(strings.ToLower(detail), errNotActivated) {
		return Result{Kind: KindAccountInactive, Error: detail}, MsgVerifyEmail
	}

	var msg string
	switch kind {
	case KindServerError, KindMalformed:
		msg = MsgServerError
	case KindTransient:
		msg = MsgServerUnreachable
	default:
		msg = fallback
		if detail != "" {
			msg = detail
		}
	}
	return Result{Kind: kind, Error: msg}, msg
}
