package auth

import (
	"context"
	"net/http"

	"github.com/fragmede/shelf/internal/api"
	"github.com/fragmede/shelf/internal/cache"
)

// User is the signed-in account. Treat it as immutable; it is replaced
// wholesale on every successful status check.
type User struct {
	ID       int64
	Username string
	Email    string
}

// Session is a snapshot of the authentication state.
// IsAuthenticated is true iff User is non-nil.
type Session struct {
	User            *User
	IsAuthenticated bool
}

// ErrorKind classifies the outcome of a session operation.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	// KindRateLimited is client-side suppression by the debounce gate.
	KindRateLimited
	// KindUnauthorized is a 401: the session is gone.
	KindUnauthorized
	// KindAccountInactive means the account exists but its email is not verified.
	KindAccountInactive
	// KindInvalidCredentials is a rejected login.
	KindInvalidCredentials
	// KindRejected is any other 4xx.
	KindRejected
	KindServerError
	// KindTransient means no response was received.
	KindTransient
	KindMalformed
)

var kindNames = map[ErrorKind]string{
	KindNone:               "none",
	KindRateLimited:        "rate_limited",
	KindUnauthorized:       "unauthorized",
	KindAccountInactive:    "account_inactive",
	KindInvalidCredentials: "invalid_credentials",
	KindRejected:           "rejected",
	KindServerError:        "server_error",
	KindTransient:          "transient",
	KindMalformed:          "malformed",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Result is the structured outcome of every verification and action.
type Result struct {
	Success bool
	Kind    ErrorKind
	Error   string
	// LoggedOut is the terminal signal: the local session has been cleared.
	LoggedOut bool
	// CurrentSession is set by RevokeSession when the caller revoked itself.
	CurrentSession bool
	// Count is the number of sessions revoked.
	Count int
}

// Backend is the subset of the api client the coordinator drives.
type Backend interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, username, email, password string) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	Status(ctx context.Context) (*api.Account, error)
	RevokeSessions(ctx context.Context, sessionID string) (int, error)
}

// CookieJar holds the transport-level session.
type CookieJar interface {
	Cookies() []*http.Cookie
	SetCookies([]*http.Cookie)
	ResetCookies()
	SessionTokenID() string
}

// Persister stores the session mirror across restarts and processes.
type Persister interface {
	LoadSession() (cache.SessionRecord, bool, error)
	SaveSession(cache.SessionRecord) error
	ClearSession() error
}

// Notifier presents short user-facing messages.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
}

// Navigator receives the "go to login" signal.
type Navigator interface {
	ToLogin()
}

// classify maps a transport error to a kind. Any response shape violation
// counts as malformed, which callers report like a server error.
func classify(err error) ErrorKind {
	switch code := api.StatusCode(err); {
	case err == nil:
		return KindNone
	case code == http.StatusUnauthorized:
		return KindUnauthorized
	case code >= 500:
		return KindServerError
	case code >= 400:
		return KindRejected
	case code != 0:
		return KindServerError
	case api.IsNoResponse(err):
		return KindTransient
	default:
		return KindMalformed
	}
}
