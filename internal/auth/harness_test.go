package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fragmede/shelf/internal/api"
	"github.com/fragmede/shelf/internal/cache"
	"github.com/fragmede/shelf/internal/config"
	"github.com/fragmede/shelf/internal/logging"
)

// hangUp makes a fake endpoint drop the connection without a response.
const hangUp = -1

// fakeBackend mimics the book service auth endpoints. Forced status codes are
// consumed one per request; an empty queue means normal behaviour.
type fakeBackend struct {
	t *testing.T

	mu           sync.Mutex
	jti          string
	opaque       bool
	active       bool
	loggedIn     bool
	loginCode    int
	loginDetail  string
	statusCodes  []int
	logoutCodes  []int
	refreshCodes []int
	revokeCode   int
	revokeCount  int
	revoked      []string
	calls        map[string]int

	// statusHold, when set, parks each status request until it is closed.
	// statusHeld receives once per parked request.
	statusHold chan struct{}
	statusHeld chan struct{}
}

func newFakeBackend(t *testing.T) *fakeBackend {
	return &fakeBackend{
		t:           t,
		jti:         uuid.NewString(),
		active:      true,
		revokeCount: 1,
		calls:       make(map[string]int),
	}
}

func (b *fakeBackend) set(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *fakeBackend) count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// session returns the jti the backend currently accepts.
func (b *fakeBackend) session() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jti
}

func (b *fakeBackend) token() string {
	if b.opaque {
		return "opaque-" + b.jti
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "reader@example.com",
		ID:      b.jti,
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(b.t, err)
	return s
}

func pop(codes *[]int) int {
	if len(*codes) == 0 {
		return 0
	}
	c := (*codes)[0]
	*codes = (*codes)[1:]
	return c
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.calls["login"]++
		if b.loginCode != 0 {
			writeDetail(w, b.loginCode, b.loginDetail)
			return
		}
		b.loggedIn = true
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: b.token(), Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: "refresh_token", Value: "r-" + b.jti, Path: "/", HttpOnly: true})
		w.Write([]byte(`{"token_type":"bearer"}`))
	})
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.calls["register"]++
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["username"] == "taken" {
			writeDetail(w, http.StatusBadRequest, "Username already registered")
			return
		}
		w.Write([]byte(`{"id":9,"username":"new","email":"new@example.com","is_active":false}`))
	})
	mux.HandleFunc("GET /auth/status", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		hold, held := b.statusHold, b.statusHeld
		b.mu.Unlock()
		if hold != nil {
			held <- struct{}{}
			<-hold
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		b.calls["status"]++
		if b.respond(w, pop(&b.statusCodes)) {
			return
		}
		if !b.loggedIn || !hasCookie(r, "access_token") {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		json.NewEncoder(w).Encode(api.Account{ID: 7, Username: "reader", Email: "reader@example.com", IsActive: b.active})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.calls["refresh"]++
		if b.respond(w, pop(&b.refreshCodes)) {
			return
		}
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if !b.loggedIn || req.RefreshToken != "r-"+b.jti {
			writeDetail(w, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}
		// The backend replaces the session on every refresh.
		b.jti = uuid.NewString()
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  b.token(),
			"refresh_token": "r-" + b.jti,
			"token_type":    "bearer",
			"username":      "reader",
		})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.calls["logout"]++
		if b.respond(w, pop(&b.logoutCodes)) {
			return
		}
		b.loggedIn = false
		w.Write([]byte(`{"message":"Successfully logged out"}`))
	})
	mux.HandleFunc("POST /auth/sessions/revoke", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.calls["revoke"]++
		if b.respond(w, b.revokeCode) {
			return
		}
		var req struct {
			SessionID string `json:"session_id"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		b.revoked = append(b.revoked, req.SessionID)
		if req.SessionID != "" && req.SessionID == b.jti {
			b.loggedIn = false
		}
		json.NewEncoder(w).Encode(map[string]int{"count": b.revokeCount})
	})
	return mux
}

// respond writes a forced response and reports whether it did. Callers hold b.mu.
func (b *fakeBackend) respond(w http.ResponseWriter, code int) bool {
	switch code {
	case 0:
		return false
	case hangUp:
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(b.t, err)
		conn.Close()
	default:
		writeDetail(w, code, http.StatusText(code))
	}
	return true
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func hasCookie(r *http.Request, name string) bool {
	_, err := r.Cookie(name)
	return err == nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder implements Notifier and Navigator.
type recorder struct {
	mu        sync.Mutex
	successes []string
	errors    []string
	infos     []string
	navs      int
}

func (r *recorder) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, msg)
}

func (r *recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recorder) Info(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

func (r *recorder) ToLogin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navs++
}

func (r *recorder) navigations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.navs
}

func (r *recorder) errorMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

func (r *recorder) successMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.successes...)
}

type harness struct {
	url     string
	backend *fakeBackend
	client  *api.Client
	db      *cache.DB
	clock   *fakeClock
	rec     *recorder
	coord   *Coordinator
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.RetryDelay = time.Millisecond
	cfg.RequestTimeout = 2 * time.Second
	cfg.InitialCheckDelay = time.Hour
	cfg.RevalidateInterval = time.Hour
	return cfg
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	b := newFakeBackend(t)
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	client, err := api.NewClient(srv.URL, cfg.RequestTimeout, logging.Discard())
	require.NoError(t, err)

	db, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	coord := NewCoordinator(cfg, client, client, db, rec, rec, logging.Discard(), WithClock(clock.Now))
	t.Cleanup(coord.Close)

	return &harness{url: srv.URL, backend: b, client: client, db: db, clock: clock, rec: rec, coord: coord}
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	res := h.coord.Actions.Login(context.Background(), "reader@example.com", "pw")
	require.True(t, res.Success, "login: %+v", res)
}

// persisted reports whether the sqlite mirror currently holds a session.
func (h *harness) persisted(t *testing.T) bool {
	t.Helper()
	_, ok, err := h.db.LoadSession()
	require.NoError(t, err)
	return ok
}
