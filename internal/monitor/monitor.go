package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fragmede/shelf/internal/api"
	"github.com/fragmede/shelf/internal/auth"
	"github.com/fragmede/shelf/internal/cache"
	"github.com/fragmede/shelf/internal/config"
	"github.com/fragmede/shelf/internal/ui/messages"
)

const msgLoadFailed = "Failed to load sessions."

var (
	// ErrBusy is returned by Refresh while another refresh is in flight.
	ErrBusy = errors.New("sessions refresh already in progress")
	// ErrSignedOut is returned by Refresh when there is no session to list.
	ErrSignedOut = errors.New("not signed in")
)

// Monitor keeps the cached list of the caller's active sessions fresh.
type Monitor struct {
	backend  Backend
	store    SessionStore
	cache    *cache.DB
	notifier auth.Notifier
	nav      auth.Navigator
	log      *slog.Logger
	interval time.Duration

	inFlight atomic.Bool

	mu      sync.Mutex
	program Sender
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a stopped sessions monitor.
func New(cfg config.Config, backend Backend, store SessionStore, db *cache.DB,
	notifier auth.Notifier, nav auth.Navigator, log *slog.Logger) *Monitor {
	return &Monitor{
		backend:  backend,
		store:    store,
		cache:    db,
		notifier: notifier,
		nav:      nav,
		log:      log,
		interval: cfg.SessionsInterval,
	}
}

// Attach sets the program that receives SessionsLoadedMsg.
func (m *Monitor) Attach(program Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.program = program
}

// Start begins periodic polling. It is a no-op if already running.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh != nil {
		return
	}
	m.stopCh = make(chan struct{})
	m.wg.Add(1)
	go m.loop(m.stopCh)
	m.log.Debug("sessions polling started", "interval", m.interval)
}

// Stop halts polling and cancels an in-flight poll. It is a no-op if not
// running.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh == nil {
		return
	}
	close(m.stopCh)
	m.stopCh = nil
	m.log.Debug("sessions polling stopped")
}

// Running reports whether periodic polling is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCh != nil
}

// Wait blocks until every polling loop started so far has exited.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// Cached returns the last stored list without touching the network.
func (m *Monitor) Cached() ([]api.ActiveSession, time.Time, error) {
	return m.cache.ActiveSessions()
}

// Forget removes a revoked session from the cached list ahead of the next
// refresh.
func (m *Monitor) Forget(id string) error {
	if err := m.cache.DeleteActiveSession(id); err != nil {
		return fmt.Errorf("forgetting session %s: %w", id, err)
	}
	return nil
}

// Refresh fetches the session list, stores it and pushes it to the TUI.
// Overlapping calls return ErrBusy without touching the network.
func (m *Monitor) Refresh(ctx context.Context) ([]api.ActiveSession, error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer m.inFlight.Store(false)

	gen := m.store.Generation()
	if !m.store.Read().IsAuthenticated {
		return nil, ErrSignedOut
	}

	list, err := m.backend.ListSessions(ctx)
	if err != nil {
		return nil, m.failed(ctx, gen, err)
	}
	if m.store.Generation() != gen {
		// Signed out while the request was in flight.
		return nil, ErrSignedOut
	}

	if err := m.cache.PutActiveSessions(list); err != nil {
		m.log.Error("caching sessions", "error", err)
	}
	current := m.backend.SessionTokenID()
	m.log.Debug("sessions loaded", "count", len(list))
	m.send(messages.SessionsLoadedMsg{Sessions: list, CurrentID: current, FetchedAt: time.Now()})
	return list, nil
}

func (m *Monitor) failed(ctx context.Context, gen uint64, err error) error {
	err = fmt.Errorf("listing sessions: %w", err)
	if ctx.Err() != nil {
		return err
	}

	code := api.StatusCode(err)
	m.log.Warn("loading sessions failed", "status", code, "error", err)
	switch {
	case code == http.StatusUnauthorized:
		// Whoever cleared first has already told the user.
		if m.store.ClearIf(gen) {
			m.notifier.Error(auth.MsgRevokeExpired)
			m.nav.ToLogin()
		}
		m.send(messages.SessionsLoadedMsg{Err: err})
		return err
	case code >= 500:
		m.notifier.Error(auth.MsgServerError)
	default:
		m.notifier.Error(msgLoadFailed)
	}

	cached, fetchedAt, cerr := m.cache.ActiveSessions()
	if cerr != nil {
		m.log.Warn("reading cached sessions", "error", cerr)
	}
	m.send(messages.SessionsLoadedMsg{
		Sessions:  cached,
		CurrentID: m.backend.SessionTokenID(),
		FetchedAt: fetchedAt,
		Err:       err,
	})
	return err
}

func (m *Monitor) send(msg messages.SessionsLoadedMsg) {
	m.mu.Lock()
	p := m.program
	m.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (m *Monitor) loop(stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.poll(stop)
		}
	}
}

func (m *Monitor) poll(stop chan struct{}) {
	if !m.store.Read().IsAuthenticated {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := m.Refresh(ctx); err != nil && !errors.Is(err, ErrBusy) {
		m.log.Debug("sessions poll", "error", err)
	}
}
