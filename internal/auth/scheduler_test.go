package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmede/shelf/internal/api"
	"github.com/fragmede/shelf/internal/config"
	"github.com/fragmede/shelf/internal/logging"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func fastConfig() config.Config {
	cfg := testConfig()
	cfg.InitialCheckDelay = 10 * time.Millisecond
	cfg.RevalidateInterval = 20 * time.Millisecond
	cfg.DebounceWindow = 0
	return cfg
}

func TestSchedulerStartStopIdempotent(t *testing.T) {
	h := newHarness(t, testConfig())
	s := h.coord.Scheduler

	s.Start(t.Context())
	s.Start(t.Context())
	assert.True(t, s.Running())

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
	s.Wait()
}

func TestSchedulerSkipsWhenUnauthenticated(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.coord.Scheduler.Start(t.Context())
	time.Sleep(60 * time.Millisecond)
	h.coord.Scheduler.Stop()
	h.coord.Scheduler.Wait()

	assert.Zero(t, h.backend.count("status"))
}

// startSignedIn logs in, applies prepare to the backend, lets the login check
// age past the debounce window, then starts the coordinator.
func startSignedIn(t *testing.T, h *harness, prepare func(b *fakeBackend)) {
	t.Helper()
	h.login(t)
	if prepare != nil {
		h.backend.set(prepare)
	}
	h.clock.Advance(time.Minute)
	require.True(t, h.coord.Start(t.Context()))
	require.True(t, h.coord.Scheduler.Running())
}

func TestSchedulerAccountInactive(t *testing.T) {
	cfg := testConfig()
	cfg.InitialCheckDelay = 10 * time.Millisecond
	h := newHarness(t, cfg)
	startSignedIn(t, h, func(b *fakeBackend) { b.active = false })

	assert.Eventually(t, func() bool { return h.rec.navigations() == 1 }, waitFor, tick)
	assert.Eventually(t, func() bool { return !h.coord.Scheduler.Running() }, waitFor, tick)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 1, h.rec.navigations())
	assert.Equal(t, []string{MsgAccountInactive}, h.rec.errorMessages())
	assert.False(t, h.coord.Store.Read().IsAuthenticated)
	assert.False(t, h.persisted(t))
}

func TestSchedulerSessionExpired(t *testing.T) {
	cfg := testConfig()
	cfg.InitialCheckDelay = 10 * time.Millisecond
	h := newHarness(t, cfg)
	startSignedIn(t, h, func(b *fakeBackend) { b.loggedIn = false })

	assert.Eventually(t, func() bool { return h.rec.navigations() == 1 }, waitFor, tick)
	assert.Equal(t, []string{MsgSessionExpired}, h.rec.errorMessages())
	assert.False(t, h.coord.Store.Read().IsAuthenticated)
	assert.Eventually(t, func() bool { return !h.coord.Scheduler.Running() }, waitFor, tick)
}

func TestSchedulerFailureBudget(t *testing.T) {
	h := newHarness(t, fastConfig())
	startSignedIn(t, h, func(b *fakeBackend) {
		b.statusCodes = []int{http.StatusInternalServerError, http.StatusInternalServerError, http.StatusInternalServerError}
	})

	assert.Eventually(t, func() bool { return h.rec.navigations() == 1 }, waitFor, tick)
	assert.Equal(t, []string{MsgVerifyFailed}, h.rec.errorMessages())
	assert.False(t, h.coord.Store.Read().IsAuthenticated)
	assert.False(t, h.persisted(t))
	assert.Equal(t, 1+3, h.backend.count("status"))
}

func TestSchedulerSuccessResetsFailures(t *testing.T) {
	h := newHarness(t, fastConfig())
	startSignedIn(t, h, func(b *fakeBackend) {
		b.statusCodes = []int{
			http.StatusInternalServerError, http.StatusInternalServerError, 0,
			http.StatusInternalServerError, http.StatusInternalServerError,
		}
	})

	assert.Eventually(t, func() bool { return h.backend.count("status") >= 1+7 }, waitFor, tick)
	assert.Zero(t, h.rec.navigations())
	assert.True(t, h.coord.Store.Read().IsAuthenticated)
}

func TestSchedulerRotatesTokens(t *testing.T) {
	h := newHarness(t, fastConfig())
	startSignedIn(t, h, nil)
	first := h.backend.session()

	assert.Eventually(t, func() bool {
		return h.backend.count("refresh") >= 2 && h.coord.Actions.CurrentSessionID() != first
	}, waitFor, tick)
	h.coord.Scheduler.Stop()
	h.coord.Scheduler.Wait()

	assert.True(t, h.coord.Store.Read().IsAuthenticated)
	assert.Empty(t, h.rec.errorMessages())
}

func TestSchedulerRefreshRejected(t *testing.T) {
	h := newHarness(t, fastConfig())
	startSignedIn(t, h, func(b *fakeBackend) { b.refreshCodes = []int{http.StatusUnauthorized} })

	assert.Eventually(t, func() bool { return h.rec.navigations() == 1 }, waitFor, tick)
	assert.Eventually(t, func() bool { return !h.coord.Scheduler.Running() }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, h.rec.navigations())
	assert.Equal(t, []string{MsgSessionExpired}, h.rec.errorMessages())
	assert.False(t, h.coord.Store.Read().IsAuthenticated)
	assert.False(t, h.persisted(t))
}

func TestSchedulerStopsOnLogout(t *testing.T) {
	h := newHarness(t, testConfig())
	startSignedIn(t, h, nil)

	h.coord.Actions.Logout(t.Context())
	assert.False(t, h.coord.Scheduler.Running())

	h.login(t)
	assert.True(t, h.coord.Scheduler.Running(), "signing in again restarts revalidation")
}

func TestSchedulerCloseCancelsPendingCheck(t *testing.T) {
	cfg := testConfig()
	cfg.InitialCheckDelay = 30 * time.Millisecond
	h := newHarness(t, cfg)
	startSignedIn(t, h, nil)

	h.coord.Close()
	assert.False(t, h.coord.Scheduler.Running())
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, 1, h.backend.count("status"))
	assert.True(t, h.coord.Store.Read().IsAuthenticated, "closing keeps the session for the next run")
}

func TestCoordinatorRestoresPersistedSession(t *testing.T) {
	h := newHarness(t, testConfig())
	h.login(t)

	client, err := api.NewClient(h.url, time.Second, logging.Discard())
	require.NoError(t, err)
	rec := &recorder{}
	coord := NewCoordinator(testConfig(), client, client, h.db, rec, rec, logging.Discard())
	t.Cleanup(coord.Close)

	assert.True(t, coord.Start(context.Background()))
	assert.True(t, coord.Store.Read().IsAuthenticated)
	assert.True(t, coord.Scheduler.Running())
	assert.Equal(t, h.backend.jti, coord.Actions.CurrentSessionID())

	res := coord.Verifier.CheckStatus(t.Context(), true)
	assert.True(t, res.Success)
}

func TestCoordinatorStartWithoutSession(t *testing.T) {
	h := newHarness(t, testConfig())

	assert.False(t, h.coord.Start(t.Context()))
	assert.False(t, h.coord.Scheduler.Running())
	assert.Zero(t, h.backend.count("status"))
}
