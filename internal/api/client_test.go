package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fragmede/shelf/internal/logging"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/api/v1", time.Second, logging.Discard())
	require.NoError(t, err)
	return c
}

func signedToken(t *testing.T, jti string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "reader@example.com",
		ID:        jti,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestNewClient(t *testing.T) {
	_, err := NewClient("localhost:8000", time.Second, nil)
	assert.Error(t, err)

	c, err := NewClient("http://localhost:8000/api/v1/", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1", c.base.Path)
}

func TestClient_LoginSetsCookies(t *testing.T) {
	jti := uuid.NewString()
	token := signedToken(t, jti)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "reader@example.com", req.Email)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: token, Path: "/", HttpOnly: true})
		w.Write([]byte(`{"token_type":"bearer"}`))
	})
	mux.HandleFunc("GET /api/v1/auth/status", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("access_token")
		if err != nil || ck.Value != token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":7,"username":"reader","email":"reader@example.com","is_active":true}`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "reader@example.com", "Secret!pw"))
	assert.Equal(t, jti, c.SessionTokenID())

	acct, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), acct.ID)
	assert.True(t, acct.IsActive)

	saved := c.Cookies()
	c.ResetCookies()
	assert.Empty(t, c.Cookies())
	assert.Empty(t, c.SessionTokenID())
	_, err = c.Status(ctx)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))

	c.SetCookies(saved)
	assert.Equal(t, jti, c.SessionTokenID())
	_, err = c.Status(ctx)
	assert.NoError(t, err)
}

func TestClient_ErrorClassification(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"detail":"Account not activated"}`))
	})
	mux.HandleFunc("POST /api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"msg":"Password must be at least 8 characters"},{"msg":"bad email"}]}`))
	})
	mux.HandleFunc("GET /api/v1/auth/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"email":"x@example.com"}`))
	})
	mux.HandleFunc("GET /api/v1/auth/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("POST /api/v1/auth/sessions/revoke", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html><head><title>502</title></head><body><h1>502 Bad Gateway</h1><hr>nginx</body></html>`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	err := c.Login(ctx, "a@x.com", "pw")
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
	assert.Equal(t, "Account not activated", Detail(err))
	assert.False(t, IsNoResponse(err))

	err = c.Register(ctx, "a", "a@x.com", "pw")
	assert.Equal(t, "Password must be at least 8 characters; bad email", Detail(err))

	_, err = c.Status(ctx)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.False(t, IsNoResponse(err))

	_, err = c.ListSessions(ctx)
	assert.True(t, errors.Is(err, ErrMalformed))

	err = c.Logout(ctx)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Empty(t, Detail(err))

	_, err = c.RevokeSessions(ctx, "")
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	assert.Equal(t, "502 Bad Gateway nginx", Detail(err))
}

func TestClient_NoResponse(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, 200*time.Millisecond, logging.Discard())
	require.NoError(t, err)

	_, err = c.Status(context.Background())
	require.Error(t, err)
	assert.True(t, IsNoResponse(err))
	assert.Equal(t, 0, StatusCode(err))
}

func TestClient_Sessions(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var revoked []string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/auth/sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"sessions": []map[string]any{
			{"id": "s1", "ip_address": "10.0.0.1", "user_agent": "shelf/1.0", "created_at": created},
			{"id": "s2", "ip_address": "10.0.0.2", "user_agent": "curl", "created_at": created},
		}})
	})
	mux.HandleFunc("POST /api/v1/auth/sessions/revoke", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		revoked = append(revoked, req["session_id"])
		if req["session_id"] == "" {
			w.Write([]byte(`{"count":3}`))
			return
		}
		w.Write([]byte(`{"message":"ok"}`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	list, err := c.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "10.0.0.2", list[1].IPAddress)
	assert.True(t, created.Equal(list[0].CreatedAt))

	n, err := c.RevokeSessions(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.RevokeSessions(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"", "s2"}, revoked)
}

func TestSessionTokenID_Unparsable(t *testing.T) {
	c, err := NewClient("http://localhost:8000/api/v1", time.Second, logging.Discard())
	require.NoError(t, err)

	c.SetCookies([]*http.Cookie{{Name: "access_token", Value: "not-a-jwt"}})
	assert.Empty(t, c.SessionTokenID())
}

func TestClient_Refresh(t *testing.T) {
	first, second := uuid.NewString(), uuid.NewString()
	var body string

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken:  signedToken(t, first),
			RefreshToken: signedToken(t, first),
			TokenType:    "bearer",
			Username:     "reader",
		})
	})
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		body = req.RefreshToken
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken:  signedToken(t, second),
			RefreshToken: signedToken(t, second),
			TokenType:    "bearer",
			Username:     "reader",
		})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	assert.ErrorIs(t, c.Refresh(ctx), ErrNoRefreshToken)

	require.NoError(t, c.Login(ctx, "reader@example.com", "Secret!pw"))
	assert.Equal(t, first, c.SessionTokenID())
	oldRefresh := c.cookie(refreshTokenCookie)

	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, oldRefresh, body)
	assert.Equal(t, second, c.SessionTokenID())
	assert.Equal(t, second, c.tokenID(c.cookie(refreshTokenCookie)))
}

func TestClient_TokenMismatch(t *testing.T) {
	tests := []struct {
		name  string
		route string
		call  func(c *Client) error
	}{
		{"login", "POST /api/v1/auth/login", func(c *Client) error {
			return c.Login(context.Background(), "reader@example.com", "Secret!pw")
		}},
		{"refresh", "POST /api/v1/auth/refresh", func(c *Client) error {
			c.SetCookies([]*http.Cookie{{Name: "refresh_token", Value: "opaque"}})
			return c.Refresh(context.Background())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc(tt.route, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tokenResponse{
					AccessToken:  signedToken(t, uuid.NewString()),
					RefreshToken: signedToken(t, uuid.NewString()),
				})
			})
			c := newTestClient(t, mux)

			err := tt.call(c)
			assert.ErrorIs(t, err, ErrTokenMismatch)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Empty(t, c.SessionTokenID(), "a mismatched pair is not adopted")
		})
	}
}

func TestClient_RefreshWithoutTokens(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"bearer"}`))
	})
	c := newTestClient(t, mux)
	c.SetCookies([]*http.Cookie{{Name: "refresh_token", Value: "opaque"}})

	assert.ErrorIs(t, c.Refresh(context.Background()), ErrMalformed)
}
