package api

import (
	"context"
	"fmt"
	"net/http"
)

// Login authenticates with email and password. On success the backend sets
// the session cookies; the response body carries no profile. A token pair
// naming two different sessions is rejected with ErrTokenMismatch.
func (c *Client) Login(ctx context.Context, email, password string) error {
	jar := c.currentJar()
	var tok tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &tok); err != nil {
		return err
	}
	return c.adoptTokens(jar, "/auth/login", tok)
}

// Refresh exchanges the refresh token for a new token pair. The backend
// rotates the session, so the jti changes on every successful call.
func (c *Client) Refresh(ctx context.Context) error {
	jar := c.currentJar()
	rt := c.cookie(refreshTokenCookie)
	if rt == "" {
		return ErrNoRefreshToken
	}

	var tok tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: rt}, &tok); err != nil {
		return err
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return fmt.Errorf("refresh response without tokens: %w", ErrMalformed)
	}
	return c.adoptTokens(jar, "/auth/refresh", tok)
}

// Register creates an account. It does not start a session.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	req := registerRequest{Username: username, Email: email, Password: password}
	return c.do(ctx, http.MethodPost, "/auth/register", req, nil)
}

// Logout ends the current session on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Status fetches the profile behind the current session.
func (c *Client) Status(ctx context.Context) (*Account, error) {
	var acct Account
	if err := c.do(ctx, http.MethodGet, "/auth/status", nil, &acct); err != nil {
		return nil, err
	}
	if acct.ID == 0 || acct.Username == "" {
		return nil, fmt.Errorf("status response without id or username: %w", ErrMalformed)
	}
	return &acct, nil
}

// ListSessions returns the caller's active sessions.
func (c *Client) ListSessions(ctx context.Context) ([]ActiveSession, error) {
	var resp sessionsResponse
	if err := c.do(ctx, http.MethodGet, "/auth/sessions", nil, &resp); err != nil {
		return nil, err
	}
	for _, s := range resp.Sessions {
		if s.ID == "" {
			return nil, fmt.Errorf("session entry without id: %w", ErrMalformed)
		}
	}
	return resp.Sessions, nil
}

// RevokeSessions revokes one session, or every session other than the
// caller's when sessionID is empty. It returns how many were revoked.
func (c *Client) RevokeSessions(ctx context.Context, sessionID string) (int, error) {
	var resp revokeResponse
	if err := c.do(ctx, http.MethodPost, "/auth/sessions/revoke", revokeRequest{SessionID: sessionID}, &resp); err != nil {
		return 0, err
	}
	if resp.Count == nil {
		if sessionID != "" {
			return 1, nil
		}
		return 0, fmt.Errorf("revoke response without count: %w", ErrMalformed)
	}
	return *resp.Count, nil
}
