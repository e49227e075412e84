package api

import "time"

// Account is the profile returned by GET /auth/status.
type Account struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

// ActiveSession is one entry of GET /auth/sessions.
type ActiveSession struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenResponse is the body of login and refresh. Both tokens are also set
// as cookies by the backend.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Username     string `json:"username"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type revokeRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type revokeResponse struct {
	Count *int `json:"count"`
}

type sessionsResponse struct {
	Sessions []ActiveSession `json:"sessions"`
}
