package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"
)

const (
	userAgent          = "shelf/1.0"
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
	defaultTimeout     = 10 * time.Second
	maxErrorBodyLength = 4 << 10
)

// Client talks to the book service backend. Transport-level session state
// lives in its cookie jar.
type Client struct {
	base *url.URL
	log  *slog.Logger

	mu   sync.RWMutex
	http *http.Client
	jar  *cookiejar.Jar
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Client{base: u, log: log}
	c.http = &http.Client{Timeout: timeout}
	c.ResetCookies()
	return c, nil
}

// Cookies returns the transport cookies held for the backend.
func (c *Client) Cookies() []*http.Cookie {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jar.Cookies(c.base)
}

// SetCookies loads previously persisted transport cookies into the jar.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	scoped := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		cp := *ck
		if cp.Path == "" {
			cp.Path = "/"
		}
		scoped = append(scoped, &cp)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	c.jar.SetCookies(c.base, scoped)
}

// ResetCookies drops every transport cookie by replacing the jar.
func (c *Client) ResetCookies() {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.jar = jar
	c.http = &http.Client{Jar: jar, Timeout: c.http.Timeout}
}

// SessionTokenID returns the jti of the current access token cookie, or ""
// when there is no token or it cannot be parsed. The signature is not
// verified: the value is only compared against session ids the backend
// reported, never trusted for authorization.
func (c *Client) SessionTokenID() string {
	return c.tokenID(c.cookie(accessTokenCookie))
}

func (c *Client) cookie(name string) string {
	for _, ck := range c.Cookies() {
		if ck.Name == name {
			return strings.TrimPrefix(strings.Trim(ck.Value, `"`), "Bearer ")
		}
	}
	return ""
}

func (c *Client) tokenID(raw string) string {
	if raw == "" {
		return ""
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		c.log.Debug("token not parsable", "error", err)
		return ""
	}
	return claims.ID
}

// adoptTokens stores a token pair returned in a response body into jar and
// checks that the pair now held names a single session. Tokens delivered
// only as Set-Cookie headers are already in the jar.
func (c *Client) adoptTokens(jar *cookiejar.Jar, path string, tok tokenResponse) error {
	if tok.AccessToken != "" && tok.RefreshToken != "" {
		if err := c.matchTokens(tok.AccessToken, tok.RefreshToken); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		jar.SetCookies(c.base, []*http.Cookie{
			{Name: accessTokenCookie, Value: tok.AccessToken, Path: "/", HttpOnly: true},
			{Name: refreshTokenCookie, Value: tok.RefreshToken, Path: "/", HttpOnly: true},
		})
	}
	if err := c.matchTokens(c.cookie(accessTokenCookie), c.cookie(refreshTokenCookie)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// matchTokens fails when both tokens carry a jti and they differ. Opaque
// tokens are not compared.
func (c *Client) matchTokens(access, refresh string) error {
	a, r := c.tokenID(access), c.tokenID(refresh)
	if a != "" && r != "" && a != r {
		return fmt.Errorf("access jti %s, refresh jti %s: %w", a, r, ErrTokenMismatch)
	}
	return nil
}

func (c *Client) currentJar() *cookiejar.Jar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jar
}

func (c *Client) client() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.http
}

// do sends a JSON request and decodes a 2xx JSON response into dst (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rdr)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client().Do(req)
	if err != nil {
		c.log.Debug("request failed", "method", method, "path", path, "request_id", reqID, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("request done", "method", method, "path", path, "request_id", reqID,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return &Error{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(resp.Header.Get("Content-Type"), raw),
		}
	}

	if dst == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding %s response: %w: %w", path, ErrMalformed, err)
	}
	return nil
}
