package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	keyProfile       = "profile"
	keyAuthenticated = "authenticated"
	keyCookies       = "cookies"
	keySavedAt       = "saved_at"
)

// ErrCorruptSession marks a persisted session that exists but cannot be
// decoded. Other LoadSession errors are database failures.
var ErrCorruptSession = errors.New("corrupt persisted session")

// Profile is the persisted copy of the signed-in user.
type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// SessionRecord is the persisted mirror of the in-memory session. The
// profile and flag are stored under keys distinct from the transport cookies.
type SessionRecord struct {
	Profile       *Profile
	Authenticated bool
	Cookies       []*http.Cookie
	SavedAt       time.Time
}

type savedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// SaveSession replaces the persisted mirror in one transaction.
func (d *DB) SaveSession(rec SessionRecord) error {
	profile, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}

	sc := make([]savedCookie, len(rec.Cookies))
	for i, c := range rec.Cookies {
		sc[i] = savedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}
	cookies, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encoding cookies: %w", err)
	}

	savedAt := rec.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	values := map[string]string{
		keyProfile:       string(profile),
		keyAuthenticated: fmt.Sprint(rec.Authenticated),
		keyCookies:       string(cookies),
		keySavedAt:       savedAt.UTC().Format(time.RFC3339Nano),
	}
	return withTx(d.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM session`); err != nil {
			return err
		}
		for k, v := range values {
			if _, err := tx.Exec(`INSERT INTO session (key, value) VALUES (?, ?)`, k, v); err != nil {
				return fmt.Errorf("saving %s: %w", k, err)
			}
		}
		return nil
	})
}

// LoadSession reads the persisted mirror. ok is false when nothing is stored.
func (d *DB) LoadSession() (rec SessionRecord, ok bool, err error) {
	rows, err := d.db.Query(`SELECT key, value FROM session`)
	if err != nil {
		return SessionRecord{}, false, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return SessionRecord{}, false, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return SessionRecord{}, false, err
	}
	if len(values) == 0 {
		return SessionRecord{}, false, nil
	}

	rec.Authenticated = values[keyAuthenticated] == "true"
	if raw := values[keyProfile]; raw != "" && raw != "null" {
		var p Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return SessionRecord{}, false, fmt.Errorf("decoding profile: %w: %w", ErrCorruptSession, err)
		}
		rec.Profile = &p
	}
	if raw := values[keyCookies]; raw != "" {
		var sc []savedCookie
		if err := json.Unmarshal([]byte(raw), &sc); err != nil {
			return SessionRecord{}, false, fmt.Errorf("decoding cookies: %w: %w", ErrCorruptSession, err)
		}
		for _, c := range sc {
			rec.Cookies = append(rec.Cookies, &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HttpOnly: c.HttpOnly,
			})
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, values[keySavedAt]); err == nil {
		rec.SavedAt = t
	}
	return rec, true, nil
}

// ClearSession erases the persisted mirror and the cached active-sessions
// list in one transaction.
func (d *DB) ClearSession() error {
	return withTx(d.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM session`); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM active_sessions`)
		return err
	})
}
