package cache

import (
	"database/sql"
	"time"

	"github.com/fragmede/shelf/internal/api"
)

// PutActiveSessions replaces the cached list of the caller's active sessions.
func (d *DB) PutActiveSessions(list []api.ActiveSession) error {
	now := time.Now().Unix()
	return withTx(d.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM active_sessions`); err != nil {
			return err
		}
		for i, s := range list {
			_, err := tx.Exec(`INSERT OR REPLACE INTO active_sessions
				(id, ip_address, user_agent, created_at, position, fetched_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				s.ID, nullStr(s.IPAddress), nullStr(s.UserAgent), s.CreatedAt.Unix(), i, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ActiveSessions returns the cached list in the order the backend sent it.
// fetchedAt is zero when nothing is cached.
func (d *DB) ActiveSessions() (list []api.ActiveSession, fetchedAt time.Time, err error) {
	rows, err := d.db.Query(`SELECT id, ip_address, user_agent, created_at, fetched_at
		FROM active_sessions ORDER BY position ASC`)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	var latest int64
	for rows.Next() {
		var s api.ActiveSession
		var ip, ua sql.NullString
		var created, fetched int64
		if err := rows.Scan(&s.ID, &ip, &ua, &created, &fetched); err != nil {
			return nil, time.Time{}, err
		}
		s.IPAddress = ip.String
		s.UserAgent = ua.String
		s.CreatedAt = time.Unix(created, 0).UTC()
		if fetched > latest {
			latest = fetched
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, err
	}
	if latest == 0 {
		return list, time.Time{}, nil
	}
	return list, time.Unix(latest, 0), nil
}

// DeleteActiveSession drops one cached entry, e.g. right after revoking it.
func (d *DB) DeleteActiveSession(id string) error {
	_, err := d.db.Exec(`DELETE FROM active_sessions WHERE id = ?`, id)
	return err
}
