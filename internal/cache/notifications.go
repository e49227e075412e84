package cache

import "time"

// Notification is one entry of the user-facing message log.
type Notification struct {
	ID        int64
	Level     string
	Text      string
	CreatedAt time.Time
	Read      bool
}

// AddNotification appends a message to the log.
func (d *DB) AddNotification(level, text string) error {
	_, err := d.db.Exec(`INSERT INTO notifications (level, text, created_at, read) VALUES (?, ?, ?, 0)`,
		level, text, time.Now().UnixNano())
	return err
}

// Notifications returns the newest entries first.
func (d *DB) Notifications(limit int) ([]Notification, error) {
	rows, err := d.db.Query(`SELECT id, level, text, created_at, read
		FROM notifications ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		var n Notification
		var created int64
		var read int
		if err := rows.Scan(&n.ID, &n.Level, &n.Text, &created, &read); err != nil {
			return nil, err
		}
		n.CreatedAt = time.Unix(0, created)
		n.Read = read != 0
		result = append(result, n)
	}
	return result, rows.Err()
}

// MarkNotificationsRead marks every entry read.
func (d *DB) MarkNotificationsRead() error {
	_, err := d.db.Exec(`UPDATE notifications SET read = 1 WHERE read = 0`)
	return err
}

// UnreadNotificationCount returns the count of unread notifications.
func (d *DB) UnreadNotificationCount() int {
	var count int
	d.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE read = 0`).Scan(&count)
	return count
}
