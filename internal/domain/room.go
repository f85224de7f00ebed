package domain

import "time"

type Room struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	Category     string    `db:"category"`
	IsPrivate    bool      `db:"is_private"`
	PasswordHash string    `db:"password_hash" json:"-"`
	HostID       string    `db:"host_id"`
	HostUsername string    `db:"host_username"`
	MaxSpeakers  int64     `db:"max_speakers"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
}
