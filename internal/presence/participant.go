package presence

import "time"

// Conn is the outbound transport handle for one connected client.
// A registry entry exclusively owns its Conn; once the entry is removed
// the handle must not be used for addressing anymore.
type Conn interface {
	Send(v any) error
	Close() error
}

// Participant is one connected client inside one room. ParticipantID is
// stable for the lifetime of a tab's session and may differ from UserID
// when the same account is connected twice.
type Participant struct {
	ParticipantID string
	UserID        string
	Username      string
	IsHost        bool
	IsSpeaking    bool
	JoinedAt      time.Time
	Conn          Conn
}
