package postgres

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// roomCursor marks a keyset position in the active-rooms listing: the
// created_at and id of the last row already served. Rooms sort newest
// first, so the next page continues strictly below this position even
// when rooms share a creation timestamp. Clients see it only as an
// opaque token.
type roomCursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

func (c roomCursor) token() string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// parseRoomCursor returns nil for an empty token (first page) and
// ErrInvalidCursor for anything that is not a token we produced.
func parseRoomCursor(token string) (*roomCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidCursor, err)
	}
	var c roomCursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidCursor, err)
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		return nil, fmt.Errorf("%w: missing position", ErrInvalidCursor)
	}
	return &c, nil
}
