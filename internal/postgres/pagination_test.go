package postgres

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"
)

func TestRoomCursor_RoundTrip(t *testing.T) {
	in := roomCursor{CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), ID: "abc"}

	out, err := parseRoomCursor(in.token())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestRoomCursor_EmptyIsFirstPage(t *testing.T) {
	c, err := parseRoomCursor("")
	if err != nil || c != nil {
		t.Fatalf("empty token = (%v, %v), want (nil, nil)", c, err)
	}
}

func TestRoomCursor_Invalid(t *testing.T) {
	cases := map[string]string{
		"not base64":       "!!not-base64!!",
		"not json":         base64.RawURLEncoding.EncodeToString([]byte("hello")),
		"missing position": base64.RawURLEncoding.EncodeToString([]byte(`{}`)),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseRoomCursor(token); !errors.Is(err, ErrInvalidCursor) {
				t.Fatalf("err = %v, want ErrInvalidCursor", err)
			}
		})
	}
}
