package auth

import (
	"testing"
	"time"
)

func TestJWT_SignVerify(t *testing.T) {
	j := New("test-secret", time.Minute)

	tok, err := j.Sign("user-1", "alice")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	id, err := j.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "user-1" || id.Username != "alice" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestJWT_RejectsForeignSecret(t *testing.T) {
	tok, err := New("secret-a", time.Minute).Sign("user-1", "alice")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := New("secret-b", time.Minute).Verify(tok); err == nil {
		t.Fatal("token signed with another secret must not verify")
	}
}

func TestJWT_RejectsExpired(t *testing.T) {
	j := New("secret", -time.Minute)

	tok, err := j.Sign("user-1", "alice")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := j.Verify(tok); err == nil {
		t.Fatal("expired token must not verify")
	}
}
