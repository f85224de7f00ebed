package presence

import "testing"

func TestAccessGate_GrantHasClear(t *testing.T) {
	g := NewAccessGate()

	g.Grant("roomX", "user1")
	if !g.HasAccess("roomX", "user1") {
		t.Fatal("user1 should have access after grant")
	}
	if g.HasAccess("roomX", "user2") {
		t.Fatal("user2 never granted, must not have access")
	}
	if g.HasAccess("roomY", "user1") {
		t.Fatal("unknown room must yield false")
	}

	g.Clear("roomX")
	if g.HasAccess("roomX", "user1") {
		t.Fatal("clear must revoke all grants for the room")
	}
}

func TestAccessGate_GrantIdempotent(t *testing.T) {
	g := NewAccessGate()

	g.Grant("r", "u")
	g.Grant("r", "u")
	if !g.HasAccess("r", "u") {
		t.Fatal("double grant must keep access")
	}

	g.Revoke("r", "u")
	if g.HasAccess("r", "u") {
		t.Fatal("revoke must remove the grant")
	}
	// revoking again is a no-op
	g.Revoke("r", "u")
	g.Revoke("unknown", "u")
}
