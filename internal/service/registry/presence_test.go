package registry

import "testing"

func TestPresence_UpsertOverwrites(t *testing.T) {
	tr := NewPresenceTracker()
	tr.Upsert("u1", Presence{SessionId: "s1", ConnId: "c1", Connected: true})
	tr.Upsert("u1", Presence{SessionId: "s1", ConnId: "c2", Connected: true})
	if tr.Len() != 1 {
		t.Fatalf("len=%d", tr.Len())
	}
	p, ok := tr.Get("u1")
	if !ok || p.ConnId != "c2" {
		t.Fatalf("got %+v", p)
	}
}

func TestPresence_MarkDisconnectedMatchesConnection(t *testing.T) {
	tr := NewPresenceTracker()
	tr.Upsert("u1", Presence{SessionId: "s1", ConnId: "c1", Connected: true})
	// 重连后旧连接的断开事件不应影响新连接
	tr.Upsert("u1", Presence{SessionId: "s1", ConnId: "c2", Connected: true})

	if _, ok := tr.MarkDisconnected("c1"); ok {
		t.Fatalf("stale connection id must not match")
	}
	p, ok := tr.MarkDisconnected("c2")
	if !ok || p.UserId != "u1" || p.Connected {
		t.Fatalf("got %+v ok=%v", p, ok)
	}
	if _, ok := tr.MarkDisconnected("c2"); ok {
		t.Fatalf("second disconnect is a no-op")
	}
}

func TestPresence_CursorRequiresConnected(t *testing.T) {
	tr := NewPresenceTracker()
	if tr.UpdateCursor("u1", Position{X: 1, Y: 2}) {
		t.Fatalf("unknown user")
	}
	tr.Upsert("u1", Presence{SessionId: "s1", ConnId: "c1", Connected: true})
	if !tr.UpdateCursor("u1", Position{X: 1, Y: 2}) {
		t.Fatalf("connected user")
	}
	p, _ := tr.Get("u1")
	if p.Cursor == nil || p.Cursor.X != 1 || p.Cursor.Y != 2 {
		t.Fatalf("cursor=%v", p.Cursor)
	}
	tr.SetDisconnected("u1")
	if tr.UpdateCursor("u1", Position{}) {
		t.Fatalf("disconnected user")
	}
	tr.RemoveSession("s1")
	if _, ok := tr.Get("u1"); ok {
		t.Fatalf("session presence should be removed")
	}
}
