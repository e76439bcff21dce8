package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"battlemap_server/internal/infrastructure/worker"
	"battlemap_server/internal/service/permission"
	"battlemap_server/internal/service/registry"
)

// slowStore 参与者写入带延迟，持久层落后于事件循环，和生产环境的队列一致
type slowStore struct {
	*fakeStore
	delay time.Duration
}

func (s *slowStore) CreateParticipant(ctx context.Context, sessionId string, p registry.Participant) error {
	time.Sleep(s.delay)
	return s.fakeStore.CreateParticipant(ctx, sessionId, p)
}

func (s *slowStore) UpdateParticipant(ctx context.Context, sessionId, userId string, upd ParticipantUpdate) error {
	time.Sleep(s.delay)
	return s.fakeStore.UpdateParticipant(ctx, sessionId, userId, upd)
}

func (s *slowStore) RemoveParticipant(ctx context.Context, sessionId, userId string) error {
	time.Sleep(s.delay)
	return s.fakeStore.RemoveParticipant(ctx, sessionId, userId)
}

// setupQueued 持久化走 worker.Queue，参与者写入每次延迟 200ms
func setupQueued(t *testing.T) (*Hub, *fakeStore, string) {
	t.Helper()
	store := seededStore()
	store.setAccess(sid, "dm2", permission.RoleDM)

	persist := worker.NewQueue(1, 64)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = persist.Close(ctx)
	})
	hub := NewHub(&slowStore{fakeStore: store, delay: 200 * time.Millisecond}, nil, persist, Options{
		Inactivity:        time.Hour,
		RoleLookupTimeout: time.Second,
	})
	return hub, store, serve(t, hub)
}

func (f *fakeStore) roleOf(sessionId, userId string) (permission.Role, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.access[accessKey(sessionId, userId)]
	if !ok {
		return permission.RoleNone, false
	}
	return a.Role, true
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func joinDMs(t *testing.T, base string) (*testConn, *testConn) {
	t.Helper()
	dm := dial(t, base, "dm")
	dm.join("dm")
	dm2 := dial(t, base, "dm2")
	dm2.join("dm2")
	dm.until(EventUserJoined)
	return dm, dm2
}

func TestDemotionAppliesBeforePersistenceLands(t *testing.T) {
	_, store, base := setupQueued(t)
	dm, dm2 := joinDMs(t, base)

	dm.send(EventUpdateRole, UpdateRolePayload{Target: Target{SessionId: sid}, TargetUserId: "dm2", Role: "PLAYER"})
	dm2.until(EventRoleUpdated)

	dm2.send(EventMapUpdate, MapUpdatePayload{Target: Target{SessionId: sid}, MapData: json.RawMessage(`{"w":1}`)})
	_, raw := dm2.until(EventPermissionDenied)
	var d PermissionDeniedPayload
	_ = json.Unmarshal(raw, &d)
	if d.Action != EventMapUpdate {
		t.Fatalf("action = %q", d.Action)
	}

	dm2.send(EventChatMessage, ChatPayload{Target: Target{SessionId: sid}, Message: ChatBody{Message: "sync"}})
	seen, _ := dm.until(EventChatMessage)
	if contains(seen, EventMapUpdated) {
		t.Fatalf("demoted player's edit was relayed: %v", seen)
	}

	eventually(t, "persisted demotion", func() bool {
		role, _ := store.roleOf(sid, "dm2")
		return role == permission.RolePlayer
	})
}

func TestKickedUserRejoinsAsPlayer(t *testing.T) {
	hub, store, base := setupQueued(t)
	dm, dm2 := joinDMs(t, base)

	dm.send(EventKickParticipant, KickPayload{Target: Target{SessionId: sid}, TargetUserId: "dm2"})
	dm2.until(EventKickedFromSession)

	again := dial(t, base, "dm2")
	st := again.join("dm2")
	if st.Role != permission.RolePlayer || st.Permissions[permission.CanEditMap] {
		t.Fatalf("rejoined with role=%s perms=%v", st.Role, st.Permissions)
	}

	again.send(EventTerrainUpdate, TerrainUpdatePayload{
		Target:  Target{SessionId: sid},
		Terrain: []historyCell{{X: 2, Y: 2, Terrain: "WATER"}},
	})
	again.until(EventPermissionDenied)

	part, ok := registry.Participant{}, false
	_ = hub.Do(context.Background(), func() { part, ok = hub.reg.Participant(sid, "dm2") })
	if !ok || part.Role != permission.RolePlayer || part.AssignedCharacterId != "" {
		t.Fatalf("registry after rejoin: ok=%v %+v", ok, part)
	}

	eventually(t, "recreated player row", func() bool {
		role, ok := store.roleOf(sid, "dm2")
		return ok && role == permission.RolePlayer
	})
}

func TestSupersedeAcrossSessionsDisconnectsOldRoom(t *testing.T) {
	hub, store, base := setupQueued(t)
	store.addSession(registry.Persisted{Id: "s2", OwnerId: "owner", IsActive: true, Round: 1, LastActivity: time.Now()})
	store.setAccess("s2", "dm", permission.RoleDM)
	first, player := joinPair(t, base)

	second := dial(t, base, "dm")
	second.joinSession("s2", "dm")

	_, raw := player.until(EventUserDisconnected)
	var ref UserRefPayload
	_ = json.Unmarshal(raw, &ref)
	if ref.UserId != "dm" {
		t.Fatalf("user-disconnected = %+v", ref)
	}

	_, raw = first.until(EventSessionError)
	var e SessionErrorPayload
	_ = json.Unmarshal(raw, &e)
	if e.Code != ErrCodeSuperseded {
		t.Fatalf("code = %q", e.Code)
	}
	_ = first.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := first.conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}

	snap, ok, err := hub.Snapshot(context.Background(), sid)
	if err != nil || !ok {
		t.Fatalf("snapshot: ok=%v err=%v", ok, err)
	}
	for _, p := range snap.Participants {
		if p.UserId == "dm" && p.IsConnected {
			t.Fatal("dm still marked connected in the old session")
		}
	}
}
