package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"battlemap_server/internal/config"
	"battlemap_server/internal/dao/mysql"
	myredis "battlemap_server/internal/dao/redis"
	"battlemap_server/internal/dto/request"
	"battlemap_server/internal/model"
	"battlemap_server/internal/service/joincode"
	"battlemap_server/internal/service/permission"
	"battlemap_server/internal/service/realtime"
	"battlemap_server/internal/service/registry"
	"battlemap_server/pkg/errorx"
	"battlemap_server/pkg/util/jwt"
)

type fakeLive struct {
	mu        sync.Mutex
	evicted   []string
	refreshed []registry.Persisted
}

func (f *fakeLive) EvictSessions(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicted = append(f.evicted, ids...)
	return nil
}

func (f *fakeLive) RefreshSession(_ context.Context, p registry.Persisted) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, p)
	return nil
}

func newReposForTest(t *testing.T) *mysql.Repositories {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := mysql.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return mysql.NewRepositories(db)
}

func newServiceForTest(t *testing.T, maxParticipants int) (*sessionService, *mysql.Repositories, *fakeLive) {
	t.Helper()
	jwt.Init("session-test-secret", 60)
	repos := newReposForTest(t)
	if err := repos.BattleMap.Create(&model.BattleMap{Uuid: "map-1", Name: "Goblin Cave", OwnerId: "dm"}); err != nil {
		t.Fatalf("seed map: %v", err)
	}
	cfg := config.Default().SessionConfig
	cfg.MaxParticipants = maxParticipants
	live := &fakeLive{}
	return NewSessionService(repos, nil, live, cfg), repos, live
}

func createForTest(t *testing.T, svc *sessionService) (sessionId, code string) {
	t.Helper()
	out, err := svc.CreateSession(context.Background(), request.CreateSessionRequest{MapId: "map-1", OwnerId: "dm", DisplayName: "The DM"})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return out.Session.Id, out.Session.JoinCode
}

func TestCreateSession_OwnerBecomesDM(t *testing.T) {
	svc, repos, _ := newServiceForTest(t, 8)
	before := time.Now()

	out, err := svc.CreateSession(context.Background(), request.CreateSessionRequest{MapId: "map-1", OwnerId: "dm"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if out.Session.Name != "Session for Goblin Cave" {
		t.Fatalf("name=%q", out.Session.Name)
	}
	if !joincode.IsValidFormat(out.Session.JoinCode) {
		t.Fatalf("join code %q has invalid format", out.Session.JoinCode)
	}
	if out.Session.ExpiresAt == nil || out.Session.ExpiresAt.Before(before.Add(23*time.Hour)) {
		t.Fatalf("expiresAt=%v", out.Session.ExpiresAt)
	}
	if out.Session.CurrentTurn != 0 || out.Session.Round != 1 || !out.Session.IsActive {
		t.Fatalf("unexpected initial state %+v", out.Session)
	}

	p, err := repos.Participant.Find(out.Session.Id, "dm")
	if err != nil {
		t.Fatalf("find owner: %v", err)
	}
	if p.Role != string(permission.RoleDM) {
		t.Fatalf("owner role=%q", p.Role)
	}

	claims, err := jwt.ParseToken(out.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != "dm" || claims.SessionID != out.Session.Id {
		t.Fatalf("claims=%+v", claims)
	}
}

func TestCreateSession_MapMissing(t *testing.T) {
	svc, _, _ := newServiceForTest(t, 8)
	_, err := svc.CreateSession(context.Background(), request.CreateSessionRequest{MapId: "nope", OwnerId: "dm"})
	if errorx.HTTPStatus(err) != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestValidateJoinCode(t *testing.T) {
	svc, repos, _ := newServiceForTest(t, 8)
	id, code := createForTest(t, svc)
	ctx := context.Background()

	preview, err := svc.ValidateJoinCode(ctx, " "+strings.ToLower(code)+" ")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !preview.Valid || preview.Session.Id != id || preview.Session.MapName != "Goblin Cave" || preview.Session.ParticipantCount != 1 {
		t.Fatalf("preview=%+v", preview)
	}

	if _, err := svc.ValidateJoinCode(ctx, "AB"); errorx.HTTPStatus(err) != 400 {
		t.Fatalf("short code: %v", err)
	}
	if _, err := svc.ValidateJoinCode(ctx, "ZZZZZZ"); errorx.HTTPStatus(err) != 404 {
		t.Fatalf("unknown code: %v", err)
	}

	past := sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true}
	if err := repos.Session.UpdateFields(id, map[string]interface{}{"expires_at": past}); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if _, err := svc.ValidateJoinCode(ctx, code); errorx.HTTPStatus(err) != 410 {
		t.Fatalf("expired code: %v", err)
	}
}

func TestJoinByCode(t *testing.T) {
	svc, repos, _ := newServiceForTest(t, 2)
	id, code := createForTest(t, svc)
	ctx := context.Background()

	out, err := svc.JoinByCode(ctx, request.JoinSessionRequest{JoinCode: code, UserId: "alice"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if out.Message != "Joined session successfully" || out.Participant.Role != "PLAYER" || out.Participant.DisplayName != "Anonymous" {
		t.Fatalf("join result=%+v", out)
	}
	if len(out.Session.Participants) != 2 {
		t.Fatalf("participants=%d", len(out.Session.Participants))
	}

	again, err := svc.JoinByCode(ctx, request.JoinSessionRequest{JoinCode: code, UserId: "alice", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if again.Message != "Reconnected to session" || again.Participant.DisplayName != "Alice" {
		t.Fatalf("rejoin result=%+v", again.Participant)
	}

	if _, err := svc.JoinByCode(ctx, request.JoinSessionRequest{JoinCode: code, UserId: "bob"}); errorx.HTTPStatus(err) != 409 {
		t.Fatalf("expected full, got %v", err)
	}

	if err := repos.Session.UpdateFields(id, map[string]interface{}{"is_active": false}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.JoinByCode(ctx, request.JoinSessionRequest{JoinCode: code, UserId: "alice"}); errorx.HTTPStatus(err) != 403 {
		t.Fatalf("expected inactive, got %v", err)
	}
}

func TestUpdateSession_RequiresControl(t *testing.T) {
	svc, _, live := newServiceForTest(t, 8)
	id, code := createForTest(t, svc)
	ctx := context.Background()
	if _, err := svc.JoinByCode(ctx, request.JoinSessionRequest{JoinCode: code, UserId: "alice"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	name := "Dragon Lair"
	if _, err := svc.UpdateSession(ctx, request.UpdateSessionRequest{SessionId: id, UserId: "alice", Name: &name}); errorx.HTTPStatus(err) != 403 {
		t.Fatalf("player update: %v", err)
	}
	if _, err := svc.UpdateSession(ctx, request.UpdateSessionRequest{SessionId: id, UserId: "stranger", Name: &name}); errorx.HTTPStatus(err) != 403 {
		t.Fatalf("stranger update: %v", err)
	}

	round := 3
	out, err := svc.UpdateSession(ctx, request.UpdateSessionRequest{SessionId: id, UserId: "dm", Name: &name, Round: &round})
	if err != nil {
		t.Fatalf("dm update: %v", err)
	}
	if out.Name != name || out.Round != 3 {
		t.Fatalf("updated=%+v", out)
	}
	if len(live.refreshed) != 1 || live.refreshed[0].Name != name || len(live.refreshed[0].Participants) != 2 {
		t.Fatalf("refreshed=%+v", live.refreshed)
	}
}

func TestDeleteSession_OwnerOnly(t *testing.T) {
	svc, repos, live := newServiceForTest(t, 8)
	id, code := createForTest(t, svc)
	ctx := context.Background()
	if _, err := svc.JoinByCode(ctx, request.JoinSessionRequest{JoinCode: code, UserId: "alice"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := svc.DeleteSession(ctx, request.DeleteSessionRequest{SessionId: id, UserId: "alice"}); errorx.HTTPStatus(err) != 403 {
		t.Fatalf("player delete: %v", err)
	}
	if err := svc.DeleteSession(ctx, request.DeleteSessionRequest{SessionId: id, UserId: "dm"}); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := repos.Session.FindByUuid(id); !errorx.IsNotFound(err) {
		t.Fatalf("session still present: %v", err)
	}
	if n, _ := repos.Participant.CountBySession(id); n != 0 {
		t.Fatalf("participants left: %d", n)
	}
	if len(live.evicted) != 1 || live.evicted[0] != id {
		t.Fatalf("evicted=%v", live.evicted)
	}
	if err := svc.DeleteSession(ctx, request.DeleteSessionRequest{SessionId: id, UserId: "dm"}); errorx.HTTPStatus(err) != 404 {
		t.Fatalf("second delete: %v", err)
	}
}

func TestCleanupExpired(t *testing.T) {
	svc, repos, live := newServiceForTest(t, 8)
	svc.cfg.InactivityHours = 24
	now := time.Now()
	seed := []model.Session{
		{Uuid: "past-expiry", JoinCode: "AAAAA2", ExpiresAt: sql.NullTime{Time: now.Add(-time.Hour), Valid: true}, LastActivity: now},
		{Uuid: "idle", JoinCode: "AAAAA3", ExpiresAt: sql.NullTime{Time: now.Add(time.Hour), Valid: true}, LastActivity: now.Add(-48 * time.Hour)},
		{Uuid: "fresh", JoinCode: "AAAAA4", ExpiresAt: sql.NullTime{Time: now.Add(time.Hour), Valid: true}, LastActivity: now},
	}
	for i := range seed {
		seed[i].Name, seed[i].MapId, seed[i].OwnerId, seed[i].IsActive, seed[i].Round = "s", "map-1", "dm", true, 1
		if err := repos.Session.Create(&seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, err := svc.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed %d sessions", n)
	}
	if _, err := repos.Session.FindByUuid("fresh"); err != nil {
		t.Fatalf("fresh session removed: %v", err)
	}
	if len(live.evicted) != 2 {
		t.Fatalf("evicted=%v", live.evicted)
	}

	n, err = svc.CleanupExpired(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("second sweep n=%d err=%v", n, err)
	}
}

func TestStore_AccessCacheAside(t *testing.T) {
	svc, repos, _ := newServiceForTest(t, 8)
	id, code := createForTest(t, svc)
	ctx := context.Background()
	if _, err := svc.JoinByCode(ctx, request.JoinSessionRequest{JoinCode: code, UserId: "alice"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := myredis.NewAccessCache(myredis.NewRedisCache(client, 1, 16), time.Minute)
	store := NewStore(repos, cache)

	access, err := store.GetParticipantAccess(ctx, id, "alice")
	if err != nil || access == nil || access.Role != permission.RolePlayer || access.IsOwner {
		t.Fatalf("first lookup access=%+v err=%v", access, err)
	}
	key := fmt.Sprintf("battlemap:access:%s:%s", id, "alice")
	deadline := time.Now().Add(2 * time.Second)
	for !server.Exists(key) {
		if time.Now().After(deadline) {
			t.Fatal("access was not written back to cache")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// 绕过 Store 直接改库，缓存里仍是旧值
	if err := repos.Participant.UpdateFields(id, "alice", map[string]interface{}{"role": "DM"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	access, _ = store.GetParticipantAccess(ctx, id, "alice")
	if access.Role != permission.RolePlayer {
		t.Fatalf("expected cached PLAYER, got %q", access.Role)
	}

	role := permission.RoleDM
	character := "hero-1"
	if err := store.UpdateParticipant(ctx, id, "alice", realtime.ParticipantUpdate{Role: &role, AssignedCharacterId: &character}); err != nil {
		t.Fatalf("store update: %v", err)
	}
	if server.Exists(key) {
		t.Fatal("cache entry should be invalidated")
	}
	access, _ = store.GetParticipantAccess(ctx, id, "alice")
	if access.Role != permission.RoleDM || access.AssignedCharacterId != "hero-1" {
		t.Fatalf("after invalidate access=%+v", access)
	}

	owner, _ := store.GetParticipantAccess(ctx, id, "dm")
	if owner == nil || !owner.IsOwner {
		t.Fatalf("owner access=%+v", owner)
	}
	if none, err := store.GetParticipantAccess(ctx, id, "stranger"); err != nil || none != nil {
		t.Fatalf("stranger access=%+v err=%v", none, err)
	}
}

func TestStore_LoadSessionAndKick(t *testing.T) {
	svc, repos, _ := newServiceForTest(t, 8)
	id, code := createForTest(t, svc)
	ctx := context.Background()
	if _, err := svc.JoinByCode(ctx, request.JoinSessionRequest{JoinCode: code, UserId: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	store := NewStore(repos, nil)

	if _, err := store.LoadSession(ctx, "missing"); errorx.GetCode(err) != errorx.CodeSessionNotFound {
		t.Fatalf("missing session: %v", err)
	}
	p, err := store.LoadSession(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.OwnerId != "dm" || p.JoinCode != code || len(p.Participants) != 2 || p.ExpiresAt == nil {
		t.Fatalf("persisted=%+v", p)
	}
	if p.Participants[0].UserId != "dm" || p.Participants[1].DisplayName != "Alice" {
		t.Fatalf("roster order=%+v", p.Participants)
	}

	if err := store.UpdateTurn(ctx, id, registry.TurnState{CurrentTurn: 1, Round: 4}); err != nil {
		t.Fatalf("turn: %v", err)
	}
	if err := store.RemoveParticipant(ctx, id, "alice"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	p, _ = store.LoadSession(ctx, id)
	if p.CurrentTurn != 1 || p.Round != 4 || len(p.Participants) != 1 {
		t.Fatalf("after kick=%+v", p)
	}
}
