package mysql_test

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"battlemap_server/internal/dao/mysql"
	"battlemap_server/internal/model"
	"battlemap_server/pkg/errorx"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func TestSessionRepository_JoinCodeLookup(t *testing.T) {
	repos := newReposForTest(t)
	s := &model.Session{Uuid: "s-1", Name: "Goblin Cave", JoinCode: "ABC234", MapId: "m-1", OwnerId: "u-dm", IsActive: true, Round: 1, LastActivity: time.Now()}
	if err := repos.Session.Create(s); err != nil {
		t.Fatalf("create: %v", err)
	}

	exists, err := repos.Session.ExistsByJoinCode("ABC234")
	if err != nil || !exists {
		t.Fatalf("exists=%v err=%v", exists, err)
	}
	exists, err = repos.Session.ExistsByJoinCode("ZZZ999")
	if err != nil || exists {
		t.Fatalf("unexpected exists=%v err=%v", exists, err)
	}

	got, err := repos.Session.FindByJoinCode("ABC234")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Uuid != "s-1" {
		t.Fatalf("uuid=%s", got.Uuid)
	}

	_, err = repos.Session.FindByUuid("missing")
	if !errorx.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionRepository_FindExpired(t *testing.T) {
	repos := newReposForTest(t)
	now := time.Now()
	rows := []*model.Session{
		{Uuid: "fresh", JoinCode: "AAAAA2", LastActivity: now, ExpiresAt: sql.NullTime{Time: now.Add(time.Hour), Valid: true}},
		{Uuid: "expired", JoinCode: "AAAAA3", LastActivity: now, ExpiresAt: sql.NullTime{Time: now.Add(-time.Minute), Valid: true}},
		{Uuid: "idle", JoinCode: "AAAAA4", LastActivity: now.Add(-48 * time.Hour)},
		{Uuid: "forever", JoinCode: "AAAAA5", LastActivity: now},
	}
	for _, r := range rows {
		if err := repos.Session.Create(r); err != nil {
			t.Fatalf("create %s: %v", r.Uuid, err)
		}
	}

	list, err := repos.Session.FindExpired(now, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("find expired: %v", err)
	}
	got := map[string]bool{}
	for _, s := range list {
		got[s.Uuid] = true
	}
	if len(got) != 2 || !got["expired"] || !got["idle"] {
		t.Fatalf("unexpected expired set: %v", got)
	}

	list, err = repos.Session.FindExpired(now, time.Time{})
	if err != nil {
		t.Fatalf("find expired without inactivity: %v", err)
	}
	if len(list) != 1 || list[0].Uuid != "expired" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestParticipantRepository_UniquePerSessionUser(t *testing.T) {
	repos := newReposForTest(t)
	p := &model.SessionParticipant{SessionId: "s-1", UserId: "u-1", Role: "PLAYER", JoinedAt: time.Now()}
	if err := repos.Participant.Create(p); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &model.SessionParticipant{SessionId: "s-1", UserId: "u-1", Role: "DM", JoinedAt: time.Now()}
	if err := repos.Participant.Create(dup); err == nil {
		t.Fatalf("expected unique violation")
	} else if errorx.GetCode(err) != errorx.CodeDBError {
		t.Fatalf("code=%d", errorx.GetCode(err))
	}

	if err := repos.Participant.UpdateFields("s-1", "u-1", map[string]interface{}{"is_connected": true, "role": "DM"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repos.Participant.Find("s-1", "u-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.IsConnected || got.Role != "DM" {
		t.Fatalf("unexpected row: %+v", got)
	}

	if err := repos.Participant.MarkAllDisconnected(); err != nil {
		t.Fatalf("mark all: %v", err)
	}
	got, _ = repos.Participant.Find("s-1", "u-1")
	if got.IsConnected {
		t.Fatalf("still connected")
	}

	if err := repos.Participant.Delete("s-1", "u-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, err := repos.Participant.CountBySession("s-1")
	if err != nil || n != 0 {
		t.Fatalf("count=%d err=%v", n, err)
	}
}

func TestRepositories_TransactionRollback(t *testing.T) {
	repos := newReposForTest(t)
	err := repos.Transaction(func(tx *mysql.Repositories) error {
		if err := tx.Session.Create(&model.Session{Uuid: "tx", JoinCode: "TXTXT2", LastActivity: time.Now()}); err != nil {
			return err
		}
		return errorx.ErrServerBusy
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, err := repos.Session.FindByUuid("tx"); !errorx.IsNotFound(err) {
		t.Fatalf("row should be rolled back, got %v", err)
	}
}
