package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"raidsrv/internal/player"
	"raidsrv/internal/raid"
	"raidsrv/internal/scaling"
	"raidsrv/internal/session"
	"raidsrv/internal/store"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := session.Config{
		LobbyWait:             time.Minute,
		BattleTimeoutStandard: time.Minute,
		BattleTimeoutWorld:    time.Minute,
		RetaliateMinStandard:  time.Hour,
		RetaliateMaxStandard:  time.Hour + time.Second,
		RetaliateMinWorld:     time.Hour,
		RetaliateMaxWorld:     time.Hour + time.Second,
		Scaling:               scaling.Defaults(),
	}
	return NewHub(ctx, store.NewMemory(), player.NewMemory(), zap.NewNop(), cfg)
}

func sessionFor(channel string) *raid.Session {
	return &raid.Session{
		Channel: channel, Level: 1, BossName: "Mire Troll",
		Element: raid.ElementEarth, Health: 100, MaxHealth: 100,
		Attack: 10, Defense: 10, Phase: raid.PhaseLobby,
		Rarity: raid.RarityCommon, Source: raid.SourcePlayer,
	}
}

func TestHub_Create_Get_SamePointer(t *testing.T) {
	h := testHub(t)

	r1, err := h.Create(sessionFor("guild-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r2 := h.Get("guild-1")
	if r1 == nil || r2 == nil || r1 != r2 {
		t.Fatalf("expected same runner pointer")
	}
}

func TestHub_RejectsSecondSessionOnChannel(t *testing.T) {
	h := testHub(t)

	if _, err := h.Create(sessionFor("guild-1")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := h.Create(sessionFor("guild-1")); !errors.Is(err, raid.ErrSessionExists) {
		t.Fatalf("want ErrSessionExists, got %v", err)
	}
	if !h.HasSession("guild-1") {
		t.Fatalf("HasSession should see the live runner")
	}
	if h.HasSession("guild-2") {
		t.Fatalf("HasSession must not invent runners")
	}
}

func TestHub_RemoveForgetsRunner(t *testing.T) {
	h := testHub(t)

	if _, err := h.Create(sessionFor("guild-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	h.Inbox() <- RemoveSession{Channel: "guild-1"}

	deadline := time.Now().Add(time.Second)
	for h.Get("guild-1") != nil {
		if time.Now().After(deadline) {
			t.Fatalf("runner still registered after remove")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
