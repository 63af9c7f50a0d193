package session

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"

	"raidsrv/internal/player"
	"raidsrv/internal/raid"
	"raidsrv/internal/reward"
	"raidsrv/internal/scaling"
	"raidsrv/internal/store"
)

// helpers: receive with a timeout so tests never hang

func recvResult(t *testing.T, ch <-chan Result, within time.Duration) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(within):
		t.Fatalf("timed out waiting for result")
		return Result{} // unreachable
	}
}

func recvOutcome(t *testing.T, ch <-chan raid.Outcome, within time.Duration) raid.Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(within):
		t.Fatalf("timed out waiting for resolution")
		return ""
	}
}

func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("watcher outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func getView(t *testing.T, r *Runner) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{}
	}
}

func testConfig() Config {
	return Config{
		LobbyWait:             40 * time.Millisecond,
		BattleTimeoutStandard: time.Minute,
		BattleTimeoutWorld:    time.Minute,
		// Keep the boss quiet unless a test opts in.
		RetaliateMinStandard: time.Hour,
		RetaliateMaxStandard: time.Hour + time.Second,
		RetaliateMinWorld:    time.Hour,
		RetaliateMaxWorld:    time.Hour + time.Second,
		Scaling:              scaling.Defaults(),
		Reward:               reward.Defaults(),
	}
}

func stdSession() *raid.Session {
	return &raid.Session{
		Channel:   "chan-1",
		Level:     3,
		BossName:  "Mire Troll",
		Element:   raid.ElementEarth,
		Health:    900,
		MaxHealth: 900,
		Attack:    60,
		Defense:   40,
		Phase:     raid.PhaseLobby,
		Rarity:    raid.RarityCommon,
		Source:    raid.SourcePlayer,
	}
}

func fighter(id string) player.CombatSnapshot {
	return player.CombatSnapshot{
		ActorID: id,
		Name:    "hero-" + id,
		Health:  300,
		Attack:  90,
		Defense: 50,
		Element: raid.ElementWind,
		Ready:   true,
	}
}

type fixture struct {
	runner   *Runner
	rows     *store.Memory
	players  *player.Memory
	resolved chan raid.Outcome
}

func newFixture(t *testing.T, sess *raid.Session, cfg Config) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := &fixture{
		rows:     store.NewMemory(),
		players:  player.NewMemory(),
		resolved: make(chan raid.Outcome, 1),
	}
	hooks := Hooks{OnResolved: func(_ string, outcome raid.Outcome) { f.resolved <- outcome }}
	f.runner = New(ctx, sess, f.rows, f.players, zap.NewNop(), rand.New(rand.NewSource(7)), cfg, hooks)
	return f
}

func (f *fixture) join(t *testing.T, snap player.CombatSnapshot) Result {
	t.Helper()
	reply := make(chan Result, 1)
	f.runner.Inbox() <- Join{Snap: snap, Reply: reply}
	return recvResult(t, reply, time.Second)
}

func (f *fixture) vote(t *testing.T, actorID string, operator bool) Result {
	t.Helper()
	reply := make(chan Result, 1)
	f.runner.Inbox() <- VoteStart{ActorID: actorID, Operator: operator, Reply: reply}
	return recvResult(t, reply, time.Second)
}

func (f *fixture) attack(t *testing.T, actorID string) Result {
	t.Helper()
	reply := make(chan Result, 1)
	f.runner.Inbox() <- Attack{ActorID: actorID, Reply: reply}
	return recvResult(t, reply, time.Second)
}

func TestJoin_Validation(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute // no auto-start during this test

	cases := []struct {
		name    string
		prep    func(f *fixture)
		snap    player.CombatSnapshot
		wantErr error
	}{
		{
			name:    "busy actor rejected",
			snap:    func() player.CombatSnapshot { s := fighter("a"); s.Busy = true; return s }(),
			wantErr: raid.ErrActorBusy,
		},
		{
			name:    "unready party rejected",
			snap:    func() player.CombatSnapshot { s := fighter("a"); s.Ready = false; return s }(),
			wantErr: raid.ErrNotEligible,
		},
		{
			name: "double join rejected",
			prep: func(f *fixture) {
				if res := f.join(t, fighter("a")); res.Err != nil {
					t.Fatalf("setup join: %v", res.Err)
				}
			},
			snap:    fighter("a"),
			wantErr: raid.ErrAlreadyJoined,
		},
		{
			name: "full session rejected",
			prep: func(f *fixture) {
				for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
					if res := f.join(t, fighter(id)); res.Err != nil {
						t.Fatalf("setup join %s: %v", id, res.Err)
					}
				}
			},
			snap:    fighter("p6"),
			wantErr: raid.ErrSessionFull,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, stdSession(), cfg)
			if tc.prep != nil {
				tc.prep(f)
			}
			res := f.join(t, tc.snap)
			if !errors.Is(res.Err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, res.Err)
			}
		})
	}
}

func TestEmptyLobby_TimesOutAndIsDeleted(t *testing.T) {
	f := newFixture(t, stdSession(), testConfig())

	outcome := recvOutcome(t, f.resolved, time.Second)
	if outcome != raid.OutcomeAbandoned {
		t.Fatalf("want abandoned, got %v", outcome)
	}
	if ok, _ := f.rows.Has(context.Background(), "chan-1"); ok {
		t.Fatalf("expected session row deleted")
	}
	view := getView(t, f.runner)
	if view.Phase == raid.PhaseActive {
		t.Fatalf("empty lobby must never go active")
	}
}

func TestLobbyTimeout_AutoStartsWithOneJoiner(t *testing.T) {
	f := newFixture(t, stdSession(), testConfig())

	if res := f.join(t, fighter("solo")); res.Err != nil {
		t.Fatalf("join: %v", res.Err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		view := getView(t, f.runner)
		if view.Phase == raid.PhaseActive {
			if !view.Session.Scaled {
				t.Fatalf("expected boss scaled on battle start")
			}
			p := view.Session.Participants[0]
			mult := scaling.Multiplier([]*raid.Participant{p}, scaling.Defaults())
			// MaxHealth must reflect the single joiner's power.
			want := int(float64(900)*mult + 0.5)
			got := view.Session.MaxHealth
			if got < want-1 || got > want+1 {
				t.Fatalf("scaled max health: want ~%d, got %d", want, got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("lobby never auto-started; phase=%v", view.Phase)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestVote_ThresholdStartsBattle(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute
	f := newFixture(t, stdSession(), cfg)

	for _, id := range []string{"a", "b", "c"} {
		if res := f.join(t, fighter(id)); res.Err != nil {
			t.Fatalf("join %s: %v", id, res.Err)
		}
	}

	if res := f.vote(t, "nobody", false); !errors.Is(res.Err, raid.ErrNotParticipant) {
		t.Fatalf("want ErrNotParticipant, got %v", res.Err)
	}
	if res := f.vote(t, "a", false); res.Err != nil {
		t.Fatalf("first vote: %v", res.Err)
	}
	if res := f.vote(t, "a", false); !errors.Is(res.Err, raid.ErrAlreadyVoted) {
		t.Fatalf("want ErrAlreadyVoted, got %v", res.Err)
	}
	if view := getView(t, f.runner); view.Phase != raid.PhaseLobby {
		t.Fatalf("one vote of three must not start the battle")
	}

	// Majority of 3 is 2.
	if res := f.vote(t, "b", false); res.Err != nil {
		t.Fatalf("second vote: %v", res.Err)
	}
	if view := getView(t, f.runner); view.Phase != raid.PhaseActive {
		t.Fatalf("want active after majority vote, got %v", view.Phase)
	}
}

func TestVote_OperatorStartsImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute
	sess := stdSession()
	sess.Source = raid.SourceOperator
	f := newFixture(t, sess, cfg)

	if res := f.join(t, fighter("op")); res.Err != nil {
		t.Fatalf("join: %v", res.Err)
	}
	if res := f.vote(t, "op", true); res.Err != nil {
		t.Fatalf("vote: %v", res.Err)
	}
	if view := getView(t, f.runner); view.Phase != raid.PhaseActive {
		t.Fatalf("operator vote should start combat immediately, got %v", view.Phase)
	}
}

func TestAttack_BeforeStartRejected(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute
	f := newFixture(t, stdSession(), cfg)

	if res := f.join(t, fighter("a")); res.Err != nil {
		t.Fatalf("join: %v", res.Err)
	}
	if res := f.attack(t, "a"); !errors.Is(res.Err, raid.ErrSessionNotActive) {
		t.Fatalf("want ErrSessionNotActive, got %v", res.Err)
	}
}

// startLethal builds a fixture one attack away from victory: the boss sits
// at 1 HP and is pre-scaled so the battle-start scaling pass is a no-op.
func startLethal(t *testing.T, cfg Config) *fixture {
	t.Helper()
	sess := stdSession()
	sess.Source = raid.SourceOperator
	sess.Scaled = true
	sess.Health = 1
	f := newFixture(t, sess, cfg)

	if res := f.join(t, fighter("a")); res.Err != nil {
		t.Fatalf("join: %v", res.Err)
	}
	if res := f.vote(t, "a", true); res.Err != nil {
		t.Fatalf("vote: %v", res.Err)
	}
	return f
}

func TestAttack_VictoryResolvesAndPaysOut(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute
	f := startLethal(t, cfg)

	res := f.attack(t, "a")
	if res.Err != nil {
		t.Fatalf("lethal attack: %v", res.Err)
	}
	if res.Snapshot.View.Phase != string(raid.PhaseResolved) {
		t.Fatalf("want resolved, got %v", res.Snapshot.View.Phase)
	}
	if outcome := recvOutcome(t, f.resolved, time.Second); outcome != raid.OutcomeVictory {
		t.Fatalf("want victory, got %v", outcome)
	}
	if ok, _ := f.rows.Has(context.Background(), "chan-1"); ok {
		t.Fatalf("resolved session row must be deleted")
	}
	if f.players.Gold["a"] <= 0 || f.players.XP["a"] <= 0 {
		t.Fatalf("expected a payout, got gold=%d xp=%d", f.players.Gold["a"], f.players.XP["a"])
	}
}

func TestAttack_AfterResolutionIsSilentNoOp(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute
	f := startLethal(t, cfg)

	if res := f.attack(t, "a"); res.Err != nil {
		t.Fatalf("lethal attack: %v", res.Err)
	}
	_ = recvOutcome(t, f.resolved, time.Second)
	goldAfterVictory := f.players.Gold["a"]

	// Queued-too-late attack: no error, no damage, no second payout.
	res := f.attack(t, "a")
	if res.Err != nil {
		t.Fatalf("post-resolution attack must not error, got %v", res.Err)
	}
	if f.players.Gold["a"] != goldAfterVictory {
		t.Fatalf("rewards double-applied: %d -> %d", goldAfterVictory, f.players.Gold["a"])
	}
}

func TestCommand_AfterShutdownStillAnswers(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute
	f := startLethal(t, cfg)

	if res := f.attack(t, "a"); res.Err != nil {
		t.Fatalf("lethal attack: %v", res.Err)
	}
	_ = recvOutcome(t, f.resolved, time.Second)

	// The hub forgets a resolved session and stops its runner. A client that
	// fetched the runner before that still holds the pointer and may keep
	// sending commands; each one must come back promptly as a no-op.
	f.runner.Stop()

	done := make(chan Result, 1)
	go func() { done <- f.runner.Attack("a") }()
	select {
	case res := <-done:
		if res.Err != nil {
			t.Fatalf("post-stop attack must not error, got %v", res.Err)
		}
		if res.Snapshot.View.Phase != string(raid.PhaseResolved) {
			t.Fatalf("post-stop attack must answer with the final state, got %v", res.Snapshot.View.Phase)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("command sent after shutdown never answered")
	}

	// Render and watcher registration must not hang either.
	if snap := f.runner.Render(); snap.View.Phase != string(raid.PhaseResolved) {
		t.Fatalf("render after shutdown: want resolved, got %v", snap.View.Phase)
	}
	if f.runner.AddWatcher("late", make(chan Snapshot, 1)) {
		t.Fatalf("watcher registration must report the runner gone")
	}
	f.runner.Stop() // idempotent
}

func TestRetaliation_StaleFireAfterVictoryIsNoOp(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute
	f := startLethal(t, cfg)

	genBefore := getView(t, f.runner).Gen
	if res := f.attack(t, "a"); res.Err != nil {
		t.Fatalf("lethal attack: %v", res.Err)
	}
	_ = recvOutcome(t, f.resolved, time.Second)
	healthBefore := getView(t, f.runner).Session.Participants[0].Health

	// A retaliation armed before the victory fires now.
	f.runner.Inbox() <- retaliate{gen: genBefore}

	view := getView(t, f.runner)
	if got := view.Session.Participants[0].Health; got != healthBefore {
		t.Fatalf("stale retaliation applied damage: %d -> %d", healthBefore, got)
	}
	if view.Outcome != raid.OutcomeVictory {
		t.Fatalf("outcome must stay victory, got %v", view.Outcome)
	}
	if len(view.Rewards) != 1 {
		t.Fatalf("rewards must be distributed exactly once, got %d records", len(view.Rewards))
	}
}

func TestRetaliation_WipesPartyToDefeat(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute
	cfg.RetaliateMinStandard = 10 * time.Millisecond
	cfg.RetaliateMaxStandard = 15 * time.Millisecond

	sess := stdSession()
	sess.Source = raid.SourceOperator
	sess.Scaled = true
	sess.Attack = 5000 // one strike kills anyone
	f := newFixture(t, sess, cfg)

	glass := fighter("glass")
	glass.Health = 10
	if res := f.join(t, glass); res.Err != nil {
		t.Fatalf("join: %v", res.Err)
	}
	if res := f.vote(t, "glass", true); res.Err != nil {
		t.Fatalf("vote: %v", res.Err)
	}

	if outcome := recvOutcome(t, f.resolved, 2*time.Second); outcome != raid.OutcomeDefeat {
		t.Fatalf("want defeat, got %v", outcome)
	}
	view := getView(t, f.runner)
	if h := view.Session.Participants[0].Health; h != 0 {
		t.Fatalf("defeated participant health must clamp to 0, got %d", h)
	}
}

func TestBattleTimeout_Abandons(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute
	cfg.BattleTimeoutStandard = 30 * time.Millisecond

	f := startLethal(t, cfg)

	if outcome := recvOutcome(t, f.resolved, time.Second); outcome != raid.OutcomeAbandoned {
		t.Fatalf("want abandoned, got %v", outcome)
	}
	// Standard-tier timeout pays nothing.
	if f.players.Gold["a"] != 0 {
		t.Fatalf("standard abandon must not pay, got %d gold", f.players.Gold["a"])
	}
}

func TestPersistFailure_RetriedOnNextMutation(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute
	f := newFixture(t, stdSession(), cfg)

	f.rows.FailNext = true
	if res := f.join(t, fighter("a")); res.Err != nil {
		t.Fatalf("join must survive a storage blip: %v", res.Err)
	}
	if res := f.join(t, fighter("b")); res.Err != nil {
		t.Fatalf("second join: %v", res.Err)
	}
	row, ok := f.rows.Row("chan-1")
	if !ok {
		t.Fatalf("row missing after retry")
	}
	if len(row.Participants) != 2 {
		t.Fatalf("retried row must carry full state, got %d participants", len(row.Participants))
	}
}

func TestWatch_BroadcastAndSlowWatcherDrop(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute
	f := newFixture(t, stdSession(), cfg)

	out := make(chan Snapshot, 1)
	f.runner.Inbox() <- Watch{ID: "w1", Outbox: out}
	first := recvSnapshot(t, out, time.Second)
	if first.Version != 0 {
		t.Fatalf("want version 0 on watch, got %d", first.Version)
	}

	// Two mutations against a full buffer: the watcher gets dropped.
	if res := f.join(t, fighter("a")); res.Err != nil {
		t.Fatalf("join: %v", res.Err)
	}
	if res := f.join(t, fighter("b")); res.Err != nil {
		t.Fatalf("join: %v", res.Err)
	}
	if view := getView(t, f.runner); view.NumWatchers != 0 {
		t.Fatalf("expected slow watcher dropped, NumWatchers=%d", view.NumWatchers)
	}
}

func TestLeave_LobbyOnly(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyWait = time.Minute
	f := newFixture(t, stdSession(), cfg)

	if res := f.join(t, fighter("a")); res.Err != nil {
		t.Fatalf("join: %v", res.Err)
	}
	reply := make(chan Result, 1)
	f.runner.Inbox() <- Leave{ActorID: "a", Reply: reply}
	if res := recvResult(t, reply, time.Second); res.Err != nil {
		t.Fatalf("leave: %v", res.Err)
	}
	if view := getView(t, f.runner); len(view.Session.Participants) != 0 {
		t.Fatalf("participant not removed")
	}
}
