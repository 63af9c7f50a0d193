// Package session runs one boss encounter per goroutine. Every mutation
// (player commands, the boss retaliation timer, phase deadlines) funnels
// through a single inbox, so the session has exactly one writer and the
// lethal-attack-vs-retaliation race cannot double-apply.
package session

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"raidsrv/internal/player"
	"raidsrv/internal/raid"
	"raidsrv/internal/reward"
	"raidsrv/internal/scaling"
	"raidsrv/internal/store"
)

const logCap = 20

type Config struct {
	LobbyWait             time.Duration
	BattleTimeoutStandard time.Duration
	BattleTimeoutWorld    time.Duration
	RetaliateMinStandard  time.Duration
	RetaliateMaxStandard  time.Duration
	RetaliateMinWorld     time.Duration
	RetaliateMaxWorld     time.Duration

	Scaling scaling.Params
	Reward  reward.Params
}

func (c Config) battleTimeout(t raid.Tier) time.Duration {
	if t == raid.TierWorld {
		return c.BattleTimeoutWorld
	}
	return c.BattleTimeoutStandard
}

func (c Config) retaliateRange(t raid.Tier) (time.Duration, time.Duration) {
	if t == raid.TierWorld {
		return c.RetaliateMinWorld, c.RetaliateMaxWorld
	}
	return c.RetaliateMinStandard, c.RetaliateMaxStandard
}

// Hooks fire on terminal transitions so the hub and the spawn tracker can
// forget the session. Called from inside the loop, last thing before exit.
type Hooks struct {
	OnResolved func(channel string, outcome raid.Outcome)
}

type Runner struct {
	inbox    chan Msg
	sess     *raid.Session
	votes    map[string]bool
	version  int
	watchers map[string]chan Snapshot
	combat   []string
	rewards  []reward.Record
	outcome  raid.Outcome

	// gen invalidates in-flight timers: bump it and any fire armed under the
	// old value becomes a no-op.
	gen int

	sessions store.Sessions
	players  player.Store
	log      *zap.Logger
	rng      *rand.Rand
	cfg      Config
	hooks    Hooks

	ctx    context.Context
	cancel context.CancelFunc

	// done closes when the loop exits; finalSnap is written just before so
	// late callers can still be answered (see commands.go).
	done      chan struct{}
	finalSnap Snapshot
}

func New(parent context.Context, sess *raid.Session, sessions store.Sessions, players player.Store, log *zap.Logger, rng *rand.Rand, cfg Config, hooks Hooks) *Runner {
	ctx, cancel := context.WithCancel(parent)
	r := &Runner{
		inbox:    make(chan Msg, 64),
		sess:     sess,
		votes:    make(map[string]bool),
		watchers: make(map[string]chan Snapshot),
		sessions: sessions,
		players:  players,
		log:      log.With(zap.String("channel", sess.Channel)),
		rng:      rng,
		cfg:      cfg,
		hooks:    hooks,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	r.persist()
	r.armAfter(cfg.LobbyWait, func(gen int) Msg { return lobbyExpired{gen} })
	go r.loop()
	return r
}

func (r *Runner) Inbox() chan<- Msg { return r.inbox }

func (r *Runner) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- r.handleJoin(msg.Snap)
			case VoteStart:
				msg.Reply <- r.handleVote(msg.ActorID, msg.Operator)
			case Attack:
				msg.Reply <- r.handleAttack(msg.ActorID)
			case Leave:
				msg.Reply <- r.handleLeave(msg.ActorID)
			case Watch:
				r.watchers[msg.ID] = msg.Outbox
				msg.Outbox <- r.snapshot()
			case Unwatch:
				delete(r.watchers, msg.ID)
			case lobbyExpired:
				r.handleLobbyExpired(msg.gen)
			case retaliate:
				r.handleRetaliate(msg.gen)
			case battleExpired:
				r.handleBattleExpired(msg.gen)
			case Render:
				msg.Reply <- r.snapshot()
			case GetState:
				msg.Reply <- r.view()
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Runner) handleJoin(snap player.CombatSnapshot) Result {
	if r.sess.Phase != raid.PhaseLobby {
		return Result{Snapshot: r.snapshot(), Err: raid.ErrLobbyClosed}
	}
	if snap.Busy {
		return Result{Snapshot: r.snapshot(), Err: raid.ErrActorBusy}
	}
	if !snap.Ready {
		return Result{Snapshot: r.snapshot(), Err: raid.ErrNotEligible}
	}
	if r.sess.Participant(snap.ActorID) != nil {
		return Result{Snapshot: r.snapshot(), Err: raid.ErrAlreadyJoined}
	}
	if len(r.sess.Participants) >= r.sess.Tier().Capacity() {
		return Result{Snapshot: r.snapshot(), Err: raid.ErrSessionFull}
	}

	r.sess.Participants = append(r.sess.Participants, &raid.Participant{
		ID:        snap.ActorID,
		Name:      snap.Name,
		Health:    snap.Health,
		MaxHealth: snap.Health,
		Attack:    snap.Attack,
		Defense:   snap.Defense,
		Element:   snap.Element,
	})
	r.persist()
	r.bump()
	return Result{Snapshot: r.snapshot()}
}

func (r *Runner) handleVote(actorID string, operator bool) Result {
	if r.sess.Phase != raid.PhaseLobby {
		return Result{Snapshot: r.snapshot(), Err: raid.ErrLobbyClosed}
	}
	if r.sess.Participant(actorID) == nil {
		return Result{Snapshot: r.snapshot(), Err: raid.ErrNotParticipant}
	}
	if r.votes[actorID] {
		return Result{Snapshot: r.snapshot(), Err: raid.ErrAlreadyVoted}
	}
	r.votes[actorID] = true

	// Operators skip the vote count on encounters they spawned themselves.
	immediate := operator && r.sess.Source == raid.SourceOperator
	if immediate || len(r.votes) >= r.voteThreshold() {
		r.startBattle()
	} else {
		r.bump()
	}
	return Result{Snapshot: r.snapshot()}
}

// voteThreshold is a majority of current participants, never below 2.
func (r *Runner) voteThreshold() int {
	n := len(r.sess.Participants)
	maj := n/2 + 1
	if maj < 2 {
		maj = 2
	}
	return maj
}

func (r *Runner) handleLeave(actorID string) Result {
	if r.sess.Phase != raid.PhaseLobby {
		return Result{Snapshot: r.snapshot(), Err: raid.ErrLobbyClosed}
	}
	idx := -1
	for i, p := range r.sess.Participants {
		if p.ID == actorID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Result{Snapshot: r.snapshot(), Err: raid.ErrNotParticipant}
	}
	r.sess.Participants = append(r.sess.Participants[:idx], r.sess.Participants[idx+1:]...)
	delete(r.votes, actorID)
	r.persist()
	r.bump()
	return Result{Snapshot: r.snapshot()}
}

func (r *Runner) handleAttack(actorID string) Result {
	switch r.sess.Phase {
	case raid.PhaseLobby:
		return Result{Snapshot: r.snapshot(), Err: raid.ErrSessionNotActive}
	case raid.PhaseResolved:
		// Timing race, not a user mistake: the command was queued before
		// resolution landed. Absorb it silently.
		return Result{Snapshot: r.snapshot()}
	}
	p := r.sess.Participant(actorID)
	if p == nil {
		return Result{Snapshot: r.snapshot(), Err: raid.ErrNotParticipant}
	}
	if !p.Alive() {
		return Result{Snapshot: r.snapshot(), Err: raid.ErrActorDefeated}
	}

	mult := raid.ElementMultiplier(p.Element, r.sess.Element)
	dmg := raid.Damage(p.Attack, r.sess.Defense, mult, raid.Jitter(r.rng.Float64()))
	p.DamageDealt += dmg
	dead := r.sess.ApplyBossDamage(dmg)
	r.appendLog("%s hits %s for %d", p.Name, r.sess.BossName, dmg)

	if dead {
		r.resolve(raid.OutcomeVictory)
	} else {
		r.persist()
		r.bump()
	}
	return Result{Snapshot: r.snapshot()}
}

func (r *Runner) handleLobbyExpired(gen int) {
	if gen != r.gen || r.sess.Phase != raid.PhaseLobby {
		return
	}
	if len(r.sess.Participants) == 0 {
		// Nobody showed up: delete without ever entering combat.
		r.log.Info("lobby expired empty, despawning")
		r.gen++
		r.sess.Phase = raid.PhaseResolved
		r.outcome = raid.OutcomeAbandoned
		r.terminate(raid.OutcomeAbandoned)
		return
	}
	r.startBattle()
}

// startBattle transitions Lobby -> Active exactly once: scale the boss to the
// party, persist, then arm the battle deadline and the first retaliation.
func (r *Runner) startBattle() {
	r.gen++ // lobby timer is dead from here on
	scaling.Apply(r.sess, r.cfg.Scaling)
	r.sess.Phase = raid.PhaseActive
	r.persist()
	r.appendLog("%s (lv %d) engages %d challengers", r.sess.BossName, r.sess.Level, len(r.sess.Participants))
	r.bump()

	r.armAfter(r.cfg.battleTimeout(r.sess.Tier()), func(gen int) Msg { return battleExpired{gen} })
	r.armRetaliate()
}

func (r *Runner) armRetaliate() {
	min, max := r.cfg.retaliateRange(r.sess.Tier())
	d := min
	if max > min {
		d += time.Duration(r.rng.Int63n(int64(max - min)))
	}
	r.armAfter(d, func(gen int) Msg { return retaliate{gen} })
}

func (r *Runner) handleRetaliate(gen int) {
	// Re-check everything: a victory between the timer wake-up and this point
	// must make it a no-op.
	if gen != r.gen || r.sess.Phase != raid.PhaseActive || r.sess.Health == 0 {
		return
	}
	living := r.sess.Living()
	if len(living) == 0 {
		r.resolve(raid.OutcomeDefeat)
		return
	}
	target := living[r.rng.Intn(len(living))]
	mult := raid.ElementMultiplier(r.sess.Element, target.Element)
	dmg := raid.Damage(r.sess.Attack, target.Defense, mult, raid.Jitter(r.rng.Float64()))
	target.Health -= dmg
	if target.Health < 0 {
		target.Health = 0
	}
	r.appendLog("%s strikes %s for %d", r.sess.BossName, target.Name, dmg)

	if len(r.sess.Living()) == 0 {
		r.resolve(raid.OutcomeDefeat)
		return
	}
	r.persist()
	r.bump()
	r.armRetaliate()
}

func (r *Runner) handleBattleExpired(gen int) {
	if gen != r.gen || r.sess.Phase != raid.PhaseActive {
		return
	}
	r.log.Info("battle deadline hit, abandoning")
	r.resolve(raid.OutcomeAbandoned)
}

// resolve is the single terminal transition. Timer invalidation
// happens-before the row delete so no late fire can resurrect the session.
func (r *Runner) resolve(outcome raid.Outcome) {
	r.gen++
	r.sess.Phase = raid.PhaseResolved
	r.outcome = outcome

	contribs := make([]reward.Contribution, 0, len(r.sess.Participants))
	for _, p := range r.sess.Participants {
		contribs = append(contribs, reward.Contribution{ParticipantID: p.ID, Damage: p.DamageDealt})
	}
	pool := reward.PoolFor(r.sess.Level, r.sess.Rarity, r.sess.Tier(), r.cfg.Reward)
	r.rewards = reward.Distribute(contribs, pool, r.sess.Tier(), outcome, r.cfg.Reward, r.rng)

	for _, rec := range r.rewards {
		if err := r.players.ApplyReward(r.ctx, rec.ParticipantID, r.sess.BossName, rec); err != nil {
			// Reward delivery must not change the combat outcome.
			r.log.Error("apply reward failed", zap.String("actor", rec.ParticipantID), zap.Error(err))
		}
	}

	r.log.Info("session resolved",
		zap.String("outcome", string(outcome)),
		zap.String("boss", r.sess.BossName),
		zap.Int("participants", len(r.sess.Participants)))
	r.terminate(outcome)
}

func (r *Runner) terminate(outcome raid.Outcome) {
	if err := r.sessions.Delete(r.ctx, r.sess.Channel); err != nil {
		r.log.Warn("delete session row failed", zap.Error(err))
	}
	r.bump() // final snapshot, with outcome and rewards
	for id, ch := range r.watchers {
		close(ch)
		delete(r.watchers, id)
	}
	if r.hooks.OnResolved != nil {
		r.hooks.OnResolved(r.sess.Channel, outcome)
	}
	// The loop stays up until the hub, having forgotten us, sends Shutdown:
	// commands already queued behind the terminal transition still get their
	// (no-op) replies instead of hanging. Anything arriving after Shutdown is
	// answered from finalSnap via the done channel (see commands.go).
}

func (r *Runner) shutdown() {
	r.finalSnap = r.snapshot()
	for id, ch := range r.watchers {
		close(ch)
		delete(r.watchers, id)
	}
	r.cancel()
	close(r.done)
}

// persist writes the whole session row. On storage failure we log and keep
// the in-memory state; the next mutation rewrites the full row anyway, so
// retry is inherent.
func (r *Runner) persist() {
	if err := r.sessions.Save(r.ctx, r.sess); err != nil {
		r.log.Warn("persist session failed", zap.Error(err))
	}
}

// armAfter schedules a timer message stamped with the current generation.
func (r *Runner) armAfter(d time.Duration, mk func(gen int) Msg) {
	gen := r.gen
	time.AfterFunc(d, func() {
		select {
		case r.inbox <- mk(gen):
		case <-r.ctx.Done():
		}
	})
}

func (r *Runner) bump() {
	r.version++
	snap := r.snapshot()
	for id, ch := range r.watchers {
		select {
		case ch <- snap:
		default:
			// Watcher is slow/full - drop it.
			close(ch)
			delete(r.watchers, id)
		}
	}
}
