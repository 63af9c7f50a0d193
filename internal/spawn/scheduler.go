// Package spawn decides, per community, when a new world encounter should
// appear. The scheduler is an explicitly constructed service with Start/Stop;
// nothing here lives at package level.
package spawn

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"raidsrv/internal/raid"
)

// SessionSource is what the scheduler needs from the hub: an active-session
// check and a way to publish a new lobby.
type SessionSource interface {
	HasSession(channel string) bool
	CreateSession(sess *raid.Session) error
}

type Config struct {
	Tick          time.Duration
	BaseChance    float64
	SpecialChance float64
	// Cooldown after the boss was slain vs. after it left unbeaten. Shipped
	// equal; kept as two knobs so tuning one is a config change.
	DefeatCooldown  time.Duration
	DespawnCooldown time.Duration
	ActivityDivisor float64 // commands per +1.0 activity multiplier
	MaxActivityMult float64
	MaxTimeMult     float64
}

func DefaultConfig() Config {
	return Config{
		Tick:            5 * time.Minute,
		BaseChance:      0.15,
		SpecialChance:   0.5,
		DefeatCooldown:  45 * time.Minute,
		DespawnCooldown: 45 * time.Minute,
		ActivityDivisor: 20,
		MaxActivityMult: 3.0,
		MaxTimeMult:     2.0,
	}
}

var rarityWeights = []struct {
	Rarity raid.Rarity
	Weight int
}{
	{raid.RarityCommon, 48},
	{raid.RarityRare, 27},
	{raid.RarityEpic, 15},
	{raid.RarityLegendary, 8},
	{raid.RarityUltra, 2},
}

type Scheduler struct {
	tracker  *Tracker
	sessions SessionSource
	log      *zap.Logger
	cfg      Config

	mu  sync.Mutex // guards rng; special triggers come from other goroutines
	rng *rand.Rand

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(tracker *Tracker, sessions SessionSource, log *zap.Logger, rng *rand.Rand, cfg Config) *Scheduler {
	return &Scheduler{
		tracker:  tracker,
		sessions: sessions,
		log:      log.Named("spawn"),
		rng:      rng,
		cfg:      cfg,
	}
}

func (s *Scheduler) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(time.Now())
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	for _, community := range s.tracker.Communities() {
		if s.shouldSpawn(community, now) {
			s.spawnWorld(community)
		}
	}
}

// shouldSpawn applies the guards, then a Bernoulli trial whose probability
// grows with command activity and with time since the last spawn. The
// cooldown depends on how the previous encounter ended.
func (s *Scheduler) shouldSpawn(community string, now time.Time) bool {
	if s.sessions.HasSession(community) {
		return false
	}
	st := s.tracker.Stats(community, now)
	cooldown := s.cfg.DespawnCooldown
	if st.LastDefeat.After(st.LastDespawn) {
		cooldown = s.cfg.DefeatCooldown
	}
	since := now.Sub(st.LastSpawn)
	if !st.LastSpawn.IsZero() && since < cooldown {
		return false
	}

	activity := 1.0 + float64(st.Commands)/s.cfg.ActivityDivisor
	if activity > s.cfg.MaxActivityMult {
		activity = s.cfg.MaxActivityMult
	}
	timeMult := 1.0
	if !st.LastSpawn.IsZero() {
		timeMult = float64(since) / float64(cooldown)
		if timeMult > s.cfg.MaxTimeMult {
			timeMult = s.cfg.MaxTimeMult
		}
	}
	p := s.cfg.BaseChance * activity * timeMult

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

func (s *Scheduler) spawnWorld(community string) {
	s.mu.Lock()
	rarity := s.rollRarity()
	boss := raid.PickBoss(s.rng, rarity)
	level := boss.RollLevel(s.rng)
	s.mu.Unlock()

	hp, atk, def := boss.StatsAt(level)
	sess := &raid.Session{
		Channel:   community,
		Level:     level,
		BossName:  boss.Name,
		Element:   boss.Element,
		Health:    hp,
		MaxHealth: hp,
		Attack:    atk,
		Defense:   def,
		Phase:     raid.PhaseLobby,
		World:     true,
		Rarity:    boss.Rarity,
		Source:    raid.SourceScheduler,
	}
	if err := s.sessions.CreateSession(sess); err != nil {
		// Lost a race with a player-triggered spawn; nothing to do.
		s.log.Info("spawn skipped", zap.String("community", community), zap.Error(err))
		return
	}
	s.tracker.RecordSpawn(community)
	s.log.Info("world encounter spawned",
		zap.String("community", community),
		zap.String("boss", boss.Name),
		zap.String("rarity", string(boss.Rarity)),
		zap.Int("level", level))
}

// rollRarity walks the weighted table. Caller holds s.mu.
func (s *Scheduler) rollRarity() raid.Rarity {
	total := 0
	for _, rw := range rarityWeights {
		total += rw.Weight
	}
	roll := s.rng.Intn(total)
	for _, rw := range rarityWeights {
		roll -= rw.Weight
		if roll < 0 {
			return rw.Rarity
		}
	}
	return raid.RarityCommon
}

// TriggerSpecialSpawn runs an elevated-probability trial outside the periodic
// tick, for game events like long win streaks. Same no-active-session guard.
func (s *Scheduler) TriggerSpecialSpawn(community, reason string) bool {
	if s.sessions.HasSession(community) {
		return false
	}
	s.mu.Lock()
	hit := s.rng.Float64() < s.cfg.SpecialChance
	s.mu.Unlock()
	if !hit {
		return false
	}
	s.log.Info("special spawn triggered", zap.String("community", community), zap.String("reason", reason))
	s.spawnWorld(community)
	return true
}
