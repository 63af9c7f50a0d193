package spawn

import (
	"sync"
	"time"

	"raidsrv/internal/raid"
)

// communityState is per-community spawn bookkeeping. Defeat (boss slain) and
// despawn (timeout, empty lobby) are tracked separately so the scheduler can
// cool them down independently.
type communityState struct {
	commands    int
	windowStart time.Time
	lastSpawn   time.Time
	lastDefeat  time.Time
	lastDespawn time.Time
}

// Tracker is the best-effort activity cache. In-memory only; losing it on
// restart just shifts a spawn opportunity, it can't corrupt game state.
type Tracker struct {
	mu     sync.Mutex
	window time.Duration
	comms  map[string]*communityState
}

func NewTracker(window time.Duration) *Tracker {
	return &Tracker{window: window, comms: make(map[string]*communityState)}
}

func (t *Tracker) state(community string, now time.Time) *communityState {
	cs, ok := t.comms[community]
	if !ok {
		cs = &communityState{windowStart: now}
		t.comms[community] = cs
	}
	if now.Sub(cs.windowStart) > t.window {
		cs.commands = 0
		cs.windowStart = now
	}
	return cs
}

// RecordCommand bumps the rolling activity counter. Called on every game
// command observed in a community.
func (t *Tracker) RecordCommand(community string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(community, time.Now()).commands++
}

func (t *Tracker) RecordSpawn(community string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(community, time.Now()).lastSpawn = time.Now()
}

// RecordOutcome maps a session result onto the cooldown timestamps: a slain
// boss marks lastDefeat, everything else is a despawn.
func (t *Tracker) RecordOutcome(community string, outcome raid.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs := t.state(community, time.Now())
	if outcome == raid.OutcomeVictory {
		cs.lastDefeat = time.Now()
	} else {
		cs.lastDespawn = time.Now()
	}
}

func (t *Tracker) Communities() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.comms))
	for c := range t.comms {
		out = append(out, c)
	}
	return out
}

// Stats is the snapshot shouldSpawn works from, taken under one lock.
type Stats struct {
	Commands    int
	LastSpawn   time.Time
	LastDefeat  time.Time
	LastDespawn time.Time
}

func (t *Tracker) Stats(community string, now time.Time) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs := t.state(community, now)
	return Stats{
		Commands:    cs.commands,
		LastSpawn:   cs.lastSpawn,
		LastDefeat:  cs.lastDefeat,
		LastDespawn: cs.lastDespawn,
	}
}
