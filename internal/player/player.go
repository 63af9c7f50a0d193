// Package player is the boundary to the profile/inventory service. Combat
// only ever sees effective stats and a busy flag, and only ever writes
// reward deltas back.
package player

import (
	"context"
	"errors"
	"sync"

	"raidsrv/internal/raid"
	"raidsrv/internal/reward"
)

var ErrUnknownActor = errors.New("unknown actor")

// CombatSnapshot is an actor's effective combat profile at join time: base
// stats plus equipment and sub-unit contributions, already summed by the
// profile service.
type CombatSnapshot struct {
	ActorID  string
	Name     string
	Health   int
	Attack   int
	Defense  int
	Element  raid.Element
	Ready    bool // party fully equipped and eligible to fight
	Busy     bool // locked in another exclusive activity
	Operator bool // elevated privilege
}

type Store interface {
	CombatSnapshot(ctx context.Context, actorID string) (CombatSnapshot, error)
	// ApplyReward credits one resolved encounter's payout. boss names the
	// collectible an unlock roll refers to.
	ApplyReward(ctx context.Context, actorID, boss string, rec reward.Record) error
}

// Memory is the in-process implementation used for wiring and tests.
type Memory struct {
	mu        sync.Mutex
	snapshots map[string]CombatSnapshot
	Gold      map[string]int
	XP        map[string]int
	Crystals  map[string]int
	Unlocks   map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		snapshots: make(map[string]CombatSnapshot),
		Gold:      make(map[string]int),
		XP:        make(map[string]int),
		Crystals:  make(map[string]int),
		Unlocks:   make(map[string][]string),
	}
}

func (m *Memory) Put(snap CombatSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.ActorID] = snap
}

func (m *Memory) CombatSnapshot(_ context.Context, actorID string) (CombatSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[actorID]
	if !ok {
		return CombatSnapshot{}, ErrUnknownActor
	}
	return snap, nil
}

func (m *Memory) ApplyReward(_ context.Context, actorID, boss string, rec reward.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gold[actorID] += rec.Gold
	m.XP[actorID] += rec.XP
	m.Crystals[actorID] += rec.Crystals
	if rec.UnlockWon {
		m.Unlocks[actorID] = append(m.Unlocks[actorID], boss)
	}
	return nil
}
