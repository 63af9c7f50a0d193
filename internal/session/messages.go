package session

import (
	"raidsrv/internal/player"
	"raidsrv/internal/raid"
	"raidsrv/internal/reward"
	"raidsrv/pkg/types"
)

type Msg interface{ isSessionMsg() }

// Join carries the actor's combat snapshot, already resolved by the caller
// against the player store, so the loop itself never blocks on I/O.
type Join struct {
	Snap  player.CombatSnapshot
	Reply chan Result
}

func (Join) isSessionMsg() {}

type VoteStart struct {
	ActorID  string
	Operator bool
	Reply    chan Result
}

func (VoteStart) isSessionMsg() {}

type Attack struct {
	ActorID string
	Reply   chan Result
}

func (Attack) isSessionMsg() {}

type Leave struct {
	ActorID string
	Reply   chan Result
}

func (Leave) isSessionMsg() {}

// Watch registers a presentation surface; it receives every snapshot until
// it falls behind or the session resolves.
type Watch struct {
	ID     string
	Outbox chan Snapshot
}

func (Watch) isSessionMsg() {}

type Unwatch struct{ ID string }

func (Unwatch) isSessionMsg() {}

// Render asks for the current snapshot without mutating anything.
type Render struct {
	Reply chan Snapshot
}

func (Render) isSessionMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// Timer messages carry the generation they were armed under; a fire whose
// generation no longer matches is stale and gets dropped.
type lobbyExpired struct{ gen int }

func (lobbyExpired) isSessionMsg() {}

type retaliate struct{ gen int }

func (retaliate) isSessionMsg() {}

type battleExpired struct{ gen int }

func (battleExpired) isSessionMsg() {}

// Result is the synchronous answer to a player command: the fresh render
// snapshot, or a typed rejection from the raid package.
type Result struct {
	Snapshot Snapshot
	Err      error
}

type Snapshot struct {
	Version int
	View    types.SessionView
}

// View reflects internal state for tests without data races.
type View struct {
	Version     int
	NumWatchers int
	Gen         int
	Phase       raid.Phase
	Outcome     raid.Outcome
	Session     raid.Session
	Rewards     []reward.Record
}
