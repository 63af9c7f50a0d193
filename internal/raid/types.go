package raid

import "errors"

var ErrAlreadyJoined = errors.New("already joined")
var ErrSessionFull = errors.New("session is full")
var ErrNotEligible = errors.New("party not ready")
var ErrActorBusy = errors.New("busy in another activity")
var ErrNotParticipant = errors.New("not a participant")
var ErrAlreadyVoted = errors.New("already voted")
var ErrActorDefeated = errors.New("actor is defeated")
var ErrSessionNotActive = errors.New("session is not active")
var ErrSessionExists = errors.New("channel already has a session")
var ErrSessionNotFound = errors.New("no session for channel")
var ErrLobbyClosed = errors.New("lobby phase is over")

type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseActive   Phase = "active"
	PhaseResolved Phase = "resolved"
)

type Outcome string

const (
	OutcomeVictory   Outcome = "victory"
	OutcomeDefeat    Outcome = "defeat"
	OutcomeAbandoned Outcome = "abandoned"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityUltra     Rarity = "ultra"
)

type Tier string

const (
	TierStandard Tier = "standard"
	TierWorld    Tier = "world"
)

func (t Tier) Capacity() int {
	if t == TierWorld {
		return 10
	}
	return 5
}

// Source records who created the session; operator-sourced lobbies let the
// operator start combat without a vote threshold.
type Source string

const (
	SourceScheduler Source = "scheduler"
	SourceOperator  Source = "operator"
	SourcePlayer    Source = "player"
)

type Participant struct {
	ID          string
	Name        string
	Health      int
	MaxHealth   int
	Attack      int
	Defense     int
	Element     Element
	DamageDealt int
}

func (p *Participant) Alive() bool { return p.Health > 0 }

// Session is one cooperative boss encounter, keyed by channel. One per
// channel, enforced by the store and the hub together.
type Session struct {
	Channel   string
	Level     int
	BossName  string
	Element   Element
	Health    int
	MaxHealth int
	Attack    int
	Defense   int

	// Participants keeps join order; ids are unique within a session.
	Participants []*Participant

	Phase  Phase
	Scaled bool
	World  bool
	Rarity Rarity
	Source Source
}

func (s *Session) Tier() Tier {
	if s.World {
		return TierWorld
	}
	return TierStandard
}

func (s *Session) Participant(id string) *Participant {
	for _, p := range s.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) Living() []*Participant {
	alive := make([]*Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		if p.Alive() {
			alive = append(alive, p)
		}
	}
	return alive
}

func (s *Session) TotalDamage() int {
	total := 0
	for _, p := range s.Participants {
		total += p.DamageDealt
	}
	return total
}

// ApplyBossDamage decrements boss health, clamped at zero, and reports
// whether the boss is now dead.
func (s *Session) ApplyBossDamage(dmg int) bool {
	s.Health -= dmg
	if s.Health < 0 {
		s.Health = 0
	}
	return s.Health == 0
}
