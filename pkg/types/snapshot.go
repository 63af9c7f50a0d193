package types

// SessionView is the render-state snapshot handed to the presentation layer.
// Combat math never reads it back; it exists so the chat surface can redraw.
type SessionView struct {
	Channel   string `json:"channel"`
	BossName  string `json:"boss_name"`
	Level     int    `json:"level"`
	Element   string `json:"element"`
	Health    int    `json:"health"`
	MaxHealth int    `json:"max_health"`
	Attack    int    `json:"attack"`
	Defense   int    `json:"defense"`
	Phase     string `json:"phase"`
	Rarity    string `json:"rarity"`
	World     bool   `json:"world"`
	Votes     int    `json:"votes"`
	Capacity  int    `json:"capacity"`

	Participants []ParticipantView `json:"participants"`
	Log          []string          `json:"log,omitempty"`

	// Set once the session resolves.
	Outcome string       `json:"outcome,omitempty"`
	Rewards []RewardView `json:"rewards,omitempty"`
}

type ParticipantView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Health      int    `json:"health"`
	MaxHealth   int    `json:"max_health"`
	Attack      int    `json:"attack"`
	Defense     int    `json:"defense"`
	Element     string `json:"element"`
	DamageDealt int    `json:"damage_dealt"`
}

type RewardView struct {
	ParticipantID string  `json:"participant_id"`
	DamageShare   float64 `json:"damage_share"`
	Gold          int     `json:"gold"`
	XP            int     `json:"xp"`
	Crystals      int     `json:"crystals,omitempty"`
	Bonus         string  `json:"bonus,omitempty"`
	UnlockWon     bool    `json:"unlock_won,omitempty"`
}
