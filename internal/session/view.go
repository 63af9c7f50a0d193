package session

import (
	"fmt"

	"raidsrv/internal/reward"
	"raidsrv/pkg/types"
)

func (r *Runner) appendLog(format string, args ...any) {
	r.combat = append(r.combat, fmt.Sprintf(format, args...))
	if len(r.combat) > logCap {
		r.combat = r.combat[len(r.combat)-logCap:]
	}
}

func (r *Runner) snapshot() Snapshot {
	s := r.sess
	view := types.SessionView{
		Channel:   s.Channel,
		BossName:  s.BossName,
		Level:     s.Level,
		Element:   string(s.Element),
		Health:    s.Health,
		MaxHealth: s.MaxHealth,
		Attack:    s.Attack,
		Defense:   s.Defense,
		Phase:     string(s.Phase),
		Rarity:    string(s.Rarity),
		World:     s.World,
		Votes:     len(r.votes),
		Capacity:  s.Tier().Capacity(),
		Outcome:   string(r.outcome),
	}
	view.Participants = make([]types.ParticipantView, 0, len(s.Participants))
	for _, p := range s.Participants {
		view.Participants = append(view.Participants, types.ParticipantView{
			ID:          p.ID,
			Name:        p.Name,
			Health:      p.Health,
			MaxHealth:   p.MaxHealth,
			Attack:      p.Attack,
			Defense:     p.Defense,
			Element:     string(p.Element),
			DamageDealt: p.DamageDealt,
		})
	}
	view.Log = append([]string(nil), r.combat...)
	for _, rec := range r.rewards {
		view.Rewards = append(view.Rewards, types.RewardView{
			ParticipantID: rec.ParticipantID,
			DamageShare:   rec.DamageShare,
			Gold:          rec.Gold,
			XP:            rec.XP,
			Crystals:      rec.Crystals,
			Bonus:         string(rec.Bonus),
			UnlockWon:     rec.UnlockWon,
		})
	}
	return Snapshot{Version: r.version, View: view}
}

func (r *Runner) view() View {
	sess := *r.sess
	sess.Participants = nil
	for _, p := range r.sess.Participants {
		cp := *p
		sess.Participants = append(sess.Participants, &cp)
	}
	return View{
		Version:     r.version,
		NumWatchers: len(r.watchers),
		Gen:         r.gen,
		Phase:       r.sess.Phase,
		Outcome:     r.outcome,
		Session:     sess,
		Rewards:     append([]reward.Record(nil), r.rewards...),
	}
}
