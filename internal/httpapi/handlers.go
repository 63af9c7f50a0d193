package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"raidsrv/internal/hub"
	"raidsrv/internal/player"
	"raidsrv/internal/raid"
	"raidsrv/internal/session"
	"raidsrv/internal/spawn"
	"raidsrv/pkg/types"
)

type Server struct {
	Hub       *hub.Hub
	Players   player.Store
	Tracker   *spawn.Tracker
	Scheduler *spawn.Scheduler
	Log       *zap.Logger
}

type spawnRequest struct {
	Channel string `json:"channel"`
	ActorID string `json:"actor_id"`
	Boss    string `json:"boss,omitempty"`
	Level   int    `json:"level,omitempty"`
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
}

// SpawnSession creates a standard-tier lobby on a channel, either for a
// named boss or a random common one.
func (s *Server) SpawnSession(w http.ResponseWriter, r *http.Request) {
	var req spawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Channel == "" {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}

	source := raid.SourcePlayer
	if req.ActorID != "" {
		snap, err := s.Players.CombatSnapshot(r.Context(), req.ActorID)
		if err == nil && snap.Operator {
			source = raid.SourceOperator
		}
	}

	var boss raid.BossDef
	if req.Boss != "" {
		def, ok := raid.FindBoss(req.Boss)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown boss")
			return
		}
		boss = def
	} else {
		bucket := raid.Bucket(raid.RarityCommon)
		boss = bucket[0]
	}
	level := req.Level
	if level < boss.MinLevel || level > boss.MaxLevel {
		level = boss.MinLevel
	}
	hp, atk, def := boss.StatsAt(level)

	sess := &raid.Session{
		Channel:   req.Channel,
		Level:     level,
		BossName:  boss.Name,
		Element:   boss.Element,
		Health:    hp,
		MaxHealth: hp,
		Attack:    atk,
		Defense:   def,
		Phase:     raid.PhaseLobby,
		Rarity:    boss.Rarity,
		Source:    source,
	}
	runner, err := s.Hub.Create(sess)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.Tracker.RecordCommand(req.Channel)
	writeSnapshot(w, http.StatusCreated, runner.Render())
}

func (s *Server) Join(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	runner, actorID, ok := s.command(w, r, channel)
	if !ok {
		return
	}
	snap, err := s.Players.CombatSnapshot(r.Context(), actorID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown actor")
		return
	}
	writeResult(w, runner.Join(snap))
}

func (s *Server) VoteStart(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	runner, actorID, ok := s.command(w, r, channel)
	if !ok {
		return
	}
	operator := false
	if snap, err := s.Players.CombatSnapshot(r.Context(), actorID); err == nil {
		operator = snap.Operator
	}
	writeResult(w, runner.Vote(actorID, operator))
}

func (s *Server) Attack(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	runner, actorID, ok := s.command(w, r, channel)
	if !ok {
		return
	}
	writeResult(w, runner.Attack(actorID))
}

func (s *Server) Leave(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	runner, actorID, ok := s.command(w, r, channel)
	if !ok {
		return
	}
	writeResult(w, runner.Leave(actorID))
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	runner := s.Hub.Get(channel)
	if runner == nil {
		writeError(w, http.StatusNotFound, raid.ErrSessionNotFound.Error())
		return
	}
	writeSnapshot(w, http.StatusOK, runner.Render())
}

type specialSpawnRequest struct {
	Reason string `json:"reason"`
}

// SpecialSpawn lets other game systems request an event-triggered spawn
// (win streaks, activity milestones).
func (s *Server) SpecialSpawn(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	var req specialSpawnRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	spawned := s.Scheduler.TriggerSpecialSpawn(channel, req.Reason)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Spawned bool `json:"spawned"`
	}{Spawned: spawned})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// command does the boilerplate shared by every per-session action: decode
// the actor, find the runner, and record activity for the spawn tracker.
func (s *Server) command(w http.ResponseWriter, r *http.Request, channel string) (*session.Runner, string, bool) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ActorID == "" {
		writeError(w, http.StatusBadRequest, "missing actor_id")
		return nil, "", false
	}
	runner := s.Hub.Get(channel)
	if runner == nil {
		writeError(w, http.StatusNotFound, raid.ErrSessionNotFound.Error())
		return nil, "", false
	}
	s.Tracker.RecordCommand(channel)
	return runner, req.ActorID, true
}

func writeResult(w http.ResponseWriter, res session.Result) {
	if res.Err != nil {
		writeError(w, statusFor(res.Err), res.Err.Error())
		return
	}
	writeSnapshot(w, http.StatusOK, res.Snapshot)
}

func writeSnapshot(w http.ResponseWriter, status int, snap session.Snapshot) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ServerMessage{
		Type:    "StateSnapshot",
		Version: snap.Version,
		State:   &snap.View,
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ServerMessage{Type: "Error", Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, raid.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, raid.ErrSessionFull),
		errors.Is(err, raid.ErrAlreadyJoined),
		errors.Is(err, raid.ErrAlreadyVoted),
		errors.Is(err, raid.ErrSessionExists):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}
