package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"raidsrv/internal/hub"
	"raidsrv/internal/player"
	"raidsrv/internal/session"
	"raidsrv/internal/spawn"
	"raidsrv/pkg/types"
)

// Handler attaches a chat-surface watcher to a channel's session: snapshots
// stream out, player commands come in. Render failures never touch combat
// state; a dead socket just gets dropped.
func Handler(h *hub.Hub, players player.Store, tracker *spawn.Tracker, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			http.Error(w, "missing channel", http.StatusBadRequest)
			return
		}
		runner := h.Get(channel)
		if runner == nil {
			http.Error(w, "no session for channel", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Snapshot, 8)
		watcherID := uuid.NewString()

		if !runner.AddWatcher(watcherID, out) {
			// Raced the end of the encounter: hand over the final state and
			// close cleanly instead of leaving a connection to a dead session.
			final := runner.Render()
			msg, _ := json.Marshal(types.ServerMessage{Type: "StateSnapshot", Version: final.Version, State: &final.View})
			_ = conn.Write(r.Context(), websocket.MessageText, msg)
			conn.Close(websocket.StatusNormalClosure, "session resolved")
			return
		}
		defer runner.RemoveWatcher(watcherID)

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				msg := types.ServerMessage{Type: "StateSnapshot", Version: snap.Version, State: &snap.View}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
					log.Debug("snapshot write failed", zap.String("channel", channel), zap.Error(err))
				}
				cancel()
			}
			// The outbox only closes when the session resolves (or this
			// watcher fell too far behind). Either way the stream is over;
			// end the connection so the client sees finality, which also
			// unblocks the reader below.
			conn.Close(websocket.StatusNormalClosure, "session resolved")
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil || cm.ActorID == "" {
				_ = conn.Write(r.Context(), websocket.MessageText,
					[]byte(`{"type":"Error","error":"bad message"}`))
				continue
			}

			tracker.RecordCommand(channel)
			var res session.Result
			switch cm.Type {
			case "Join":
				snap, err := players.CombatSnapshot(r.Context(), cm.ActorID)
				if err != nil {
					_ = conn.Write(r.Context(), websocket.MessageText,
						[]byte(`{"type":"Error","error":"unknown actor"}`))
					continue
				}
				res = runner.Join(snap)
			case "VoteStart":
				operator := false
				if snap, err := players.CombatSnapshot(r.Context(), cm.ActorID); err == nil {
					operator = snap.Operator
				}
				res = runner.Vote(cm.ActorID, operator)
			case "Attack":
				res = runner.Attack(cm.ActorID)
			case "Leave":
				res = runner.Leave(cm.ActorID)
			default:
				_ = conn.Write(r.Context(), websocket.MessageText, []byte(`{"type":"Error","error":"unknown type"}`))
				continue
			}

			if res.Err != nil {
				msg, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: res.Err.Error()})
				_ = conn.Write(r.Context(), websocket.MessageText, msg)
			}
			// Successful commands show up as broadcast snapshots; no direct ack.
		}
	}
}
