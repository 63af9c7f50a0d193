// Package hub owns the live session runners, one per channel. It is the
// in-process side of the "one session per channel" invariant; the store row
// is the durable side.
package hub

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"raidsrv/internal/player"
	"raidsrv/internal/raid"
	"raidsrv/internal/session"
	"raidsrv/internal/store"
)

type HubMsg interface{ isHubMsg() }

type CreateSession struct {
	Sess  *raid.Session
	Reply chan CreateReply
}

type CreateReply struct {
	Runner *session.Runner
	Err    error
}

type GetSession struct {
	Channel string
	Reply   chan *session.Runner
}

type RemoveSession struct{ Channel string }

type ShutdownHub struct{}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	inbox    chan HubMsg
	runners  map[string]*session.Runner
	sessions store.Sessions
	players  player.Store
	log      *zap.Logger
	cfg      session.Config

	// OnResolved is forwarded to every runner, on top of the hub's own
	// removal. The spawn tracker hangs off this.
	OnResolved func(channel string, outcome raid.Outcome)

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, sessions store.Sessions, players player.Store, log *zap.Logger, cfg session.Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		runners:  make(map[string]*session.Runner),
		sessions: sessions,
		players:  players,
		log:      log.Named("hub"),
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				if h.runners[msg.Sess.Channel] != nil {
					msg.Reply <- CreateReply{Err: raid.ErrSessionExists}
					break
				}
				ch := msg.Sess.Channel
				rng := rand.New(rand.NewSource(time.Now().UnixNano()))
				r := session.New(h.ctx, msg.Sess, h.sessions, h.players, h.log, rng, h.cfg, session.Hooks{
					OnResolved: func(channel string, outcome raid.Outcome) {
						h.inbox <- RemoveSession{Channel: channel}
						if h.OnResolved != nil {
							h.OnResolved(channel, outcome)
						}
					},
				})
				h.runners[ch] = r
				msg.Reply <- CreateReply{Runner: r}

			case GetSession:
				msg.Reply <- h.runners[msg.Channel] // May be nil

			case RemoveSession:
				if r := h.runners[msg.Channel]; r != nil {
					r.Stop()
					delete(h.runners, msg.Channel)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for ch, r := range h.runners {
		r.Stop()
		delete(h.runners, ch)
	}
	h.cancel()
}

// Get is a convenience wrapper for callers outside the actor world.
func (h *Hub) Get(channel string) *session.Runner {
	reply := make(chan *session.Runner, 1)
	h.inbox <- GetSession{Channel: channel, Reply: reply}
	return <-reply
}

// Create builds a runner for the session, or fails if the channel already
// has one.
func (h *Hub) Create(sess *raid.Session) (*session.Runner, error) {
	reply := make(chan CreateReply, 1)
	h.inbox <- CreateSession{Sess: sess, Reply: reply}
	res := <-reply
	return res.Runner, res.Err
}

// HasSession and CreateSession satisfy the spawn scheduler's view of the hub.
func (h *Hub) HasSession(channel string) bool { return h.Get(channel) != nil }

func (h *Hub) CreateSession(sess *raid.Session) error {
	_, err := h.Create(sess)
	return err
}
