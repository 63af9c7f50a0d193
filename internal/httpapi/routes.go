package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"raidsrv/internal/ws"
)

func SetupRoutes(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Post("/raids", s.SpawnSession)
	r.Get("/raids/{channel}", s.GetSession)
	r.Post("/raids/{channel}/join", s.Join)
	r.Post("/raids/{channel}/vote", s.VoteStart)
	r.Post("/raids/{channel}/attack", s.Attack)
	r.Post("/raids/{channel}/leave", s.Leave)
	r.Post("/raids/{channel}/special", s.SpecialSpawn)
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(s.Hub, s.Players, s.Tracker, s.Log))
	return r
}
