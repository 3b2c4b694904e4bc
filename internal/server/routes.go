package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, deps Deps) {
	auth := requireCaller(deps.Identity)

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("WheelRoom API", "/openapi.json", "/docs"))

	r.Post("/api/session", handleSession(deps.Identity))

	r.Route("/api/rooms", func(r chi.Router) {
		r.Get("/", handleListRooms(deps.Rooms))
		r.Get("/code/{code}", handleGetRoomByCode(deps.Rooms))
		r.With(auth).Post("/", handleCreateRoom(deps.Rooms))
		r.With(auth).Post("/join", handleJoinRoom(deps.Rooms, deps.Chat, deps.Publisher))

		r.Route("/{roomID}", func(r chi.Router) {
			r.Get("/", handleGetRoom(deps.Rooms))
			r.Get("/participants/online", handleOnlineParticipants(deps.Rooms))
			r.Get("/wheel", handleRoomWheel(deps.Wheels))
			r.Get("/spins", handleListSpins(deps.History))
			r.Get("/spins/latest", handleLatestSpin(deps.History))
			r.Get("/statistics", handleStatistics(deps.Rooms, deps.History))
			r.Get("/messages", handleListMessages(deps.Chat))

			// Streams read ?token= themselves.
			r.Get("/events", handleEvents(deps))
			r.Get("/ws", handleRoomSocket(deps))

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Patch("/", handleUpdateRoom(deps.Rooms, deps.Publisher))
				r.Post("/leave", handleLeaveRoom(deps.Rooms, deps.Chat, deps.Publisher))
				r.Post("/close", handleCloseRoom(deps.Rooms, deps.Publisher))
				r.Post("/status", handleUpdateStatus(deps.Rooms, deps.Publisher))
				r.Put("/participants/{userID}/role", handleUpdateRole(deps.Rooms, deps.Publisher))
				r.With(rateLimited(deps.SpinLimiter)).Post("/spin", handleSpin(deps.Spins, deps.Wheels))
				r.Delete("/spins", handleClearSpins(deps.Rooms, deps.History, deps.Publisher))
				r.Post("/messages", handleSendMessage(deps.Chat, deps.Publisher))
				r.Delete("/messages", handleClearMessages(deps.Rooms, deps.Chat))
				r.Post("/emoji", handleEmoji(deps.Chat, deps.Publisher))
			})
		})
	})

	r.Route("/api/wheels", func(r chi.Router) {
		r.Get("/{wheelID}", handleGetWheel(deps.Wheels))

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/", handleCreateWheel(deps.Wheels, deps.Publisher))
			r.Patch("/{wheelID}", handleUpdateWheel(deps.Wheels, deps.Publisher))
			r.Delete("/{wheelID}", handleDeleteWheel(deps.Wheels, deps.Publisher))
		})
	})
}
