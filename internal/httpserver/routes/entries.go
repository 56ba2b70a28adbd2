package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/Terrance/Davendar/internal/httpserver/deps"
	"github.com/Terrance/Davendar/internal/httpserver/handlers"
)

func init() { Register(registerEntries) }

func registerEntries(r chi.Router, d deps.Deps) {
	r.Route("/api/calendars", func(r chi.Router) {
		r.Get("/", handlers.Calendars(d))
		r.Route("/{calendar}", func(r chi.Router) {
			r.Post("/entries", handlers.CreateEntry(d))
			r.Get("/entries/{key}", handlers.GetEntry(d))
			r.Delete("/entries/{key}", handlers.DeleteEntry(d))
			r.Post("/entries/{key}/move", handlers.MoveEntry(d))
		})
	})
}
