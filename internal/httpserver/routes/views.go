package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/Terrance/Davendar/internal/httpserver/deps"
	"github.com/Terrance/Davendar/internal/httpserver/handlers"
)

func init() { Register(registerViews) }

func registerViews(r chi.Router, d deps.Deps) {
	r.Get("/{year:[0-9]{4}}/{month:[0-9]{1,2}}", handlers.Month(d))
	r.Get("/{year:[0-9]{4}}/{month:[0-9]{1,2}}/{day:[0-9]{1,2}}", handlers.Day(d))
}
