package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/talevoice/backend/internal/api/handlers"
	"github.com/talevoice/backend/internal/queue"
	"github.com/talevoice/backend/internal/track"
)

// Router is the thin operational surface over the dispatcher and
// tracker: submit, poll, cancel.
type Router struct {
	mux        *chi.Mux
	redis      *redis.Client
	dispatcher *queue.Dispatcher
	tracker    *track.Store
}

func NewRouter(rdb *redis.Client, dispatcher *queue.Dispatcher, tracker *track.Store) *Router {
	return &Router{
		mux:        chi.NewRouter(),
		redis:      rdb,
		dispatcher: dispatcher,
		tracker:    tracker,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	health := handlers.NewHealthHandler(rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	jobs := handlers.NewJobsHandler(rt.dispatcher, rt.tracker)
	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", jobs.Submit)
		r.Get("/{id}", jobs.Get)
		r.Delete("/{id}", jobs.Remove)
	})

	return r
}
