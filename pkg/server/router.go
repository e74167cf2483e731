package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sami-chanane/thesis-pizza-app/cmd/pizzad/config"
	"github.com/sami-chanane/thesis-pizza-app/pkg/artifact"
	"github.com/sami-chanane/thesis-pizza-app/pkg/server/session"
	"github.com/sami-chanane/thesis-pizza-app/pkg/server/streaming"
	"github.com/sami-chanane/thesis-pizza-app/pkg/store"
)

// SettingsSource reads the pipeline settings of a commit without a checkout
type SettingsSource interface {
	FileAt(sha string, path string) ([]byte, error)
}

func SetupRouter(
	config *config.Config,
	store *store.Store,
	artifacts *artifact.Store,
	gitSource SettingsSource,
	clientHub *streaming.ClientHub,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(middleware.WithValue("config", config))
	r.Use(middleware.WithValue("store", store))
	r.Use(middleware.WithValue("artifacts", artifacts))
	r.Use(middleware.WithValue("gitSource", gitSource))
	r.Use(middleware.WithValue("clientHub", clientHub))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(session.SetUser())
		r.Use(session.MustUser())
		r.Post("/api/trigger", trigger)
		r.Get("/api/runs", getRuns)
		r.Get("/api/run/{id}", getRun)
		r.Get("/api/run/{id}/artifacts", getRunArtifacts)
		r.Get("/api/run/{id}/artifact/*", downloadRunArtifact)
		r.Post("/api/rollback", rollback)
		r.Get("/api/status", getStatus)

		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			streaming.ServeWs(clientHub, w, r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(session.SetUser())
		r.Use(session.MustAdmin())
		r.Get("/api/user/{login}", getUser)
		r.Post("/api/user", saveUser)
		r.Delete("/api/user/{login}", deleteUser)
		r.Get("/api/users", getUsers)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}
