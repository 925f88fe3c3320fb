package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dosada05/tournaments/handlers"
	"github.com/Dosada05/tournaments/middleware"
)

type Handlers struct {
	Tournament *handlers.TournamentHandler
	Fixture    *handlers.FixtureHandler
}

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	// Gatherer serves /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
}

func SetupRoutes(h Handlers, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret)

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/podiums", h.Tournament.PodiumsHandler)

	r.Route("/tournaments", func(r chi.Router) {
		r.With(middleware.OptionalAuthenticate(opts.JWTSecret)).Get("/", h.Tournament.ListHandler)
		r.Post("/validate", h.Tournament.ValidateHandler)
		r.Get("/{tournamentID}", h.Tournament.GetByIDHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", h.Tournament.CreateHandler)
			r.Patch("/{tournamentID}", h.Tournament.UpdateHandler)
			r.Delete("/{tournamentID}", h.Tournament.DeleteHandler)
			r.Post("/{tournamentID}/clone", h.Tournament.CloneHandler)
			r.Post("/{tournamentID}/publish", h.Tournament.PublishHandler)
			r.Post("/{tournamentID}/unpublish", h.Tournament.UnpublishHandler)
			r.Post("/{tournamentID}/join", h.Tournament.JoinHandler)
			r.Post("/{tournamentID}/withdraw", h.Tournament.WithdrawHandler)
			r.Put("/{tournamentID}/participants", h.Tournament.SetParticipantsHandler)
			r.Post("/{tournamentID}/start", h.Tournament.StartHandler)

			r.Post("/{tournamentID}/fixtures/{fixtureID}/score", h.Fixture.SubmitScoreHandler)
			r.Post("/{tournamentID}/fixtures/{fixtureID}/confirm", h.Fixture.ConfirmHandler)
		})
	})

	return r
}
