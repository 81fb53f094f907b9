package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dosada05/pong-tournaments/handlers"
	"github.com/Dosada05/pong-tournaments/middleware"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

func SetupRoutes(
	router *chi.Mux,
	opts Options,
	tournamentHandler *handlers.TournamentHandler,
	gameHandler *handlers.GameHandler,
	webSocketHandler *handlers.WebSocketHandler,
	matchHandler *handlers.MatchHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Use(chiMiddleware.Timeout(15 * time.Second))
		r.Use(authenticate)

		r.Route("/tournaments", func(r chi.Router) {
			r.Post("/", tournamentHandler.CreateHandler)
			r.Get("/", tournamentHandler.ListHandler)
			r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)
			r.Post("/{tournamentID}/start", tournamentHandler.StartHandler)
		})

		r.Route("/games", func(r chi.Router) {
			r.Post("/", gameHandler.CreateHandler)
			r.Get("/", gameHandler.ListHandler)
		})

		// История матчей есть только при подключённой базе
		if matchHandler != nil {
			r.Get("/players/{playerID}/results", matchHandler.ListPlayerResultsHandler)
		}
	})

	// Браузерный WebSocket не умеет слать заголовки, токен приходит в ?token=
	router.Route("/ws", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/games/{gameID}", webSocketHandler.ServeGameWs)
		r.Get("/tournaments/{tournamentID}", webSocketHandler.ServeTournamentWs)
	})
}
