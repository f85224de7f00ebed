package http

import (
	"net/http"
	"time"

	httpmw "github.com/Aklilu27/audiorooms/internal/transport/http/middleware"
	"github.com/Aklilu27/audiorooms/internal/transport/ws"
	"github.com/Aklilu27/audiorooms/pkg/auth"
	"github.com/Aklilu27/audiorooms/pkg/metrics"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(h *Handler, ah *AuthHandler, tokens *auth.JWT, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WS endpoint; authentication happens in the join event
	r.Get("/ws", wsServer.HandleWS)

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewareChi.Timeout(30 * time.Second))

		api.Get("/webrtc/config", h.WebRTCConfig)

		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", ah.Register)
			ar.Post("/login", ah.Login)
		})

		api.Route("/rooms", func(rm chi.Router) {
			rm.Get("/", h.ListRooms)
			rm.Get("/{id}", h.GetRoom)

			rm.Group(func(pr chi.Router) {
				pr.Use(httpmw.AuthMiddleware(tokens))
				pr.Post("/", h.CreateRoom)
				pr.Post("/{id}/join", h.JoinRoom)
				pr.Delete("/{id}", h.DeleteRoom)
			})
		})
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
