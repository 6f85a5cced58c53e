package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/studyhall-app/studyhall/internal/api/middleware"
	"github.com/studyhall-app/studyhall/internal/handlers"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, wsh *handlers.WSHandler, auth *middleware.AuthMiddleware, limiter *middleware.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(11 << 20)) // media uploads included
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting for the pre-auth surface (register/login)
	r.Use(limiter.Middleware)

	// CORS - the web and mobile clients call from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	// Authenticated routes. The per-user limiter runs after auth so its keys
	// come from the profile, not the IP.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Use(limiter.Authenticated)

		r.Get("/me", h.Me)
		r.Put("/me/hand", h.SetHand)

		r.Get("/classroom/state", h.ClassroomState)
		r.Get("/classroom/messages", h.GetClassMessages)
		r.Post("/classroom/messages", h.PostClassMessage)
		r.Patch("/classroom/messages/{id}", h.EditClassMessage)
		r.Delete("/classroom/messages/{id}", h.DeleteClassMessage)

		r.Get("/dm/{userID}", h.GetDirectMessages)
		r.Post("/dm/{userID}", h.PostDirectMessage)
		r.Post("/dm/{userID}/read", h.MarkDirectRead)

		r.Post("/groups", h.EnsureGroup)
		r.Get("/groups", h.ListGroups)
		r.Get("/groups/{id}/messages", h.GetGroupMessages)
		r.Post("/groups/{id}/messages", h.PostGroupMessage)

		r.Get("/lessons", h.ListLessons)
		r.Get("/find", h.Find)
		r.Post("/media", h.UploadMedia)
		r.Get("/ws", wsh.Connect)

		// Staff-only operations
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireStaff)

			r.Post("/lessons", h.CreateLesson)
			r.Post("/lessons/{id}/start", h.StartLesson)
			r.Post("/lessons/{id}/end", h.EndLesson)
			r.Delete("/lessons/{id}", h.DeleteLesson)

			r.Get("/classroom/lock", h.GetChatLock)
			r.Put("/classroom/lock", h.SetChatLock)
			r.Put("/profiles/{id}/unlock", h.SetStudentUnlock)
			r.Get("/profiles/hands", h.RaisedHands)

			r.Get("/dm/oversight/{userA}/{userB}", h.GetConversation)
		})
	})

	return r
}
