package main

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/HammerMeetNail/friendhub/internal/config"
	"github.com/HammerMeetNail/friendhub/internal/handlers"
	"github.com/HammerMeetNail/friendhub/internal/logging"
	"github.com/HammerMeetNail/friendhub/internal/middleware"
)

// app holds everything routes needs to build the HTTP handler.
type app struct {
	cfg    *config.Config
	logger *logging.Logger

	health    *handlers.HealthHandler
	auth      *handlers.AuthHandler
	friends   *handlers.FriendHandler
	maps      *handlers.MapSessionHandler
	locations *handlers.LocationHandler
	messages  *handlers.MessageHandler
	places    *handlers.PlacesHandler
	live      *handlers.LiveHandler

	sessions  middleware.SessionValidator
	limiter   *middleware.RateLimiter
	clientIPs *middleware.ClientIPResolver
}

func (a *app) routes() http.Handler {
	authMiddleware := middleware.NewAuthMiddleware(a.sessions)
	csrfMiddleware := middleware.NewCSRFMiddleware(a.cfg.Server.Secure)
	securityHeaders := middleware.NewSecurityHeaders(a.cfg.Server.Secure)
	requestLogger := middleware.NewRequestLogger(a.logger, a.clientIPs)
	metrics := middleware.NewMetrics()
	requireAuth := authMiddleware.RequireAuth
	limited := func(h http.HandlerFunc) http.Handler {
		if a.limiter == nil {
			return h
		}
		return a.limiter.Middleware(h)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.health.Health)
	mux.HandleFunc("GET /ready", a.health.Ready)
	mux.HandleFunc("GET /live", a.health.Live)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/csrf", csrfMiddleware.GetToken)

	mux.Handle("POST /api/auth/register", limited(a.auth.Register))
	mux.Handle("POST /api/auth/login", limited(a.auth.Login))
	mux.HandleFunc("POST /api/auth/logout", a.auth.Logout)
	mux.HandleFunc("GET /api/auth/me", a.auth.Me)

	// Reads answer anonymous callers with empty results, so only writes
	// are behind requireAuth.
	mux.HandleFunc("GET /api/users/explore", a.friends.Explore)
	mux.HandleFunc("GET /api/friends", a.friends.Friends)
	mux.HandleFunc("GET /api/friends/requests", a.friends.Requests)
	mux.HandleFunc("GET /api/friends/requests/sent", a.friends.Sent)
	mux.Handle("POST /api/friends/requests", requireAuth(http.HandlerFunc(a.friends.SendRequest)))
	mux.Handle("PUT /api/friends/requests/{id}/accept", requireAuth(http.HandlerFunc(a.friends.AcceptRequest)))
	mux.Handle("PUT /api/friends/requests/{id}/reject", requireAuth(http.HandlerFunc(a.friends.RejectRequest)))

	// Anonymous location writes are a silent no-op.
	mux.HandleFunc("GET /api/friends/locations", a.locations.FriendLocations)
	mux.HandleFunc("PUT /api/users/me/location", a.locations.UpdateMine)

	mux.HandleFunc("GET /api/messages/{userId}", a.messages.Conversation)
	mux.Handle("POST /api/messages", requireAuth(http.HandlerFunc(a.messages.Send)))

	mux.Handle("POST /api/map-sessions", requireAuth(http.HandlerFunc(a.maps.Create)))
	mux.HandleFunc("GET /api/map-sessions", a.maps.List)
	mux.HandleFunc("GET /api/map-sessions/{id}", a.maps.Get)
	mux.Handle("POST /api/map-sessions/{id}/join", requireAuth(http.HandlerFunc(a.maps.Join)))
	mux.Handle("PUT /api/map-sessions/{id}/participants/{participantId}/approve", requireAuth(http.HandlerFunc(a.maps.Approve)))
	mux.HandleFunc("PUT /api/map-sessions/{id}/location", a.maps.UpdateLocation)
	mux.Handle("POST /api/map-sessions/{id}/markers", requireAuth(http.HandlerFunc(a.maps.AddMarker)))
	mux.HandleFunc("GET /api/map-sessions/{id}/live", a.live.Session)

	mux.HandleFunc("GET /api/places/search", a.places.Search)
	mux.HandleFunc("GET /api/places/nearby", a.places.Nearby)

	// Outermost last. Metrics wraps the mux directly so it sees the
	// matched route pattern.
	var handler http.Handler = mux
	handler = metrics.Apply(handler)
	handler = authMiddleware.Authenticate(handler)
	handler = csrfMiddleware.Protect(handler)
	handler = securityHeaders.Apply(handler)
	handler = newCORS(a.cfg.CORS).Handler(handler)
	handler = requestLogger.Apply(handler)
	return handler
}

func newCORS(cfg config.CORSConfig) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-CSRF-Token", "X-Poll-Interval-Ms", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
