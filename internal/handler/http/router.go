package http

import (
	"log/slog"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/user"
	"github.com/cmlabs-hris/timeclock-sync/internal/handler/http/middleware"
	"github.com/cmlabs-hris/timeclock-sync/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

type RouterOptions struct {
	Logger         *slog.Logger
	AllowedOrigins []string
}

func NewRouter(JWTService jwt.Service, squareHandler SquareHandler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/api/v1/integrations/square", func(r chi.Router) {
		// Public: Square calls these directly.
		r.Get("/callback", squareHandler.Callback)
		r.Post("/webhook", squareHandler.Webhook)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))
			r.Use(middleware.RequireCompany)
			r.Use(middleware.RequireManager)

			r.With(middleware.RequirePermission(user.PermissionSquareView)).Get("/status", squareHandler.Status)
			r.With(middleware.RequirePermission(user.PermissionSquareView)).Get("/locations", squareHandler.ListLocations)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(user.PermissionSquareManage))
				r.Get("/connect", squareHandler.Connect)
				r.Delete("/", squareHandler.Disconnect)
				r.Put("/location", squareHandler.SelectLocation)
				r.Put("/sync-enabled", squareHandler.SetSyncEnabled)
			})

			r.With(middleware.RequirePermission(user.PermissionSquareSync)).Post("/sync", squareHandler.Sync)

			r.Route("/mappings", func(r chi.Router) {
				r.Use(middleware.RequirePermission(user.PermissionMappingManage))
				r.Get("/", squareHandler.ListMappings)
				r.Post("/suggest", squareHandler.SuggestMappings)
				r.Post("/{id}/confirm", squareHandler.ConfirmMapping)
				r.Post("/{id}/ignore", squareHandler.IgnoreMapping)
				r.Delete("/{id}", squareHandler.DeleteMapping)
			})
		})
	})

	return r
}
