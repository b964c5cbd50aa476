package router

import (
	"net/http"

	"agora/internal/database"
	"agora/internal/events"
	"agora/internal/handlers/web"
	"agora/internal/middleware"
	"agora/internal/response"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Deps carries everything the router wires together.
type Deps struct {
	Badges    *web.BadgeHandler
	Instances *web.InstanceHandler
	Activity  *web.ActivityHandler
	Sessions  *web.SessionHandler
	Auth      *middleware.Authenticator
	DB        *database.Manager
	Bus       *events.Bus
	Logger    *zap.Logger
}

// New builds the chi router with the full middleware stack.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(d.Logger))
	r.Use(middleware.Recovery(d.Logger))
	r.Use(d.Auth.Authenticate)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := d.DB.Health(req.Context()); err != nil {
			response.Error(w, d.Logger, err)
			return
		}
		response.JSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"events": d.Bus.Stats(),
		})
	})

	r.Post("/register", d.Sessions.Register)
	r.Post("/login", d.Sessions.Login)

	r.Route("/badges", func(r chi.Router) {
		r.Get("/", d.Badges.List)
		r.Get("/find", d.Badges.Find)
		r.Get("/{id}", d.Badges.Get)
		r.Get("/{id}/targets", d.Badges.Targets)
		r.Get("/{id}/path", d.Badges.KeyPath)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/", d.Badges.Create)
			r.Put("/{id}", d.Badges.Update)
			r.Delete("/{id}", d.Badges.Delete)
			r.Post("/{id}/assign", d.Badges.Assign)
			r.Post("/{id}/remove", d.Badges.Remove)
		})
	})

	r.With(middleware.RequireAuth).Post("/instances", d.Instances.Create)

	r.Route("/i/{key}", func(r chi.Router) {
		r.Get("/", d.Instances.Get)
		r.Get("/badges", d.Instances.Badges)
		r.Get("/settings", d.Instances.SettingsPages)
		r.Get("/settings/{page}", d.Instances.SettingsPage)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Delete("/", d.Instances.Delete)
			r.Post("/join", d.Instances.Join)
			r.Post("/leave", d.Instances.Leave)
			r.Post("/settings/presets", d.Instances.ApplyPresets)
			r.Post("/settings/badges", d.Instances.UpdateBadges)
			r.Post("/settings/{page}", d.Instances.UpdateSettingsPage)
		})
	})

	r.Get("/activity", d.Activity.Feed)
	r.Get("/activity.rss", d.Activity.RSS)
	r.Get("/activity/live", d.Activity.Live)

	return r
}
