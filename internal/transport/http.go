package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/saharat-dev/coffee-shop-backend/internal/auth"
	"github.com/saharat-dev/coffee-shop-backend/internal/handler"
	"github.com/saharat-dev/coffee-shop-backend/internal/ratelimit"
)

// Deps bundles everything the router needs.
type Deps struct {
	Auth        *auth.Middleware
	AuthHandler *handler.AuthHandler
	Products    *handler.ProductHandler
	Orders      *handler.OrderHandler
	Stats       *handler.StatsHandler
	AuthLimiter ratelimit.Store
}

func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok","message":"Coffee Shop API is running"}`))
		})

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(rateLimit(deps.AuthLimiter))
				r.Post("/register", deps.AuthHandler.Register)
				r.Post("/login", deps.AuthHandler.Login)
			})
			r.With(deps.Auth.Require).Get("/profile", deps.AuthHandler.Profile)
		})

		r.Route("/products", func(r chi.Router) {
			r.With(deps.Auth.Optional).Get("/", deps.Products.List)
			r.Get("/{id}", deps.Products.GetByID)

			r.Group(func(r chi.Router) {
				r.Use(deps.Auth.Require, deps.Auth.RequireRole(auth.RoleAdmin))
				r.Post("/", deps.Products.Create)
				r.Put("/{id}", deps.Products.Update)
				r.Delete("/{id}", deps.Products.Delete)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			// Guest checkout rides on Optional: a missing or invalid token
			// just means no owner identity.
			r.With(deps.Auth.Optional).Post("/", deps.Orders.CreateOrder)
			r.With(deps.Auth.Require).Get("/my-orders", deps.Orders.GetMyOrders)

			r.Group(func(r chi.Router) {
				r.Use(deps.Auth.Require, deps.Auth.RequireRole(auth.RoleAdmin))
				r.Get("/", deps.Orders.GetAllOrders)
				r.Put("/{id}/status", deps.Orders.UpdateStatus)
			})
		})

		r.With(deps.Auth.Require, deps.Auth.RequireRole(auth.RoleAdmin)).
			Get("/stats/dashboard", deps.Stats.Dashboard)
	})

	return r
}
