package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitorbmulford/bsf-api/api/controllers"
	"github.com/vitorbmulford/bsf-api/api/middleware"
	cartsvc "github.com/vitorbmulford/bsf-api/internal/cart"
	"github.com/vitorbmulford/bsf-api/internal/catalog"
	userssvc "github.com/vitorbmulford/bsf-api/internal/users"
	"github.com/vitorbmulford/bsf-api/pkg/config"
	"github.com/vitorbmulford/bsf-api/pkg/db"
	"github.com/vitorbmulford/bsf-api/pkg/logger"
	"github.com/vitorbmulford/bsf-api/pkg/metrics"
	"github.com/vitorbmulford/bsf-api/pkg/redis"
)

// NewRouter assembles the public HTTP surface.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	httpMetrics *metrics.HTTPMetrics,
	promRegistry *prometheus.Registry,
	usersService userssvc.Service,
	catalogService catalog.Service,
	cartService cartsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
		middleware.Metrics(httpMetrics),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	// interface conversion of a nil *Client would dodge the nil checks
	// in the probes and the rate limiter
	var dbProbe, redisProbe interface{ Ping(context.Context) error }
	var rateStore interface {
		FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error)
	}
	if dbClient != nil {
		dbProbe = dbClient
	}
	if redisClient != nil {
		redisProbe = redisClient
		rateStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbProbe, redisProbe))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	if cfg.Uploads.Dir != "" && cfg.Uploads.PublicBase != "" {
		fileServer := http.StripPrefix(cfg.Uploads.PublicBase+"/", http.FileServer(http.Dir(cfg.Uploads.Dir)))
		r.Get(cfg.Uploads.PublicBase+"/*", fileServer.ServeHTTP)
	}

	r.Route("/usuarios", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, rateStore, logg)).
			Post("/", controllers.UserRegister(usersService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, rateStore, logg)).
			Post("/login", controllers.UserLogin(usersService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.With(middleware.RequireAdmin(logg)).
				Get("/", controllers.UserList(usersService, logg))
			r.With(middleware.RequireAdmin(logg)).
				Get("/por-email", controllers.UserFetchByEmail(usersService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSelfOrAdmin("id", logg))
				r.Get("/{id}", controllers.UserFetch(usersService, logg))
				r.Put("/{id}", controllers.UserUpdate(usersService, logg))
				r.Patch("/{id}/senha", controllers.UserChangePassword(usersService, logg))
				r.Put("/{id}/avatar", controllers.UserAvatarUpload(usersService, cfg.Uploads.MaxUploadMB, logg))
				r.Delete("/{id}", controllers.UserDelete(usersService, logg))
			})
		})
	})

	r.Route("/produtos", func(r chi.Router) {
		r.Get("/", controllers.ProductList(catalogService, logg))
		r.Get("/{id}", controllers.ProductFetch(catalogService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg), middleware.RequireAdmin(logg))
			r.Post("/", controllers.ProductCreate(catalogService, logg))
			r.Patch("/{id}", controllers.ProductUpdate(catalogService, logg))
			r.Delete("/{id}", controllers.ProductDelete(catalogService, logg))
			r.Put("/{id}/imagem", controllers.ProductImageUpload(catalogService, cfg.Uploads.MaxUploadMB, logg))
		})
	})

	r.Route("/carrinho", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/", controllers.CartFetch(cartService, logg))
		r.Delete("/", controllers.CartClear(cartService, logg))
		r.Post("/itens", controllers.CartAddItem(cartService, logg))
		r.Patch("/itens/{itemId}", controllers.CartUpdateItem(cartService, logg))
		r.Delete("/itens/{itemId}", controllers.CartRemoveItem(cartService, logg))
	})

	return r
}
