package router

import (
	"net/http"

	"turnos-gateway/internal/adapters/backend"
	mem "turnos-gateway/internal/adapters/storage/memory"
	authapi "turnos-gateway/internal/domain/auth"
	"turnos-gateway/internal/domain/pacientes"
	"turnos-gateway/internal/domain/turnos"
	"turnos-gateway/internal/middleware"
	"turnos-gateway/internal/platform/config"
	"turnos-gateway/internal/platform/logger"
	"turnos-gateway/internal/platform/web"
	"turnos-gateway/internal/session"

	_ "turnos-gateway/docs"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	Config config.Config
	Logger logger.Logger // puede ser nil

	// Requeridos: cliente del backend y emisor de cookies (comparten el mismo Manager).
	Backend *backend.Client
	Cookies *session.Manager

	// Opcionales: si no vienen, in-memory.
	Audit turnos.AuditRepository
	Cache turnos.ViewCache
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	audit := opts.Audit
	if audit == nil {
		audit = mem.NewAuditRepo()
	}
	cache := opts.Cache
	if cache == nil {
		cache = mem.NewViewCache(opts.Config.CacheTTL)
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if opts.Config.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recover(log))

	r.Use(middleware.SessionGate())

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		web.WriteJSON(w, http.StatusOK, map[string]string{"service": opts.Config.AppName})
	})
	r.Get(middleware.LoginPath, func(w http.ResponseWriter, _ *http.Request) {
		web.WriteJSON(w, http.StatusOK, map[string]string{"login": "/api/auth/login"})
	})

	deps := turnos.Deps{
		Backend:    opts.Backend,
		Service:    turnos.NewService(opts.Backend, cache, log),
		Executor:   turnos.NewExecutor(opts.Backend, cache, audit, log),
		Audit:      audit,
		Principals: backend.NewResolver(opts.Backend),
		Cookies:    opts.Cookies,
		Log:        log,
	}

	// Namespace público: relay al backend. La autorización la decide el backend.
	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		api.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/api/docs/doc.json")))

		authapi.RegisterRoutes(api, opts.Backend, log,
			middleware.LoginRateLimit(opts.Config.LoginRatePerMin, opts.Config.LoginBurst, log))
		pacientes.RegisterAPIRoutes(api, opts.Backend)
		turnos.RegisterAPIRoutes(api, deps)
	})

	// Consola: protegida por SessionGate, 401/403 del backend cierra la sesión.
	turnos.RegisterConsoleRoutes(r, deps)
	pacientes.RegisterConsoleRoutes(r, opts.Backend, opts.Cookies)

	return r
}
