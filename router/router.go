package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hedgeledger/engine/chain"
	"github.com/hedgeledger/engine/config"
	"github.com/hedgeledger/engine/handler"
	gwmw "github.com/hedgeledger/engine/middleware"
	"github.com/hedgeledger/engine/payments"
	"github.com/hedgeledger/engine/poolcache"
	"github.com/hedgeledger/engine/store"
)

// NewRouter returns the configured chi router with the middleware chain and
// all operator routes mounted.
func NewRouter(cfg *config.Config, appLogger zerolog.Logger, st *store.Store,
	cache *poolcache.Cache, chains *chain.Registry, scanner *payments.Scanner) http.Handler {

	r := chi.NewRouter()

	// --- Middleware chain (order matters) ---
	r.Use(gwmw.SecurityHeadersMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mwRequestLogger(appLogger))

	system := handler.NewSystemHandler(cache, chains, appLogger)
	pools := handler.NewPoolsHandler(cache, appLogger)
	jobs := handler.NewJobsHandler(st, scanner, appLogger)
	players := handler.NewPlayersHandler(st, appLogger)
	pricingCfg := handler.NewPricingHandler(st, appLogger)

	// Liveness endpoints stay unauthenticated for probes.
	r.Get("/healthz", system.Healthz)
	r.Get("/ready", system.Ready)

	auth := gwmw.NewAdminAuth(cfg.AdminToken, appLogger)
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.Handler)

		r.Get("/chains", system.Chains)

		r.Get("/pools", pools.List)
		r.Get("/pools/search", pools.Search)
		r.Get("/pools/{chain}/{pid}", pools.Get)

		r.Get("/jobs/{id}", jobs.Get)
		r.Post("/jobs/{id}/verify", jobs.Verify)
		r.Post("/jobs/{id}/verify-tx", jobs.VerifyTx)

		r.Get("/players/{chatID}", players.Get)
		r.Get("/wallets/{wallet}/snapshots", players.Snapshots)

		r.Get("/pricing", pricingCfg.Get)
	})

	return r
}

// mwRequestLogger logs each request with latency at debug level.
func mwRequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		})
	}
}
