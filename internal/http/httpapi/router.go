package httpapi

import (
	"net/http"

	"server/internal/http/handlers"
	appmw "server/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		appmw.Logger(app.Logger),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", app.JobsCreate)
		r.Get("/{id}/status", app.JobsStatus)
	})

	r.Post("/v1/sync", app.SyncTrigger)
	r.Get("/v1/credits/balance", app.CreditsBalance)
	r.Get("/v1/realtime", app.Realtime)

	return r
}
