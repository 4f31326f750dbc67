package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"veoqueue/internal/http/handlers"
	"veoqueue/internal/infra"
	"veoqueue/internal/middleware"
)

// Options configures the middleware stack around the API.
type Options struct {
	Logger          infra.Logger
	CORSOrigins     []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	JWTSecret       string
	RateLimitPerMin int
	StaticDir       string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)
		r.Group(func(r chi.Router) {
			if opts.JWTSecret != "" {
				r.Use(middleware.AuthJWT(opts.JWTSecret))
			}
			mountAPI(r, app, middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		})
	})

	return r
}

func mountAPI(r chi.Router, app *handlers.App, submit func(http.Handler) http.Handler) {
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", app.ListJobs)
		r.Get("/export", app.ExportVideos)
		r.With(submit).Post("/", app.CreateJob)
		r.With(submit).Post("/batch", app.CreateBatch)
		r.Get("/{id}", app.GetJob)
		r.Delete("/{id}", app.DeleteJob)
		r.With(submit).Post("/{id}/duplicate", app.DuplicateJob)
	})

	r.Route("/scheduler", func(r chi.Router) {
		r.Get("/", app.SchedulerStatus)
		r.Post("/start", app.StartScheduler)
		r.Post("/pause", app.PauseScheduler)
	})

	r.Route("/credential", func(r chi.Router) {
		r.Get("/", app.CredentialStatus)
		r.Put("/", app.SelectCredential)
	})
}
