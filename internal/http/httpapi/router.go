package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"tattty/internal/http/handlers"
	"tattty/internal/middleware"
)

type RouterOptions struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.Client(opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}

		r.Get("/v1/catalogs", app.Catalogs)

		r.Route("/v1/drafts/{session_id}", func(r chi.Router) {
			r.Get("/", app.GetDraft)
			r.Delete("/", app.DeleteDraft)
			r.Put("/questions/{n}", app.PutQuestion)
			r.Put("/options/{field}", app.PutOption)
			r.Put("/images", app.PutImages)
			r.Delete("/images", app.ClearImages)
			r.Post("/finalize", app.Finalize)
			r.Post("/submit", app.Submit)
		})

		r.Route("/v1/prompts", func(r chi.Router) {
			r.Post("/enhance", app.PromptEnhance)
			r.Post("/story", app.PromptStory)
		})

		r.Post("/v1/sketches", app.Sketch)
		r.Post("/v1/events", app.Event)

		r.Route("/v1/license-keys", func(r chi.Router) {
			r.Post("/", app.CreateLicenseKey)
			r.Post("/check", app.CheckLicenseKey)
		})
	})

	return r
}
