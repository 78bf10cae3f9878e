package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"genstudio/internal/http/handlers"
	"genstudio/internal/middleware"
)

// Options configures the router beyond what App carries.
type Options struct {
	CORSOrigins    []string
	AuthRatePerMin int
	// UploadDir is served read-only under the app's upload URL prefix.
	UploadDir string
}

func NewRouter(app *handlers.App, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(logger),
		chimw.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
			MaxAge:         300,
		}),
	)
	r.NotFound(app.NotFound)
	r.MethodNotAllowed(app.MethodNotAllowed)

	r.Get("/api/health", app.Health)

	requireAuth := middleware.AuthJWT(app.JWTSecret)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(opts.AuthRatePerMin, time.Minute)).Group(func(r chi.Router) {
			r.Post("/signup", app.Signup)
			r.Post("/login", app.Login)
		})
		r.With(requireAuth).Get("/me", app.Me)
	})

	r.Route("/api/generations", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", app.CreateGeneration)
		r.Get("/", app.ListGenerations)
		r.Get("/{id}", app.GetGeneration)
	})

	if opts.UploadDir != "" {
		prefix := app.UploadURLPrefix
		r.Handle(prefix+"/*", http.StripPrefix(prefix, staticFiles(http.Dir(opts.UploadDir))))
	}

	return r
}

// staticFiles serves stored artifacts without directory listings.
func staticFiles(root http.FileSystem) http.Handler {
	fs := http.FileServer(root)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		fs.ServeHTTP(w, r)
	})
}
