// Package api provides the REST facade over the circulation manager.
package api

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"library-circulation/internal/logger"
	"library-circulation/internal/metrics"
	"library-circulation/internal/ratelimit"
	"library-circulation/internal/validation"
	"library-circulation/library"
)

// Config holds the settings the HTTP layer needs.
type Config struct {
	TokenSecret        string
	TokenTTL           time.Duration
	LoginRatePerMinute int
	CORSOrigins        []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	lm       *library.LibraryManager
	cfg      Config
	secret   []byte
	router   *chi.Mux
	log      *logger.Logger
	metrics  *metrics.Metrics
	validate *validation.Validator
	logins   *ratelimit.KeyedRateLimiter
}

// NewServer creates a new HTTP server with all routes configured. An empty
// token secret is replaced by a random one, which invalidates tokens on
// restart.
func NewServer(lm *library.LibraryManager, cfg Config, log *logger.Logger, m *metrics.Metrics) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.LoginRatePerMinute <= 0 {
		cfg.LoginRatePerMinute = 10
	}
	if log == nil {
		log = logger.Discard()
	}
	if m == nil {
		m = metrics.New()
	}

	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
		log.Warn("AUTH_TOKEN_SECRET not set; using a random secret for this process")
	}

	s := &Server{
		lm:       lm,
		cfg:      cfg,
		secret:   secret,
		router:   chi.NewRouter(),
		log:      log,
		metrics:  m,
		validate: validation.New(),
		logins:   ratelimit.New(cfg.LoginRatePerMinute, cfg.LoginRatePerMinute),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SweepLimiters forgets idle login limiters. The serve command calls it
// periodically.
func (s *Server) SweepLimiters() int { return s.logins.Sweep() }

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	s.router.Use(s.metrics.Middleware)
}

// requestLogger logs one line per request through the structured logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Route("/books", func(r chi.Router) {
				r.Get("/", s.handleListBooks)
				r.Get("/search", s.handleSearchBooks)
				r.Get("/{id}", s.handleGetBook)
				r.Get("/{id}/copies", s.handleListCopies)
				r.Group(func(r chi.Router) {
					r.Use(s.requireStaff)
					r.Post("/", s.handleCreateBook)
					r.Put("/{id}", s.handleUpdateBook)
					r.Delete("/{id}", s.handleDeleteBook)
					r.Post("/{id}/copies", s.handleAddCopy)
				})
			})

			r.With(s.requireStaff).Put("/copies/{id}/status", s.handleSetCopyStatus)

			r.Get("/authors", s.handleListAuthors)
			r.With(s.requireStaff).Post("/authors", s.handleCreateAuthor)
			r.Get("/categories", s.handleListCategories)
			r.With(s.requireStaff).Post("/categories", s.handleCreateCategory)

			r.Route("/members", func(r chi.Router) {
				r.Get("/{id}", s.handleGetMember)
				r.Group(func(r chi.Router) {
					r.Use(s.requireStaff)
					r.Get("/", s.handleListMembers)
					r.Post("/", s.handleRegisterMember)
					r.Put("/{id}", s.handleUpdateMember)
					r.Delete("/{id}", s.handleDeleteMember)
					r.Post("/{id}/suspend", s.handleSuspendMember)
				})
			})

			r.Route("/loans", func(r chi.Router) {
				r.Get("/member/{id}", s.handleMemberLoans)
				r.Group(func(r chi.Router) {
					r.Use(s.requireStaff)
					r.Get("/", s.handleListLoans)
					r.Get("/active", s.handleActiveLoans)
					r.Get("/overdue", s.handleOverdueLoans)
					r.Post("/issue", s.handleIssueLoan)
					r.Post("/return", s.handleReturnLoan)
					r.Post("/update-overdue", s.handleUpdateOverdue)
				})
			})

			r.Route("/reservations", func(r chi.Router) {
				r.Post("/", s.handleCreateReservation)
				r.Get("/member/{id}", s.handleMemberReservations)
				r.Post("/{id}/cancel", s.handleCancelReservation)
				r.Group(func(r chi.Router) {
					r.Use(s.requireStaff)
					r.Get("/", s.handleListReservations)
					r.Post("/expire", s.handleExpireReservations)
				})
			})
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	success(w, map[string]string{"status": "ok"}, s.log)
}
