package http

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"yeardash/internal/auth"
	"yeardash/internal/core"
	"yeardash/internal/gateway"
	"yeardash/internal/log"
	"yeardash/internal/metrics"
	"yeardash/internal/middleware/ratelimit"
	"yeardash/internal/middleware/security"
	"yeardash/internal/middleware/trace"
	"yeardash/internal/services"
	"yeardash/internal/sheets"
	"yeardash/internal/store"
	"yeardash/internal/subscriber"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the HTTP server. Federated and Sheets are
// optional; their routes answer 404 when unset.
type Deps struct {
	Store     store.Store
	Pinger    Pinger
	Provider  auth.Provider
	Federated auth.Federated
	Tokens    *auth.Tokens
	States    *auth.StateStore
	Sheets    sheets.TransactionAppender

	Location    *time.Location
	CORSOrigins []string
	RateLimit   int

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

type Server struct {
	http.Server

	deps      Deps
	loc       *time.Location
	logger    *log.Logger
	metrics   *metrics.Metrics
	gateway   *gateway.Gateway
	views     *services.ViewService
	sub       *subscriber.Subscriber
	dashboard *services.DashboardService
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	validator *RequestValidator
	upgrader  websocket.Upgrader
	now       func() time.Time

	// sessionCheck is how often an open socket re-validates its token.
	sessionCheck time.Duration
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	limit := ratelimit.DefaultConfig()
	if deps.RateLimit > 0 {
		limit.RequestsPerMinute = deps.RateLimit
	}

	sub := subscriber.New(deps.Store, logger, deps.Metrics)
	s := &Server{
		deps:      deps,
		loc:       loc,
		logger:    logger.WithComponent(log.ComponentHTTP),
		metrics:   deps.Metrics,
		gateway:   gateway.New(deps.Store, logger, deps.Metrics),
		views:     services.NewViewService(deps.Store).InLocation(loc),
		sub:       sub,
		dashboard: services.NewDashboardService(sub, logger).InLocation(loc),
		limiter:   ratelimit.NewLimiter(limit, deps.Metrics),
		detector:  security.NewDetector(logger, deps.Metrics),
		validator: NewRequestValidator(),
		now:       func() time.Time { return time.Now().In(loc) },

		sessionCheck: sessionCheckPeriod,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Limiter exposes the rate limiter so its stale clients can be swept by a
// cache manager.
func (s *Server) Limiter() *ratelimit.Limiter { return s.limiter }

func (s *Server) routes() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /api/auth/signin", s.handleSignIn)
	api.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	api.HandleFunc("POST /api/auth/signout", s.handleSignOut)
	api.HandleFunc("GET /api/auth/me", s.handleMe)
	api.HandleFunc("GET /api/auth/google", s.handleGoogleStart)
	api.HandleFunc("GET /api/auth/google/callback", s.handleGoogleCallback)

	api.HandleFunc("GET /api/collections/{collection}", s.handleList)
	api.HandleFunc("POST /api/collections/{collection}", s.handleCreate)
	api.HandleFunc("PUT /api/collections/{collection}/{id}", s.handleUpdate)
	api.HandleFunc("DELETE /api/collections/{collection}/{id}", s.handleDelete)

	api.HandleFunc("GET /api/finance", s.handleFinance)
	api.HandleFunc("GET /api/finance/export.xlsx", s.handleExportXLSX)
	api.HandleFunc("POST /api/finance/export/sheets", s.handleExportSheets)
	api.HandleFunc("GET /api/goals/progress", s.handleGoalsProgress)
	api.HandleFunc("GET /api/recaps/view", s.handleRecapsView)
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)

	api.HandleFunc("GET /ws/dashboard", s.handleDashboardSocket)
	api.HandleFunc("GET /ws/collections/{collection}", s.handleCollectionSocket)

	corsMW := cors.Handler(cors.Options{
		AllowedOrigins:   s.deps.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", trace.RequestIDHeader},
		ExposedHeaders:   []string{trace.RequestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
	})

	var apiHandler http.Handler = api
	apiHandler = s.identityMiddleware(apiHandler)
	apiHandler = security.NoStoreMiddleware(apiHandler)
	apiHandler = limited(apiHandler)
	apiHandler = corsMW(apiHandler)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		root.Handle("GET /metrics", s.metrics.Handler())
	}
	root.Handle("/api/", apiHandler)
	root.Handle("/ws/", apiHandler)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, s.logger, s.metrics)

	var h http.Handler = root
	h = headers.Middleware(h)
	h = log.ComponentMiddleware(log.ComponentHTTP)(h)
	h = tracer.Middleware(h)
	h = s.detector.Middleware(h)
	return h
}

// identityMiddleware resolves the session token into an identity. Requests
// without a valid token carry a nil identity; handlers decide whether that
// is an error.
func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := requestToken(r); token != "" && s.deps.Tokens != nil {
			id, err := s.deps.Tokens.Parse(r.Context(), token)
			if err == nil {
				ctx := withIdentity(r.Context(), &id)
				ctx = context.WithValue(ctx, log.LoggerContextKey,
					log.FromContext(ctx).With(log.FieldUserID, id.ID))
				r = r.WithContext(ctx)
			} else {
				log.FromContext(r.Context()).DebugContext(r.Context(), "Rejected session token", log.FieldError, err)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// checkOrigin allows same-origin upgrades and the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.deps.CORSOrigins, origin) || slices.Contains(s.deps.CORSOrigins, "*")
}

func (s *Server) identity(r *http.Request) (*core.Identity, bool) {
	id := IdentityFrom(r.Context())
	return id, id != nil
}
