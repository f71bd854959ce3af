package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"finansheet/internal/cache"
	"finansheet/internal/config"
	"finansheet/internal/log"
	"finansheet/internal/middleware/ratelimit"
	"finansheet/internal/middleware/security"
	"finansheet/internal/middleware/trace"
	"finansheet/internal/services"
)

// cacheCleanupInterval is how often expired grids are dropped.
const cacheCleanupInterval = 10 * time.Minute

// Pinger reports whether the data backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are what the server needs to answer requests. Pinger may be
// nil, in which case readiness only checks the services.
type Dependencies struct {
	Dashboard   *services.DashboardService
	Commitments *services.CommitmentService
	Pinger      Pinger
	// GridMonths is the default grid window.
	GridMonths int
	RateLimit  ratelimit.Config
	Logger     *log.Logger
}

type Server struct {
	http.Server

	dashboard   *services.DashboardService
	commitments *services.CommitmentService
	pinger      Pinger
	gridMonths  int

	logger           *log.Logger
	errors           *log.StructuredLogger
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	cacheManager     *cache.Manager

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	mutations       atomic.Int64
	failedMutations atomic.Int64
	uptime          time.Time
}

// NewServer wires routes and middleware. Background cleanup goroutines run
// until Shutdown.
func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentHTTP})
	}
	gridMonths := deps.GridMonths
	if gridMonths < 1 || gridMonths > config.MaxGridMonths {
		gridMonths = 12
	}

	s := &Server{
		dashboard:        deps.Dashboard,
		commitments:      deps.Commitments,
		pinger:           deps.Pinger,
		gridMonths:       gridMonths,
		logger:           logger,
		errors:           log.NewStructuredLogger(logger),
		rateLimiter:      ratelimit.NewLimiter(deps.RateLimit),
		securityDetector: security.NewDetector(),
		cacheManager:     cache.NewManager(),
	}
	s.appMetrics.uptime = time.Now()
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)

	s.cacheManager.Register(s.dashboard.GridCache())
	s.cacheManager.StartCleanup(cacheCleanupInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/grid", s.handleGrid)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/commitments", s.handleListCommitments)
	mux.HandleFunc("POST /api/commitments", s.handleCreateCommitment)
	mux.HandleFunc("DELETE /api/commitments/{id}", s.handleDeleteCommitment)
	mux.HandleFunc("POST /api/commitments/{id}/terms", s.handleAddTerm)
	mux.HandleFunc("POST /api/commitments/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /api/commitments/{id}/resume", s.handleResume)
	mux.HandleFunc("PATCH /api/commitments/{id}/important", s.handleSetImportant)
	mux.HandleFunc("POST /api/commitments/{id}/payments", s.handleRecordPayment)
	mux.HandleFunc("DELETE /api/commitments/{id}/payments/{period}", s.handleDeletePayment)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.RequestIDMiddleware(trace.GetRequestID)(handler)
	handler = log.Middleware(logger)(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops background cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

// fail logs err and writes the matching error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, errorType := StatusForError(err)
	if status >= http.StatusInternalServerError {
		s.errors.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, errorType,
			log.NewFields().WithRequestID(trace.GetRequestID(r.Context())))
	} else {
		s.logger.WarnContext(r.Context(), "Request rejected",
			log.FieldOperation, op,
			log.FieldStatusCode, status,
			log.FieldErrorType, errorType,
			log.FieldError, err)
	}
	FromError(err).Write(w)
}
