package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/storage"

	"github.com/google/uuid"
)

// LedgerAPI is the ledger surface the handlers need.
type LedgerAPI interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (core.Account, error)
	CreateAccount(ctx context.Context, in core.NewAccount) (core.Account, error)

	ListCategories(ctx context.Context) ([]core.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (core.Category, error)
	CreateCategory(ctx context.Context, in core.NewCategory) (core.Category, error)

	ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (core.Transaction, error)
	CreateTransaction(ctx context.Context, in core.NewTransaction) (core.Transaction, error)
}

// SummaryAPI builds monthly summaries.
type SummaryAPI interface {
	MonthlySummary(ctx context.Context, year, month int) (core.MonthlySummary, error)
}

// Pinger reports whether the store can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the server. Zero values fall back to defaults.
type Options struct {
	Addr               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigin  string
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *log.Logger
	Metrics            *metrics.Collector
	Now                func() time.Time
}

type Server struct {
	http.Server

	ledger  LedgerAPI
	summary SummaryAPI
	store   Pinger
	logger  *log.Logger
	metrics *metrics.Collector
	now     func() time.Time
	started time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, ledger LedgerAPI, summary SummaryAPI, store Pinger) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}

	detector, err := security.NewDetector(opts.Metrics, opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	limiterCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	mux := http.NewServeMux()
	s := &Server{
		ledger:           ledger,
		summary:          summary,
		store:            store,
		logger:           opts.Logger.WithComponent(log.ComponentHTTP),
		metrics:          opts.Metrics,
		now:              opts.Now,
		started:          opts.Now(),
		rateLimiter:      ratelimit.NewLimiter(limiterCfg),
		securityDetector: detector,
	}
	s.traceMiddleware = trace.NewMiddleware(opts.Logger, opts.Metrics, detector.ExtractClientIP, func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		return pattern
	})

	s.routes(mux)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimit)(handler)
	handler = security.CORS(opts.CORSAllowedOrigin)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /accounts", s.handleListAccounts)
	mux.HandleFunc("GET /accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("POST /accounts", s.handleCreateAccount)

	mux.HandleFunc("GET /categories", s.handleListCategories)
	mux.HandleFunc("GET /categories/{id}", s.handleGetCategory)
	mux.HandleFunc("POST /categories", s.handleCreateCategory)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)

	mux.HandleFunc("GET /dashboard/summary", s.handleMonthlySummary)
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", "").Write(w)
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
