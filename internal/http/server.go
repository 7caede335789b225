package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"slices"
	"sync"
	"time"

	"finey/internal/analysis"
	"finey/internal/cache"
	"finey/internal/core"
	"finey/internal/log"
	"finey/internal/middleware/ratelimit"
	"finey/internal/middleware/security"
	"finey/internal/middleware/trace"
	"finey/internal/schema"
)

// Routes served by the API.
const (
	RouteTotalPeriod  = "/v1/finance/transactions/total-period"
	RouteHomeAnalysis = "/v1/screens-mobile/home/analysis"
	RouteGoals        = "/v1/finance/goals"
	RouteHealth       = "/healthz"
	RouteReady        = "/readyz"
	RouteMetrics      = "/metrics"
)

// Analyzer is the aggregation engine as the handlers see it.
// *analysis.Engine implements it.
type Analyzer interface {
	Totals(ctx context.Context, sel core.AccountSelector, desc core.RangeDescriptor) (core.DateRange, analysis.TotalsView, error)
	Analyze(ctx context.Context, sel core.AccountSelector, desc core.RangeDescriptor) (*analysis.Report, error)
}

// GoalManager is implemented by *services.GoalService.
type GoalManager interface {
	CreateGoal(ctx context.Context, values schema.Values) (core.Goal, error)
	ListGoals(ctx context.Context) ([]core.Goal, error)
}

// Pinger backs the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr               string
	RequestTimeout     time.Duration
	AnalysisCacheTTL   time.Duration // zero disables the analysis cache
	AnalysisCacheSize  int
	RateLimitPerMinute int
}

// Deps are the collaborators the server is built on. Caches is optional;
// when set, the analysis cache is registered there instead of being swept
// by the server itself.
type Deps struct {
	Engine Analyzer
	Goals  GoalManager
	Keys   schema.KeyResolver
	Store  Pinger
	Logger *log.Logger
	Caches *cache.Manager
}

type Server struct {
	http.Server
	cfg       Config
	engine    Analyzer
	goals     GoalManager
	keys      schema.KeyResolver
	validator *schema.Validator
	store     Pinger
	events    *log.StructuredLogger

	reportCache *cache.LRUCache[*analysis.Report]
	reports     *cache.Loader[*analysis.Report]
	caches      *cache.Manager
	ownsCaches  bool

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	metrics     *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.AnalysisCacheSize <= 0 {
		cfg.AnalysisCacheSize = 256
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		cfg:       cfg,
		engine:    deps.Engine,
		goals:     deps.Goals,
		keys:      deps.Keys,
		validator: schema.NewValidator(deps.Keys),
		store:     deps.Store,
		events:    log.NewStructuredLogger(logger.WithComponent(log.ComponentAnalysis)),
		detector:  security.NewDetector(),
		metrics:   newAppMetrics(),
	}

	s.reportCache = cache.NewLRUCache[*analysis.Report](cfg.AnalysisCacheSize, cfg.AnalysisCacheTTL)
	s.reports = cache.NewLoader[*analysis.Report](s.reportCache)
	s.caches = deps.Caches
	if s.caches == nil {
		s.caches = cache.NewManager()
		s.ownsCaches = true
	}
	rlCfg := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMinute > 0 {
		rlCfg.RequestsPerMinute = cfg.RateLimitPerMinute
	}
	s.rateLimiter = ratelimit.NewLimiter(rlCfg)

	s.caches.Register("analysis", s.reportCache)
	s.caches.Register("ratelimit", s.rateLimiter)
	if s.ownsCaches {
		s.caches.StartCleanup(5 * time.Minute)
	}

	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc(RouteTotalPeriod, s.handleTotalPeriod)
	mux.HandleFunc(RouteHomeAnalysis, s.handleHomeAnalysis)
	mux.HandleFunc(RouteGoals, s.handleGoals)
	mux.HandleFunc(RouteHealth, s.handleHealth)
	mux.HandleFunc(RouteReady, s.handleReady)
	mux.HandleFunc(RouteMetrics, s.handleMetrics)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError().Write(r.Context(), w)
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.metrics.rateLimited()
		RateLimitedError().Write(r.Context(), w)
	})

	var handler http.Handler = mux
	handler = s.withDeadline(handler)
	handler = limit(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// withDeadline bounds every request by the configured timeout. A store call
// that misses it surfaces as a retryable 503.
func (s *Server) withDeadline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Shutdown gracefully shuts down the server and its cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.ownsCaches {
			s.caches.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// analyze serves a report from the analysis cache, filling it at most once
// per key. The fill runs detached from the first caller's cancellation so
// concurrent waiters are not failed by it.
func (s *Server) analyze(ctx context.Context, in AnalysisInput) (*analysis.Report, bool, error) {
	if !s.reportCache.Enabled() {
		rep, err := s.engine.Analyze(ctx, in.Accounts, in.Range)
		return rep, false, err
	}

	r, err := core.NormalizeRange(in.Range)
	if err != nil {
		return nil, false, err
	}
	key := reportKey(in.Accounts, r)

	rep, cached, err := s.reports.GetOrLoad(ctx, key, func(ctx context.Context) (*analysis.Report, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestTimeout)
		defer cancel()
		return s.engine.Analyze(loadCtx, in.Accounts, in.Range)
	})
	if err != nil {
		return nil, false, err
	}
	if hasTransientFailure(rep) {
		s.reports.Forget(key)
	}
	return rep, cached, nil
}

// reportKey hashes the sorted account ids and the normalized range, so the
// cache holds no plaintext account ids.
func reportKey(sel core.AccountSelector, r core.DateRange) string {
	ids := slices.Clone([]string(sel))
	slices.Sort(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	h.Write([]byte(r.String()))
	return hex.EncodeToString(h.Sum(nil))
}

// hasTransientFailure reports a view failure that a retry might fix.
func hasTransientFailure(rep *analysis.Report) bool {
	for _, err := range rep.Failures {
		if !core.IsInsufficientData(err) {
			return true
		}
	}
	return false
}
