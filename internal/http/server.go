package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"savvycent/internal/cache"
	"savvycent/internal/core"
	applog "savvycent/internal/log"
	"savvycent/internal/middleware/security"
	"savvycent/internal/middleware/trace"
	"savvycent/internal/ratelimit"
	"savvycent/internal/services"
)

// Ledger is the part of services.LedgerService the API calls.
type Ledger interface {
	EnsureUser(ctx context.Context, u core.User) (core.User, error)
	CreateAccount(ctx context.Context, userID string, in services.AccountInput) (core.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
	GetAccountWithTransactions(ctx context.Context, userID, accountID string) (services.AccountWithTransactions, error)
	SetDefaultAccount(ctx context.Context, userID, accountID string) (core.Account, error)
	DeleteAccount(ctx context.Context, userID, accountID string) error
	CreateTransaction(ctx context.Context, userID string, in services.TransactionInput) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id string, in services.TransactionInput) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) error
	BulkDeleteTransactions(ctx context.Context, userID string, ids []string) (int, error)
	ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error)
	UpsertBudget(ctx context.Context, userID string, amount core.Money) (core.Budget, error)
	GetBudgetStatus(ctx context.Context, userID, accountID string) (core.BudgetStatus, error)
}

// Reports produces monthly statistics with insights.
type Reports interface {
	MonthlyInsights(ctx context.Context, userID string, year, month int) (core.MonthlyStats, []string, error)
}

// ReceiptScanner extracts transaction fields from a receipt image.
type ReceiptScanner interface {
	ScanReceipt(ctx context.Context, image []byte, mimeType string) (core.ReceiptData, error)
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Ledger   Ledger
	Reports  Reports
	Receipts ReceiptScanner
	Store    Pinger
	Logger   *applog.Logger
}

type Options struct {
	TxRateLimit       int
	TxRatePeriod      time.Duration
	InsightsCacheSize int
	InsightsCacheTTL  time.Duration
}

func DefaultOptions() Options {
	return Options{
		TxRateLimit:       10,
		TxRatePeriod:      time.Hour,
		InsightsCacheSize: 256,
		InsightsCacheTTL:  time.Hour,
	}
}

// InsightsView is the body of GET /api/insights.
type InsightsView struct {
	Stats    core.MonthlyStats `json:"stats"`
	Net      core.Money        `json:"net"`
	Insights []string          `json:"insights"`
}

type Server struct {
	http.Server

	ledger   Ledger
	reports  Reports
	receipts ReceiptScanner
	store    Pinger
	logger   *applog.Logger
	now      func() time.Time

	insightsCache *cache.LRUCache[InsightsView]
	cacheManager  *cache.Manager
	txLimiter     *ratelimit.Limiter
	detector      *security.Detector
	tracer        *trace.Middleware

	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		ledger:        deps.Ledger,
		reports:       deps.Reports,
		receipts:      deps.Receipts,
		store:         deps.Store,
		logger:        logger.WithComponent(applog.ComponentHTTP),
		now:           func() time.Time { return time.Now().UTC() },
		insightsCache: cache.NewLRUCache[InsightsView](opts.InsightsCacheSize, opts.InsightsCacheTTL),
		cacheManager:  cache.NewManager(),
		txLimiter: ratelimit.NewLimiter(ratelimit.Config{
			Limit:           opts.TxRateLimit,
			Period:          opts.TxRatePeriod,
			CleanupInterval: 5 * time.Minute,
		}),
		detector:  security.NewDetector(),
		startedAt: time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	s.cacheManager.Register(s.insightsCache)
	s.cacheManager.Start(10 * time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	api.HandleFunc("GET /api/accounts", s.handleListAccounts)
	api.HandleFunc("GET /api/accounts/{id}", s.handleGetAccount)
	api.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)
	api.HandleFunc("PUT /api/accounts/{id}/default", s.handleSetDefaultAccount)

	api.Handle("POST /api/transactions", s.rateLimitTransactions(http.HandlerFunc(s.handleCreateTransaction)))
	api.HandleFunc("GET /api/transactions", s.handleListTransactions)
	api.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	api.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	api.HandleFunc("POST /api/transactions/bulk-delete", s.handleBulkDeleteTransactions)

	api.HandleFunc("PUT /api/budget", s.handleUpsertBudget)
	api.HandleFunc("GET /api/budget", s.handleGetBudget)

	api.HandleFunc("POST /api/receipts/scan", s.handleScanReceipt)
	api.HandleFunc("GET /api/insights", s.handleInsights)

	mux.Handle("/api/", s.identity(api))

	var h http.Handler = mux
	h = s.detector.Handler(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Handler(h)
	h = s.tracer.Handler(h)
	return h
}

// rateLimitTransactions bounds transaction creation per user.
func (s *Server) rateLimitTransactions(next http.Handler) http.Handler {
	return s.txLimiter.Middleware(
		func(r *http.Request) string { return userFrom(r.Context()).ID },
		func(w http.ResponseWriter, r *http.Request) {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Transaction rate limit exceeded",
				applog.FieldComponent, applog.ComponentRateLimit)
			FromError(core.ErrRateLimited).Write(w)
		},
	)(next)
}

func insightsKey(userID string, year, month int) string {
	return userID + ":" + strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

// invalidateInsights drops every cached month of the user.
func (s *Server) invalidateInsights(userID string) {
	s.insightsCache.DeletePrefix(userID + ":")
}

// Shutdown stops background routines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.txLimiter.Stop()
		if shutdownErr := s.Server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("http shutdown: %w", shutdownErr)
		}
	})
	return err
}
