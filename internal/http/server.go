// Package http exposes the ledger over a JSON API: transaction import,
// classification, rules and budgets, reports and recurring schedules.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/export"
	applog "ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/trace"
	"ledger/internal/services"
)

// Store is the record-store surface the API needs. The SQLite
// repository satisfies it; tests use an in-memory fake.
type Store interface {
	services.RuleStore
	services.TransactionStore
	services.BudgetStore
	services.RecurringStore

	CreateRule(ctx context.Context, rule core.KeywordRule) (int64, error)
	SoftDeleteRule(ctx context.Context, userID, id int64) error
	CreateBudget(ctx context.Context, b core.Budget) (int64, error)
	SoftDeleteBudget(ctx context.Context, userID, id int64) error
	CategoriesByUser(ctx context.Context, userID int64) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (int64, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error)
	CreateRecurring(ctx context.Context, rt core.RecurringTransaction) (int64, error)
}

// ImportPublisher notifies the classification worker about new
// transactions. Nil disables publishing; imports still succeed.
type ImportPublisher interface {
	PublishTransactionsImported(ctx context.Context, userID int64, transactionIDs []int64) error
}

type Server struct {
	http.Server

	store      Store
	classifier *services.ClassificationService
	aggregator *services.Aggregator
	tracker    *services.RecurrenceTracker
	publisher  ImportPublisher

	budgetExporter   export.BudgetReportWriter
	cashFlowExporter export.CashFlowWriter

	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	logger      *applog.Logger

	// Report caches; invalidated on budget writes, otherwise TTL-bound.
	budgetStatusCache *cache.LRUCache[[]core.BudgetStatus]
	cashFlowCache     *cache.LRUCache[cashFlowReport]
	cacheManager      *cache.Manager

	startedAt    time.Time
	shutdownOnce sync.Once
}

type Deps struct {
	Store      Store
	Classifier *services.ClassificationService
	Aggregator *services.Aggregator
	Tracker    *services.RecurrenceTracker
	Publisher  ImportPublisher

	BudgetExporter   export.BudgetReportWriter
	CashFlowExporter export.CashFlowWriter
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:            deps.Store,
		classifier:       deps.Classifier,
		aggregator:       deps.Aggregator,
		tracker:          deps.Tracker,
		publisher:        deps.Publisher,
		budgetExporter:   deps.BudgetExporter,
		cashFlowExporter: deps.CashFlowExporter,

		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		tracer:      trace.NewMiddleware(clientIP),
		logger:      applog.New(applog.Config{Component: applog.ComponentHTTP}),

		budgetStatusCache: cache.NewLRUCache[[]core.BudgetStatus](100, 5*time.Minute),
		cashFlowCache:     cache.NewLRUCache[cashFlowReport](100, 5*time.Minute),
		cacheManager:      cache.NewManager(),

		startedAt: time.Now(),
	}

	s.cacheManager.Register(s.budgetStatusCache)
	s.cacheManager.Register(s.cashFlowCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/transactions", s.protect(s.handleImportTransactions))

	mux.HandleFunc("POST /api/classify", s.protect(s.handleClassify))
	mux.HandleFunc("POST /api/classify/batch", s.protect(s.handleClassifyBatch))
	mux.HandleFunc("POST /api/vendors/ensure", s.protect(s.handleEnsureVendor))

	mux.HandleFunc("GET /api/rules", s.protect(s.handleListRules))
	mux.HandleFunc("POST /api/rules", s.protect(s.handleCreateRule))
	mux.HandleFunc("DELETE /api/rules/{id}", s.protect(s.handleDeleteRule))

	mux.HandleFunc("GET /api/categories", s.protect(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.protect(s.handleCreateCategory))

	mux.HandleFunc("GET /api/budgets", s.protect(s.handleListBudgets))
	mux.HandleFunc("POST /api/budgets", s.protect(s.handleCreateBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.protect(s.handleDeleteBudget))

	mux.HandleFunc("GET /api/reports/budget-status", s.protect(s.handleBudgetStatus))
	mux.HandleFunc("GET /api/reports/totals", s.protect(s.handleTotals))
	mux.HandleFunc("GET /api/reports/cashflow", s.protect(s.handleCashFlow))

	mux.HandleFunc("POST /api/recurring", s.protect(s.handleCreateRecurring))
	mux.HandleFunc("GET /api/recurring", s.protect(s.handleListRecurring))
	mux.HandleFunc("POST /api/recurring/refresh", s.protect(s.handleRefreshRecurring))
	mux.HandleFunc("POST /api/recurring/{id}/deactivate", s.protect(s.handleDeactivateRecurring))

	mux.HandleFunc("POST /api/export/budget-status", s.protect(s.handleExportBudgetStatus))
	mux.HandleFunc("POST /api/export/cashflow", s.protect(s.handleExportCashFlow))

	return s
}

// protect wires the request logger, tracing and rate limiting around a
// handler.
func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	limited := s.rateLimiter.Middleware(clientIP, nil)(next)
	traced := s.tracer.Middleware(limited)
	logged := applog.Middleware(s.logger)(traced)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		logged.ServeHTTP(w, r)
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
