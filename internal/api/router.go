package api

import (
	"log/slog"
	"net/http"
	"time"

	"credit-engine/internal/api/handler"
	mw "credit-engine/internal/api/middleware"
	"credit-engine/internal/config"
	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"

	_ "credit-engine/docs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Services struct {
	Loans        loan.Service
	Payments     loan.PaymentService
	Installments loan.InstallmentService
	Customers    customer.Service
}

func SetupRouter(svcs Services, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupCustomerRoutes(router, cfg, svcs.Customers, logger)
	setupLoanRoutes(router, svcs, cfg, logger)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	setupSwaggerEndpoint(router, logger)

	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	if !cfg.Metrics.Enabled {
		return
	}
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupSwaggerEndpoint(router *chi.Mux, logger *slog.Logger) {
	logger.Info("Setting up Swagger UI endpoint", "path", "/swagger/")
	router.Get("/swagger/*", httpSwagger.WrapHandler)
	router.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
}

func setupLoanRoutes(router *chi.Mux, svcs Services, cfg *config.Config, logger *slog.Logger) {
	defaultRate, err := decimal.NewFromString(cfg.Loan.DefaultInterestRate)
	if err != nil {
		logger.Warn("Invalid default interest rate in configuration, falling back to 0.10", "value", cfg.Loan.DefaultInterestRate)
		defaultRate = decimal.NewFromFloat(0.10)
	}

	loanHandler := handler.NewLoanHandler(svcs.Loans, svcs.Payments, svcs.Installments, defaultRate, logger)
	authHandler := handler.NewAuthHandler(*cfg, logger)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.GenerateBearerToken)
	})

	router.Route("/loans", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", loanHandler.CreateLoan)
		r.Get("/", loanHandler.ListLoans)
		r.Get("/{loanID}", loanHandler.GetLoan)
		r.Get("/{loanID}/installments", loanHandler.ListInstallments)
		r.Post("/{loanID}/pay", loanHandler.PayLoan)
	})

	router.Route("/installments", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Get("/{installmentID}", loanHandler.GetInstallment)
	})
}

func setupCustomerRoutes(r chi.Router, cfg *config.Config, svc customer.Service, logger *slog.Logger) {
	h := handler.NewCustomerHandler(svc, logger)

	r.Route("/customers", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.CreateCustomer)
		r.Get("/{customerID}", h.GetCustomer)
	})
}
