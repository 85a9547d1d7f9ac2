package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tokosenja/api/internal/carrier"
	"github.com/tokosenja/api/internal/config"
	"github.com/tokosenja/api/internal/database"
	"github.com/tokosenja/api/internal/enum"
	"github.com/tokosenja/api/internal/handler"
	mw "github.com/tokosenja/api/internal/middleware"
	"github.com/tokosenja/api/internal/service"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, carriers carrier.Lookup) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",         // SvelteKit dev server
			"https://admin.tokosenja.com",   // Production back office
			"https://staging.tokosenja.com", // Staging back office
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Services share the pool for transactions and a store factory so
	// each transaction gets queries bound to it.
	totalsService := service.NewTotalsService(pool, func(db database.DBTX) service.TotalsStore {
		return database.New(db)
	})
	cancellationService := service.NewCancellationService(pool, func(db database.DBTX) service.CancellationStore {
		return database.New(db)
	})
	settlementService := service.NewSettlementService(
		queries,
		pool,
		func(db database.DBTX) service.SettlementStore {
			return database.New(db)
		},
		carriers,
	)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		orderHandler := handler.NewOrderHandler(
			queries,
			pool,
			func(db database.DBTX) handler.OrderStore {
				return database.New(db)
			},
			totalsService,
			cancellationService,
		)
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.Create)
			r.Get("/", orderHandler.List)
			r.Get("/{id}", orderHandler.Get)
			r.Post("/{id}/recompute-totals", orderHandler.RecomputeTotals)
			r.With(mw.RequireRole(enum.UserRoleAdmin)).Post("/{id}/cancel", orderHandler.Cancel)
			r.With(mw.RequireRole(enum.UserRoleAdmin)).Delete("/{id}", orderHandler.Delete)
		})

		settlementHandler := handler.NewSettlementHandler(settlementService)
		r.Route("/settlements", settlementHandler.RegisterRoutes)

		supplierHandler := handler.NewSupplierHandler(queries)
		r.Route("/suppliers", supplierHandler.RegisterRoutes)

		ledgerHandler := handler.NewLedgerHandler(queries)
		r.Route("/ledger-entries", ledgerHandler.RegisterRoutes)

		expenseHandler := handler.NewExpenseHandler(queries)
		r.Route("/expenses", expenseHandler.RegisterRoutes)

		catalogHandler := handler.NewCatalogHandler(queries)
		catalogHandler.RegisterRoutes(r)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))

			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", userHandler.RegisterRoutes)

			reportsHandler := handler.NewReportsHandler(queries)
			r.Route("/reports", reportsHandler.RegisterRoutes)
		})
	})

	return r
}
