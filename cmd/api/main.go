package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"github.com/fkhayef/tally/internal/activity"
	"github.com/fkhayef/tally/internal/balance"
	"github.com/fkhayef/tally/internal/cache"
	"github.com/fkhayef/tally/internal/config"
	"github.com/fkhayef/tally/internal/database"
	"github.com/fkhayef/tally/internal/expense"
	"github.com/fkhayef/tally/internal/group"
	"github.com/fkhayef/tally/internal/jobs"
	"github.com/fkhayef/tally/internal/ledger"
	"github.com/fkhayef/tally/internal/lock"
	"github.com/fkhayef/tally/internal/settlement"
	"github.com/fkhayef/tally/internal/user"
	mw "github.com/fkhayef/tally/pkg/middleware"
)

// @title           Tally API
// @version         1.0
// @description     Shared-expense ledger: post expenses, track pairwise debts, settle up.
// @BasePath        /api/v1
func main() {
	// No .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	log.Info("connected to database")

	// Cache backend: Redis when configured, in-process LRU otherwise.
	var redisClient *redis.Client
	var cacheBackend cache.Backend
	if cfg.CacheURL != "" {
		opts, err := redis.ParseURL(cfg.CacheURL)
		if err != nil {
			log.Fatal("invalid CACHE_URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		cacheBackend = cache.NewRedis(redisClient)
		log.Info("using redis cache backend")
	} else {
		cacheBackend = cache.NewMemory(cfg.CacheTTL)
		log.Info("using in-process cache backend")
	}
	cacheLayer := cache.NewLayer(cacheBackend, log)

	// Lock backend. Multi-instance deployments must use Redis; config.Load
	// already refused the unsafe combination.
	var locks lock.Service
	switch cfg.LockBackend {
	case "redis":
		if redisClient == nil {
			log.Fatal("LOCK_BACKEND=redis requires CACHE_URL to be set")
		}
		locks = lock.NewRedisService(redisClient)
		log.Info("using redis lock backend")
	default:
		locks = lock.NewLocalService()
		log.Info("using local lock backend")
	}

	// Background jobs: cache invalidation and activity persistence.
	runner := jobs.NewRunner(jobs.Config{
		Concurrency: cfg.JobConcurrency,
		MaxAttempts: cfg.JobMaxAttempts,
	}, log)
	runner.Start()
	defer runner.Stop()

	// Activity feature
	activityRepo := activity.NewRepository(db)
	emitter := activity.NewEmitter(activityRepo, runner, log)
	activityService := activity.NewService(activityRepo)
	activityHandler := activity.NewHandler(activityService)

	// User feature
	userRepo := user.NewRepository(db)
	userService := user.NewService(userRepo)
	userHandler := user.NewHandler(userService)

	// Group feature
	groupRepo := group.NewRepository(db)
	groupService := group.NewService(groupRepo, emitter)
	groupHandler := group.NewHandler(groupService)

	// Ledger feature: expenses, balances, settlements.
	expenseRepo := expense.NewRepository(db)
	settlementRepo := settlement.NewRepository(db)
	balanceStore := balance.NewPostgresStore(db)

	ledgerService := ledger.NewService(
		expenseRepo,
		settlementRepo,
		balanceStore,
		locks,
		cacheLayer,
		runner,
		emitter,
		groupService,
		ledger.ServiceConfig{LockTTL: cfg.LockTTL, LockWait: cfg.LockWait},
		log,
	)
	ledgerHandler := ledger.NewHandler(ledgerService)

	balanceService := balance.NewService(balanceStore, cacheLayer, cfg.CacheTTL)
	balanceHandler := balance.NewHandler(balanceService)

	plannerService := settlement.NewService(balanceStore, cacheLayer, cfg.CacheTTL)
	settlementHandler := settlement.NewHandler(ledgerService, plannerService)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RequireUser)

		r.Mount("/users", userHandler.Routes())
		r.Mount("/groups", groupHandler.Routes())
		r.Mount("/expenses", ledgerHandler.Routes())
		r.Mount("/ledger/recompute", ledgerHandler.RecomputeRoutes())
		r.Mount("/balances", balanceHandler.Routes())
		r.Mount("/settlements", settlementHandler.Routes())
		r.Mount("/activity", activityHandler.Routes())
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
}
