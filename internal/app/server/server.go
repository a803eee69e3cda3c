package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/auth"
	"appraisal/internal/domain/notifications"
	"appraisal/internal/domain/reports"
	"appraisal/internal/domain/review"
	"appraisal/internal/domain/scoring"
	"appraisal/internal/platform/config"
	"appraisal/internal/platform/db"
	"appraisal/internal/platform/email"
	"appraisal/internal/platform/jobs"
	"appraisal/internal/platform/metrics"
	audithandler "appraisal/internal/transport/http/handlers/audit"
	authhandler "appraisal/internal/transport/http/handlers/auth"
	notificationshandler "appraisal/internal/transport/http/handlers/notifications"
	opshandler "appraisal/internal/transport/http/handlers/ops"
	reportshandler "appraisal/internal/transport/http/handlers/reports"
	reviewhandler "appraisal/internal/transport/http/handlers/review"
	"appraisal/internal/transport/http/middleware"
)

const rateWindow = time.Minute

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector

	stopJobs context.CancelFunc
}

// New connects to the database, prepares the schema and builds the router.
// The caller owns the returned App and must Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy := scoring.DefaultPolicy()
	if cfg.PolicyFile != "" {
		loaded, err := scoring.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
		policy = loaded
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	collector := metrics.New()

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	jobsSvc := jobs.New(jobs.NewPGRecorder(pool), cfg.JobQueueSize)
	jobsSvc.Start(jobsCtx)

	auditSvc := audit.New(pool)
	notifySvc := notifications.New(notifications.NewStore(pool), email.New(cfg))
	notifySvc.DefaultFrom = cfg.EmailFrom
	authSvc := auth.NewService(auth.NewStore(pool), cfg.JWTSecret)
	reportsSvc := reports.NewService(reports.NewStore(pool), policy)

	reviewStore := review.NewStore(pool)
	reviewStore.TxTimeout = cfg.TxTimeout
	reviewSvc := review.NewService(reviewStore, policy)
	reviewSvc.Notify = notifySvc
	reviewSvc.Jobs = jobsSvc
	reviewSvc.History = auditSvc
	reviewSvc.Metrics = collector
	reviewSvc.MaxImportRows = cfg.ImportMaxRows

	reviewHandler := reviewhandler.NewHandler(reviewSvc)
	reviewHandler.MaxUploadBytes = cfg.MaxUploadBytes

	var snapshots opshandler.Snapshotter
	if cfg.MetricsEnabled {
		snapshots = collector
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes, cfg.MaxUploadBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, rateWindow))

	opshandler.NewHandler(pool, snapshots).RegisterRoutes(router)

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(authSvc).RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)
			reviewHandler.RegisterRoutes(r)
			notificationshandler.NewHandler(notifySvc).RegisterRoutes(r)
			audithandler.NewHandler(auditSvc).RegisterRoutes(r)
			reportshandler.NewHandler(reportsSvc).RegisterRoutes(r)
		})
	})

	slog.Info("policy loaded", "ranks", len(policy.RankCaps), "source", policySource(cfg))

	return &App{
		Config:   cfg,
		DB:       pool,
		Router:   router,
		Jobs:     jobsSvc,
		Metrics:  collector,
		stopJobs: stopJobs,
	}, nil
}

// Close stops the job worker and releases the pool.
func (a *App) Close() {
	if a.stopJobs != nil {
		a.stopJobs()
	}
	if a.Jobs != nil {
		a.Jobs.Wait()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func policySource(cfg config.Config) string {
	if cfg.PolicyFile == "" {
		return "default"
	}
	return cfg.PolicyFile
}
