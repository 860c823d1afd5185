package server

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"clinicbook/internal/domain/access"
	"clinicbook/internal/domain/audit"
	"clinicbook/internal/domain/compliance"
	"clinicbook/internal/domain/mfa"
	"clinicbook/internal/domain/retention"
	"clinicbook/internal/platform/config"
	"clinicbook/internal/platform/crypto"
	"clinicbook/internal/platform/db"
	"clinicbook/internal/platform/jobs"
	"clinicbook/internal/platform/metrics"
	accesshandler "clinicbook/internal/transport/http/handlers/access"
	audithandler "clinicbook/internal/transport/http/handlers/audit"
	authhandler "clinicbook/internal/transport/http/handlers/auth"
	mfahandler "clinicbook/internal/transport/http/handlers/mfa"
	retentionhandler "clinicbook/internal/transport/http/handlers/retention"
	"clinicbook/internal/transport/http/middleware"
)

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, "migrations"); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	// MFA enrollments go to Postgres sealed with the field cipher when a key
	// is configured; without one they stay in process memory.
	var mfaStore mfa.Store = mfa.NewMemoryStore()
	if cfg.DataEncryptionKey != "" {
		cipherSvc, err := crypto.New(cfg.DataEncryptionKey)
		if err != nil {
			log.Fatalf("invalid DATA_ENCRYPTION_KEY: %v", err)
		}
		mfaStore = mfa.NewPGStore(pool, compliance.NewFieldCipher(cipherSvc))
	}

	collector := metrics.New()

	ledger, err := audit.NewLedger(cfg.AuditLogCapacity,
		audit.WithObserver(func(audit.Event) { collector.RecordAuditEvent() }),
		audit.WithAlerter(audit.AlerterFunc(func(e audit.Event) {
			slog.Warn("critical audit event",
				"action", e.Action,
				"actorId", e.ActorID,
				"resource", e.Resource,
				"risk", string(e.RiskLevel),
			)
		})))
	if err != nil {
		log.Fatalf("audit ledger init failed: %v", err)
	}

	engine := access.NewEngine(access.DefaultRoles(), ledger)
	mfaService := mfa.NewService(mfaStore, ledger, cfg.MFAIssuer)
	manager := retention.NewManager(retention.DefaultPolicies(), retention.NewPGRecordStore(pool), ledger)

	jobService := jobs.New(cfg.RetentionInterval)
	jobService.Start(ctx, func(ctx context.Context) (any, error) {
		result := manager.ExecutePurge(ctx, audit.Source{ActorID: "system", Role: "system", Origin: "scheduler"})
		collector.RecordPurgedItems(result.PurgedItems)
		return result, nil
	})

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(collector.Instrument)
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		authHandler := authhandler.NewHandler(pool, cfg.JWTSecret, cfg.SessionTokenTTL, ledger, mfaService, engine)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.AuthRatePerMinute, ledger))
			r.Post("/auth/login", authHandler.HandleLogin)
		})
		r.Post("/auth/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(engine))

			mfahandler.NewHandler(mfaService).RegisterRoutes(r)
			accesshandler.NewHandler(engine).RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authorize(engine, collector, "audit_logs", access.OpAudit))
				audithandler.NewHandler(ledger).RegisterRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authorize(engine, collector, "retention_policies", access.OpAudit))
				retentionhandler.NewHandler(manager, jobService, collector).RegisterRoutes(r)
			})
		})
	})

	slog.Info("clinicbook compliance server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
