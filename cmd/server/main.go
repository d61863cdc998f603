// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"dilldrill/internal/admission"
	"dilldrill/internal/admission/models"
	"dilldrill/internal/admission/policy"
	"dilldrill/internal/admission/store/quota"
	"dilldrill/internal/catalog"
	"dilldrill/internal/entitlement"
	"dilldrill/internal/friction"
	"dilldrill/internal/platform/config"
	"dilldrill/internal/platform/httpserver"
	"dilldrill/internal/platform/logger"
	"dilldrill/internal/platform/metrics"
	platformredis "dilldrill/internal/platform/redis"
	"dilldrill/internal/spatial"
	httptransport "dilldrill/internal/transport/http"
	"dilldrill/pkg/platform/audit"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Env)
	m := metrics.New()

	// Catalog. The database wins over the file when both are configured;
	// no catalog at all is fatal, there is nothing to serve.
	cat, err := loadCatalog(cfg)
	if err != nil {
		log.Error("catalog load failed", "error", err)
		os.Exit(1)
	}
	log.Info("catalog loaded", "pois", cat.Len())

	// Audit sink. Without brokers events are dropped; decisions are still
	// visible through logs and metrics.
	var auditor audit.Publisher = audit.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := audit.NewKafka(cfg.KafkaBrokers, cfg.AuditTopic, audit.WithLogger(log))
		if err != nil {
			log.Error("kafka publisher init failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kafka.Close(flushCtx)
		}()
		auditor = kafka
	}

	// Quota store. A failed Redis ping is not fatal: the failover store
	// starts degraded and the recovery probe picks the primary up later.
	var primary quota.Primary
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable at startup", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		primary, err = quota.NewRedisStore(redisClient)
		if err != nil {
			log.Error("redis store init failed", "error", err)
			os.Exit(1)
		}
	}
	store, err := quota.NewFailoverStore(primary, quota.NewMemoryStore(),
		quota.WithLogger(log),
		quota.WithMetrics(m),
		quota.WithAudit(auditor),
		quota.WithPrimaryTimeout(cfg.PrimaryTimeout),
	)
	if err != nil {
		log.Error("quota store init failed", "error", err)
		os.Exit(1)
	}

	limits := map[models.Tier]config.TierLimits{
		models.TierFree: cfg.FreeTier,
		models.TierPaid: cfg.PaidTier,
	}
	engine, err := policy.NewEngine(store, limits, policy.WithLogger(log), policy.WithMetrics(m))
	if err != nil {
		log.Error("policy engine init failed", "error", err)
		os.Exit(1)
	}

	service, err := admission.NewService(engine,
		spatial.NewIndex(cat),
		spatial.NewSelector(cfg.MinSeparationM),
		cfg.SearchRadiusM,
		admission.WithLogger(log),
		admission.WithMetrics(m),
		admission.WithAudit(auditor),
	)
	if err != nil {
		log.Error("admission service init failed", "error", err)
		os.Exit(1)
	}

	verifier := friction.NewTurnstile(cfg.TurnstileSecret, cfg.Env, friction.WithLogger(log))
	identity := httptransport.NewIdentityMiddleware(entitlement.NewService(), cfg.OverrideSigningKey, cfg.Env, log)
	handler := httptransport.NewHandler(service, verifier, cat, cfg.BBox, cfg.Env, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, identity))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting dilldrill", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := store.RunRecoveryProbe(gctx, cfg.ProbeInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return catalog.LoadPostgres(ctx, cfg.DatabaseURL)
	}
	return catalog.LoadFile(cfg.CatalogPath)
}
