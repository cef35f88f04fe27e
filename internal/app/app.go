// Package app assembles the services shared by the API server and the
// operator CLI from a single config.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"esgledger/internal/catalog"
	"esgledger/internal/directory"
	"esgledger/internal/gapstatus"
	"esgledger/internal/platform/config"
	"esgledger/internal/platform/database"
	"esgledger/internal/platform/redis"
	"esgledger/internal/reporting/store"
	"esgledger/internal/rollover/lock"
	rollovermetrics "esgledger/internal/rollover/metrics"
	"esgledger/internal/rollover/ownership"
	"esgledger/internal/rollover/rules"
	"esgledger/internal/rollover/service"
	"esgledger/pkg/platform/audit"
	"esgledger/pkg/platform/audit/publishers/compliance"
	auditmemory "esgledger/pkg/platform/audit/store/memory"
	auditpostgres "esgledger/pkg/platform/audit/store/postgres"
)

// App holds the wired collaborators. DB and Redis are nil when not configured.
type App struct {
	DB        *sql.DB
	Redis     *redis.Client
	Store     store.Store
	Rules     rules.Registry
	Catalog   service.CatalogRegistry
	Directory ownership.Directory
	Audit     audit.Store
	Rollover  *service.Service
	GapStatus *gapstatus.Service
	Registry  *prometheus.Registry
}

// New opens the configured backends and wires the services. Without a
// DatabaseURL every collaborator runs in memory.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger) (*App, error) {
	a := &App{Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.DatabaseURL != "" {
		db, err := database.Open(ctx, cfg.DatabaseURL, database.Options{MaxOpenConns: 20, MaxIdleConns: 5})
		if err != nil {
			return nil, err
		}
		a.DB = db
		a.Store = store.NewPostgres(db)
		a.Rules = rules.NewPostgresRegistry(db)
		a.Catalog = catalog.NewPostgres(db)
		a.Directory = directory.NewPostgres(db)
		a.Audit = auditpostgres.New(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		a.Store = store.NewInMemoryStore()
		a.Rules = rules.NewInMemoryRegistry()
		a.Catalog = catalog.NewInMemoryRegistry()
		a.Directory = directory.NewInMemoryDirectory()
		a.Audit = auditmemory.NewInMemoryStore()
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.Redis = redisClient

	lockers := []lock.Locker{lock.NewKeyed()}
	if a.DB != nil {
		lockers = append(lockers, lock.NewPostgres(a.DB, lock.WithPostgresLogger(logger)))
	}
	if redisClient != nil {
		lockers = append(lockers, lock.NewRedis(redisClient.Client,
			lock.WithTTL(cfg.Rollover.LockTTL),
			lock.WithLogger(logger),
		))
	}
	locker := lock.Chain(lockers...)

	publisher := compliance.New(a.Audit,
		compliance.WithLogger(logger),
		compliance.WithMetrics(compliance.NewMetrics(a.Registry)),
	)

	a.Rollover = service.New(a.Store, a.Catalog, a.Directory, a.Rules,
		service.WithLogger(logger),
		service.WithMetrics(rollovermetrics.New(a.Registry)),
		service.WithAuditPublisher(publisher),
		service.WithLocker(locker),
		service.WithTimeout(cfg.Rollover.Timeout),
		service.WithWorkers(cfg.Rollover.Workers),
	)
	a.GapStatus = gapstatus.New(a.Store,
		gapstatus.WithLogger(logger),
		gapstatus.WithMetrics(gapstatus.NewMetrics(a.Registry)),
		gapstatus.WithAuditPublisher(publisher),
		gapstatus.WithRequireEvidenceForDirectVerification(cfg.GapStatus.RequireEvidenceForDirectVerification),
	)
	return a, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
