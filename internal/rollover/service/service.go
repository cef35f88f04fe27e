// Package service orchestrates period rollovers: validation, locking, the
// transactional copy into a new period, and the reconciliation report.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	reporting "esgledger/internal/reporting/models"
	"esgledger/internal/reporting/store"
	"esgledger/internal/rollover/copier"
	"esgledger/internal/rollover/lock"
	"esgledger/internal/rollover/mapping"
	"esgledger/internal/rollover/metrics"
	"esgledger/internal/rollover/models"
	"esgledger/internal/rollover/ownership"
	"esgledger/internal/rollover/reconcile"
	"esgledger/internal/rollover/rules"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/platform/audit"
	"esgledger/pkg/platform/sentinel"
)

// CatalogRegistry lists the catalog items a new period is seeded from.
type CatalogRegistry interface {
	ActiveItems(ctx context.Context, orgID id.OrganizationID) ([]reporting.SectionCatalogItem, error)
}

// AuditPublisher is the fail-closed compliance sink.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

const defaultTimeout = 2 * time.Minute

type Service struct {
	store          store.Store
	catalog        CatalogRegistry
	directory      ownership.Directory
	resolver       *rules.Resolver
	locker         lock.Locker
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	now            func() time.Time
	timeout        time.Duration
	workers        int
	copier         *copier.Copier
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

// WithLocker replaces the default in-process lock, typically with a
// lock.Chain that also holds a Redis lock.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTimeout bounds a rollover when the caller's context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithWorkers bounds the per-stage copy worker pool.
func WithWorkers(n int) Option {
	return func(s *Service) {
		s.workers = n
	}
}

func New(st store.Store, catalog CatalogRegistry, dir ownership.Directory, registry rules.Registry, opts ...Option) *Service {
	s := &Service{
		store:     st,
		catalog:   catalog,
		directory: dir,
		resolver:  rules.NewResolver(registry),
		locker:    lock.NewKeyed(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("esgledger/rollover"),
		now:       time.Now,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.copier = copier.New(
		copier.WithWorkers(s.workers),
		copier.WithLogger(s.logger),
		copier.WithClock(s.now),
		copier.WithStageObserver(s.metrics.ObserveStage),
	)
	return s
}

// Execute performs one rollover. The result is all-or-nothing: on any error
// no target period exists.
func (s *Service) Execute(ctx context.Context, req models.RolloverRequest) (*models.RolloverResult, error) {
	operationID := id.NewOperationID()
	ctx, span := s.tracer.Start(ctx, "rollover.Execute", trace.WithAttributes(
		attribute.String("operation_id", operationID.String()),
		attribute.String("source_period_id", req.SourcePeriodID.String()),
	))
	defer span.End()

	start := time.Now()
	result, err := s.execute(ctx, operationID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.IncOutcome(metrics.OutcomeFailed)
		level := slog.LevelWarn
		if dErrors.GetCode(err) == dErrors.CodeInternal {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "rollover failed",
			"event", string(audit.EventRolloverFailed),
			"log_type", "audit",
			"operation_id", operationID.String(),
			"source_period_id", req.SourcePeriodID.String(),
			"target_name", req.Target.Name,
			"actor_id", req.PerformedBy.String(),
			"error", err,
		)
		return nil, err
	}

	rec := result.Reconciliation
	s.metrics.IncOutcome(metrics.OutcomeCompleted)
	s.metrics.ObserveDuration(time.Since(start))
	s.metrics.AddUnmapped(rec.UnmappedCount)
	for _, item := range rec.MappedItems {
		s.metrics.AddMapped(string(item.Method), 1)
	}
	s.metrics.AddDataPointsCopied(result.AuditLog.DataPointsCopied)
	s.metrics.AddInactiveOwners(len(result.InactiveOwnerWarnings))
	span.SetAttributes(attribute.String("target_period_id", result.TargetPeriod.ID.String()))

	s.logger.InfoContext(ctx, "rollover completed",
		"event", string(audit.EventRolloverCompleted),
		"log_type", "audit",
		"operation_id", operationID.String(),
		"source_period_id", req.SourcePeriodID.String(),
		"target_period_id", result.TargetPeriod.ID.String(),
		"actor_id", req.PerformedBy.String(),
		"mapped", rec.MappedCount,
		"unmapped", rec.UnmappedCount,
		"data_points_copied", result.AuditLog.DataPointsCopied,
		"inactive_owner_warnings", len(result.InactiveOwnerWarnings),
	)
	return result, nil
}

// source is the pre-transaction context shared by Execute and Preview.
type source struct {
	graph   *reporting.PeriodGraph
	catalog []reporting.SectionCatalogItem
	rules   *rules.Plan
	counts  map[id.SectionID]int
}

func (s *Service) execute(ctx context.Context, operationID id.OperationID, req models.RolloverRequest) (*models.RolloverResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.PerformedBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "performed by is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	release, err := s.locker.Acquire(ctx, req.SourcePeriodID.String())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncLockRejected()
		}
		return nil, err
	}
	defer release()

	src, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}
	if missing := mapping.MissingManualTargets(req.ManualMappings, catalogCodes(src.catalog)); len(missing) > 0 {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"manual mapping target codes not in the active catalog: %s", strings.Join(missing, ", "))
	}
	mode, err := targetMode(req.Target, src.graph.Period)
	if err != nil {
		return nil, err
	}
	scope := req.Target.Scope
	if strings.TrimSpace(scope) == "" {
		scope = src.graph.Period.Scope
	}

	now := s.now().UTC()
	snapshotHash := src.graph.Fingerprint()
	owners := ownership.NewValidator(s.directory)

	var result *models.RolloverResult
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		target, err := reporting.NewReportingPeriod(id.NewPeriodID(), src.graph.Period.OrganizationID,
			req.Target.Name, req.Target.StartDate, req.Target.EndDate, mode, scope, req.PerformedBy, now)
		if err != nil {
			return err
		}
		sourceID := req.SourcePeriodID
		target.SourcePeriodID = &sourceID
		if err := tx.CreatePeriod(ctx, target); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.Newf(dErrors.CodeValidation, "a period named %q already exists", target.Name)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create target period")
		}

		sections := seedSections(target, src.catalog)
		for _, sec := range sections {
			if err := tx.CreateSection(ctx, sec); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed target section")
			}
		}

		mapped := mapping.Map(mapping.Input{
			Sources:         src.graph.Sections,
			Targets:         sections,
			Manual:          req.ManualMappings,
			DataPointCounts: src.counts,
		})
		out, err := s.copier.Copy(ctx, tx, copier.Input{
			Source:      src.graph,
			Target:      target,
			Pairs:       mapped.Pairs,
			Options:     req.Options,
			Rules:       src.rules,
			PerformedBy: req.PerformedBy,
			Owners:      owners,
		})
		if err != nil {
			return err
		}

		rec := reconcile.Report(operationID, len(src.graph.Sections), mapped, out, src.counts)
		auditLog := reconcile.AuditLog(reconcile.AuditInput{
			OperationID:    operationID,
			SourcePeriodID: req.SourcePeriodID,
			Target:         target,
			PerformedBy:    req.PerformedBy,
			PerformedAt:    now,
			Options:        req.Options,
			Overrides:      req.RuleOverrides,
			SnapshotHash:   snapshotHash,
		}, out)
		if err := tx.SaveRolloverAudit(ctx, auditLog, rec); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save rollover audit log")
		}

		warnings := owners.Warnings()
		if err := s.emit(ctx, auditLog, rec, len(warnings)); err != nil {
			return err
		}
		result = &models.RolloverResult{
			Success:               true,
			TargetPeriod:          target,
			AuditLog:              auditLog,
			Reconciliation:        rec,
			InactiveOwnerWarnings: warnings,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Preview reports what Execute would map and which rules apply, without
// writing. Unknown manual targets are reported as unmapped instead of failing.
func (s *Service) Preview(ctx context.Context, req models.RolloverRequest) (*models.PreviewResult, error) {
	ctx, span := s.tracer.Start(ctx, "rollover.Preview", trace.WithAttributes(
		attribute.String("source_period_id", req.SourcePeriodID.String()),
	))
	defer span.End()

	if err := validateRequest(req); err != nil {
		span.RecordError(err)
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	src, err := s.load(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	draft := &reporting.ReportingPeriod{ID: id.NewPeriodID(), OrganizationID: src.graph.Period.OrganizationID}
	mapped := mapping.Map(mapping.Input{
		Sources:         src.graph.Sections,
		Targets:         seedSections(draft, src.catalog),
		Manual:          req.ManualMappings,
		DataPointCounts: src.counts,
	})
	operationID := id.NewOperationID()
	rec := reconcile.Report(operationID, len(src.graph.Sections), mapped, nil, src.counts)

	s.metrics.IncOutcome(metrics.OutcomePreviewed)
	s.logger.InfoContext(ctx, "rollover previewed",
		"event", string(audit.EventRolloverPreviewed),
		"operation_id", operationID.String(),
		"source_period_id", req.SourcePeriodID.String(),
		"actor_id", req.PerformedBy.String(),
		"mapped", rec.MappedCount,
		"unmapped", rec.UnmappedCount,
	)
	return &models.PreviewResult{
		SourcePeriodID:     req.SourcePeriodID,
		Reconciliation:     rec,
		Rules:              src.rules.Rules(),
		SourceSnapshotHash: src.graph.Fingerprint(),
	}, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// load reads the source graph, checks the target name, loads the catalog and
// resolves the rule plan.
func (s *Service) load(ctx context.Context, req models.RolloverRequest) (*source, error) {
	graph, err := s.store.LoadGraph(ctx, req.SourcePeriodID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "source period not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load source period")
	}
	orgID := graph.Period.OrganizationID

	exists, err := s.store.PeriodNameExists(ctx, orgID, strings.TrimSpace(req.Target.Name))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check period name")
	}
	if exists {
		return nil, dErrors.Newf(dErrors.CodeValidation, "a period named %q already exists", strings.TrimSpace(req.Target.Name))
	}

	items, err := s.catalog.ActiveItems(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load section catalog")
	}
	plan, err := s.resolver.ResolveAll(ctx, graph.DataTypes(), req.RuleOverrides)
	if err != nil {
		return nil, err
	}
	return &source{
		graph:   graph,
		catalog: items,
		rules:   plan,
		counts:  reconcile.DataPointCounts(graph),
	}, nil
}

func (s *Service) emit(ctx context.Context, log *models.RolloverAuditLog, rec *models.RolloverReconciliation, warnings int) error {
	if s.auditPublisher == nil {
		return nil
	}
	err := s.auditPublisher.Emit(ctx, audit.ComplianceEvent{
		Timestamp:   log.PerformedAt,
		ActorID:     log.PerformedBy,
		Action:      audit.EventRolloverCompleted,
		EntityType:  "reporting_period",
		EntityID:    log.TargetPeriodID.String(),
		PeriodID:    log.SourcePeriodID.String(),
		OperationID: log.OperationID.String(),
		Details:     reconcile.Details(log, rec, warnings),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record rollover audit event")
	}
	return nil
}

func validateRequest(req models.RolloverRequest) error {
	if req.SourcePeriodID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "source period id is required")
	}
	if err := req.Options.Validate(); err != nil {
		return err
	}
	if err := req.Target.Validate(); err != nil {
		return err
	}
	if err := models.ValidateOverrides(req.RuleOverrides); err != nil {
		return err
	}
	return models.ValidateManualMappings(req.ManualMappings)
}

func targetMode(spec models.TargetPeriodSpec, sourcePeriod *reporting.ReportingPeriod) (reporting.PeriodMode, error) {
	if strings.TrimSpace(spec.Mode) == "" {
		return sourcePeriod.Mode, nil
	}
	return reporting.ParsePeriodMode(spec.Mode)
}

// seedSections creates one target section per catalog item, in catalog order.
func seedSections(target *reporting.ReportingPeriod, items []reporting.SectionCatalogItem) []*reporting.ReportSection {
	sorted := make([]reporting.SectionCatalogItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	sections := make([]*reporting.ReportSection, 0, len(sorted))
	for _, item := range sorted {
		itemID := item.ID
		sections = append(sections, &reporting.ReportSection{
			ID:            id.NewSectionID(),
			PeriodID:      target.ID,
			CatalogItemID: &itemID,
			CatalogCode:   item.Code,
			Title:         item.Title,
			Description:   item.Description,
			Order:         item.Order,
		})
	}
	return sections
}

func catalogCodes(items []reporting.SectionCatalogItem) map[string]bool {
	codes := make(map[string]bool, len(items))
	for _, item := range items {
		codes[item.Code] = true
	}
	return codes
}
