//go:build integration

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"esgledger/internal/catalog"
	"esgledger/internal/directory"
	reporting "esgledger/internal/reporting/models"
	"esgledger/internal/reporting/store"
	"esgledger/internal/rollover/lock"
	"esgledger/internal/rollover/metrics"
	"esgledger/internal/rollover/models"
	"esgledger/internal/rollover/rules"
	"esgledger/internal/rollover/service"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/platform/audit/publishers/compliance"
	auditpostgres "esgledger/pkg/platform/audit/store/postgres"
	"esgledger/pkg/testutil/containers"
)

type PostgresRolloverSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	audit    *auditpostgres.Store
	svc      *service.Service
	catalog  *catalog.PostgresRegistry
	dir      *directory.PostgresDirectory
	registry *rules.PostgresRegistry

	source *reporting.ReportingPeriod
	kpi    *reporting.DataPoint
}

func TestPostgresRolloverSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRolloverSuite))
}

func (s *PostgresRolloverSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresRolloverSuite) SetupTest() {
	ctx := context.Background()
	db := s.postgres.DB
	s.Require().NoError(s.postgres.TruncateAll(ctx))

	s.store = store.NewPostgres(db)
	s.audit = auditpostgres.New(db)
	s.catalog = catalog.NewPostgres(db)
	s.dir = directory.NewPostgres(db)
	s.registry = rules.NewPostgresRegistry(db)

	orgID := id.OrganizationID(id.NewPeriodID())
	for i, code := range []string{"ENV-001", "SOC-002"} {
		s.Require().NoError(s.catalog.Put(ctx, reporting.SectionCatalogItem{
			ID: id.CatalogItemID(id.NewSectionID()), OrganizationID: orgID, Code: code, Title: code, Order: i + 1, Active: true,
		}))
	}
	for _, u := range []directory.User{{ID: "U1", Name: "Una One", Active: false}, {ID: "admin-1", Name: "Admin", Active: true}} {
		s.Require().NoError(s.dir.Upsert(ctx, u))
	}
	_, err := s.registry.Publish(ctx, &models.DataTypeRolloverRule{DataType: "kpi", RuleType: models.RuleReset, CreatedBy: "admin-1"})
	s.Require().NoError(err)

	now := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	s.source = &reporting.ReportingPeriod{
		ID:             id.NewPeriodID(),
		OrganizationID: orgID,
		Name:           "FY2024",
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        now,
		Mode:           reporting.PeriodModeSimplified,
		CreatedBy:      "admin-1",
		CreatedAt:      now,
	}
	env := &reporting.ReportSection{ID: id.NewSectionID(), PeriodID: s.source.ID, CatalogCode: "ENV-001", Title: "Emissions", OwnerID: "U1", Order: 1}
	adhoc := &reporting.ReportSection{ID: id.NewSectionID(), PeriodID: s.source.ID, Title: "Ad-hoc", Order: 2}
	s.kpi = &reporting.DataPoint{
		ID: id.NewDataPointID(), SectionID: env.ID, PeriodID: s.source.ID, Title: "Scope 1", Type: "kpi", Value: "120",
		ReviewStatus: reporting.ReviewStatusApproved, GapStatus: reporting.GapStatusProvided, CreatedAt: now, UpdatedAt: now,
	}
	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return store.WriteGraph(ctx, tx, &reporting.PeriodGraph{
			Period:     s.source,
			Sections:   []*reporting.ReportSection{env, adhoc},
			DataPoints: []*reporting.DataPoint{s.kpi},
		})
	}))

	s.svc = service.New(s.store, s.catalog, s.dir, s.registry,
		service.WithMetrics(metrics.New(prometheus.NewRegistry())),
		service.WithAuditPublisher(compliance.New(s.audit)),
	)
}

func (s *PostgresRolloverSuite) request(name string) models.RolloverRequest {
	return models.RolloverRequest{
		SourcePeriodID: s.source.ID,
		Target: models.TargetPeriodSpec{
			Name:      name,
			StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		Options:     models.DefaultOptions(),
		PerformedBy: "admin-1",
	}
}

func (s *PostgresRolloverSuite) TestRolloverCommitsEverything() {
	ctx := context.Background()
	result, err := s.svc.Execute(ctx, s.request("FY2025"))
	s.Require().NoError(err)
	s.True(result.Success)

	rec := result.Reconciliation
	s.Equal(2, rec.TotalSourceSections)
	s.Equal(1, rec.MappedCount)
	s.Equal(1, rec.UnmappedCount)
	s.Require().Len(rec.UnmappedItems, 1)
	s.Equal(models.ReasonNoStableIdentifier, rec.UnmappedItems[0].Reason)
	s.Require().Len(result.InactiveOwnerWarnings, 1)
	s.Equal(id.UserID("U1"), result.InactiveOwnerWarnings[0].OwnerID)

	target, err := s.store.LoadGraph(ctx, result.TargetPeriod.ID)
	s.Require().NoError(err)
	s.Require().NotNil(target.Period.SourcePeriodID)
	s.Equal(s.source.ID, *target.Period.SourcePeriodID)
	s.Len(target.Sections, 2, "one section per active catalog item")
	s.Require().Len(target.DataPoints, 1)

	dp := target.DataPoints[0]
	s.Equal(reporting.GapStatusMissing, dp.GapStatus, "kpi rule resets the value")
	s.Empty(dp.Value)
	s.Require().NotNil(dp.SourceDataPointID)
	s.Equal(s.kpi.ID, *dp.SourceDataPointID)

	history, err := s.store.ListHistory(ctx, dp.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(reporting.GapStatusProvided, history[0].From)

	log, _, err := s.store.FindRolloverAudit(ctx, result.AuditLog.OperationID)
	s.Require().NoError(err)
	s.Equal(1, log.DataPointsCopied)

	events, err := s.audit.ListByOperation(ctx, result.AuditLog.OperationID.String())
	s.Require().NoError(err)
	s.Len(events, 1)

	source, err := s.store.FindDataPoint(ctx, s.kpi.ID)
	s.Require().NoError(err)
	s.Equal("120", source.Value, "the source period is never rewritten")
}

func (s *PostgresRolloverSuite) TestDuplicateNameRejected() {
	ctx := context.Background()
	_, err := s.svc.Execute(ctx, s.request("FY2025"))
	s.Require().NoError(err)

	_, err = s.svc.Execute(ctx, s.request("fy2025"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	var periods int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx, `SELECT count(*) FROM reporting_periods`).Scan(&periods))
	s.Equal(2, periods)
}

func (s *PostgresRolloverSuite) instance() *service.Service {
	return service.New(s.store, s.catalog, s.dir, s.registry,
		service.WithMetrics(metrics.New(prometheus.NewRegistry())),
		service.WithAuditPublisher(compliance.New(s.audit)),
		service.WithLocker(lock.Chain(lock.NewKeyed(), lock.NewPostgres(s.postgres.DB))),
	)
}

func (s *PostgresRolloverSuite) TestSourceLockSpansInstances() {
	ctx := context.Background()
	other := lock.Chain(lock.NewKeyed(), lock.NewPostgres(s.postgres.DB))
	release, err := other.Acquire(ctx, s.source.ID.String())
	s.Require().NoError(err)

	_, err = s.instance().Execute(ctx, s.request("FY2025"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	exists, err := s.store.PeriodNameExists(ctx, s.source.OrganizationID, "FY2025")
	s.Require().NoError(err)
	s.False(exists, "no target period while another instance holds the source")

	release()
	result, err := s.instance().Execute(ctx, s.request("FY2025-B"))
	s.Require().NoError(err)
	s.True(result.Success)
}
