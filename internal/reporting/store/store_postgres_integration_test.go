//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"esgledger/internal/reporting/models"
	"esgledger/internal/reporting/store"
	rollover "esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
	"esgledger/pkg/platform/sentinel"
	"esgledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	graph    *models.PeriodGraph
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateAll(ctx))

	now := time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC)
	period := &models.ReportingPeriod{
		ID:             id.NewPeriodID(),
		OrganizationID: id.OrganizationID(id.NewPeriodID()),
		Name:           "FY2024",
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Mode:           models.PeriodModeExtended,
		CreatedBy:      "admin-1",
		CreatedAt:      now,
	}
	sec := &models.ReportSection{ID: id.NewSectionID(), PeriodID: period.ID, CatalogCode: "ENV-001", Title: "Emissions", OwnerID: "owner-1"}
	dp := &models.DataPoint{
		ID:              id.NewDataPointID(),
		SectionID:       sec.ID,
		PeriodID:        period.ID,
		Title:           "Scope 1",
		Type:            "kpi",
		ReviewStatus:    models.ReviewStatusDraft,
		GapStatus:       models.GapStatusEstimated,
		Value:           "100",
		EstimateType:    models.EstimateTypeProxy,
		EstimateMethod:  "industry average",
		ConfidenceLevel: models.ConfidenceLow,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	gap := &models.Gap{ID: id.NewGapID(), SectionID: sec.ID, DataPointID: &dp.ID, Title: "No meter data"}
	plan := &models.RemediationPlan{ID: id.NewPlanID(), SectionID: sec.ID, GapID: &gap.ID, Title: "Install meters", TargetPeriod: "FY2025"}
	due := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	action := &models.RemediationAction{ID: id.NewActionID(), PlanID: plan.ID, Title: "Order meters", DueDate: &due}
	ev := &models.Evidence{ID: id.NewEvidenceID(), SectionID: sec.ID, DataPointID: &dp.ID, FileName: "invoice.pdf", StorageKey: "s3://bucket/invoice.pdf", Checksum: "abc"}
	s.graph = &models.PeriodGraph{
		Period:     period,
		Sections:   []*models.ReportSection{sec},
		DataPoints: []*models.DataPoint{dp},
		Gaps:       []*models.Gap{gap},
		Assumptions: []*models.Assumption{{
			ID: id.NewAssumptionID(), SectionID: sec.ID, DataPointIDs: []id.DataPointID{dp.ID}, Title: "Flat growth",
		}},
		Plans:    []*models.RemediationPlan{plan},
		Actions:  []*models.RemediationAction{action},
		Evidence: []*models.Evidence{ev},
	}

	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return store.WriteGraph(ctx, tx, s.graph)
	}))
}

func (s *PostgresStoreSuite) TestLoadGraphRoundTrip() {
	g, err := s.store.LoadGraph(context.Background(), s.graph.Period.ID)
	s.Require().NoError(err)

	s.Equal("FY2024", g.Period.Name)
	s.Require().Len(g.Sections, 1)
	s.Equal("ENV-001", g.Sections[0].CatalogCode)
	s.Require().Len(g.DataPoints, 1)
	s.Equal(models.GapStatusEstimated, g.DataPoints[0].GapStatus)
	s.Equal(models.EstimateTypeProxy, g.DataPoints[0].EstimateType)
	s.Require().Len(g.Gaps, 1)
	s.Equal(g.DataPoints[0].ID, *g.Gaps[0].DataPointID)
	s.Require().Len(g.Assumptions, 1)
	s.Equal([]id.DataPointID{g.DataPoints[0].ID}, g.Assumptions[0].DataPointIDs)
	s.Len(g.Plans, 1)
	s.Require().Len(g.Actions, 1)
	s.Require().NotNil(g.Actions[0].DueDate)
	s.True(g.Actions[0].DueDate.Equal(*s.graph.Actions[0].DueDate))
	s.Require().Len(g.Evidence, 1)
	s.Equal("s3://bucket/invoice.pdf", g.Evidence[0].StorageKey)

	s.Equal(s.graph.Fingerprint(), g.Fingerprint())
}

func (s *PostgresStoreSuite) TestLoadGraphNotFound() {
	_, err := s.store.LoadGraph(context.Background(), id.NewPeriodID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPeriodNameUniquePerOrganization() {
	ctx := context.Background()
	exists, err := s.store.PeriodNameExists(ctx, s.graph.Period.OrganizationID, "fy2024")
	s.Require().NoError(err)
	s.True(exists)

	dup := *s.graph.Period
	dup.ID = id.NewPeriodID()
	dup.Name = "Fy2024"
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.CreatePeriod(ctx, &dup)
	})
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestRollbackLeavesNoRows() {
	ctx := context.Background()
	next := *s.graph.Period
	next.ID = id.NewPeriodID()
	next.Name = "FY2025"
	boom := errors.New("boom")

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreatePeriod(ctx, &next); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindPeriod(ctx, next.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateDataPointOptimisticCheck() {
	ctx := context.Background()
	dp := s.graph.DataPoints[0].Clone()
	dp.GapStatus = models.GapStatusProvided
	dp.Value = "130"
	dp.PreviousEstimateSnapshot = &models.EstimateSnapshot{
		EstimateType:    models.EstimateTypeProxy,
		EstimateMethod:  "industry average",
		ConfidenceLevel: models.ConfidenceLow,
		EstimatedValue:  "100",
		CapturedAt:      time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateDataPoint(ctx, dp, models.GapStatusMissing)
	})
	s.ErrorIs(err, sentinel.ErrConflict)

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateDataPoint(ctx, dp, models.GapStatusEstimated)
	})
	s.Require().NoError(err)

	got, err := s.store.FindDataPoint(ctx, dp.ID)
	s.Require().NoError(err)
	s.Equal(models.GapStatusProvided, got.GapStatus)
	s.Require().NotNil(got.PreviousEstimateSnapshot)
	s.Equal("100", got.PreviousEstimateSnapshot.EstimatedValue)
}

func (s *PostgresStoreSuite) TestHistoryAppendOnly() {
	ctx := context.Background()
	dpID := s.graph.DataPoints[0].ID
	entries := []*models.GapStatusHistoryEntry{
		{ID: id.NewHistoryEntryID(), DataPointID: dpID, PeriodID: s.graph.Period.ID, From: models.GapStatusMissing, To: models.GapStatusEstimated, ChangedBy: "u1", ChangedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: id.NewHistoryEntryID(), DataPointID: dpID, PeriodID: s.graph.Period.ID, From: models.GapStatusEstimated, To: models.GapStatusProvided, ChangedBy: "u1", ChangedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, e := range entries {
			if err := tx.AppendHistory(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}))

	got, err := s.store.ListHistory(ctx, dpID)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(models.GapStatusEstimated, got[0].To)
	s.Equal(models.GapStatusProvided, got[1].To)
}

func (s *PostgresStoreSuite) TestValidationRulesRoundTrip() {
	ctx := context.Background()
	minV, maxV := decimal.NewFromInt(0), decimal.NewFromInt(1000)
	rule, err := models.NewNumericRangeRule("kpi", &minV, &maxV)
	s.Require().NoError(err)
	s.Require().NoError(s.store.SaveValidationRule(ctx, rule))

	rules, err := s.store.ListValidationRules(ctx, "kpi")
	s.Require().NoError(err)
	s.Require().Len(rules, 1)
	s.NoError(rules[0].Parameters.Check("999"))
	s.Error(rules[0].Parameters.Check("1001"))
}

func (s *PostgresStoreSuite) TestRolloverAuditRoundTrip() {
	ctx := context.Background()
	log := &rollover.RolloverAuditLog{
		OperationID:      id.NewOperationID(),
		SourcePeriodID:   s.graph.Period.ID,
		TargetPeriodID:   s.graph.Period.ID,
		PerformedBy:      "admin-1",
		PerformedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Options:          rollover.DefaultOptions(),
		SectionsCopied:   1,
		DataPointsCopied: 1,
	}
	rec := &rollover.RolloverReconciliation{OperationID: log.OperationID, TotalSourceSections: 1, MappedCount: 1}
	s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SaveRolloverAudit(ctx, log, rec)
	}))

	gotLog, gotRec, err := s.store.FindRolloverAudit(ctx, log.OperationID)
	s.Require().NoError(err)
	s.Equal(1, gotLog.DataPointsCopied)
	s.Equal(1, gotRec.MappedCount)
}
