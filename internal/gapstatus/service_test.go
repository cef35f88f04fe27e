package gapstatus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"esgledger/internal/reporting/models"
	"esgledger/internal/reporting/store"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/platform/audit"
	"esgledger/pkg/platform/audit/publishers/compliance"
	auditmemory "esgledger/pkg/platform/audit/store/memory"
	"esgledger/pkg/platform/sentinel"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemoryStore
	auditLog *auditmemory.InMemoryStore
	metrics  *Metrics
	service  *Service
	period   *models.ReportingPeriod
	section  *models.ReportSection
	missing  *models.DataPoint
	estimate *models.DataPoint
	evidence *models.Evidence
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemoryStore()
	s.auditLog = auditmemory.NewInMemoryStore()
	s.metrics = NewMetrics(prometheus.NewRegistry())

	s.period = &models.ReportingPeriod{ID: id.NewPeriodID(), OrganizationID: id.OrganizationID(id.NewPeriodID()), Name: "FY2024", Mode: models.PeriodModeSimplified}
	s.section = &models.ReportSection{ID: id.NewSectionID(), PeriodID: s.period.ID, CatalogCode: "ENV-001", Title: "Emissions"}
	s.missing = &models.DataPoint{ID: id.NewDataPointID(), SectionID: s.section.ID, PeriodID: s.period.ID, Title: "Scope 1", Type: "kpi", GapStatus: models.GapStatusMissing}
	s.estimate = &models.DataPoint{
		ID:              id.NewDataPointID(),
		SectionID:       s.section.ID,
		PeriodID:        s.period.ID,
		Title:           "Scope 2",
		Type:            "kpi",
		Value:           "300",
		GapStatus:       models.GapStatusEstimated,
		EstimateType:    models.EstimateTypePoint,
		EstimateMethod:  "supplier invoices",
		ConfidenceLevel: models.ConfidenceHigh,
	}
	s.evidence = &models.Evidence{ID: id.NewEvidenceID(), SectionID: s.section.ID, FileName: "meter.pdf", StorageKey: "evidence/meter.pdf"}
	s.Require().NoError(s.store.Seed(s.ctx, &models.PeriodGraph{
		Period:     s.period,
		Sections:   []*models.ReportSection{s.section},
		DataPoints: []*models.DataPoint{s.missing, s.estimate},
		Evidence:   []*models.Evidence{s.evidence},
	}))

	s.service = s.newService()
}

func (s *ServiceSuite) newService(opts ...Option) *Service {
	base := []Option{
		WithMetrics(s.metrics),
		WithAuditPublisher(compliance.New(s.auditLog)),
		WithClock(func() time.Time { return fixedNow }),
	}
	return New(s.store, append(base, opts...)...)
}

func (s *ServiceSuite) history(dpID id.DataPointID) []*models.GapStatusHistoryEntry {
	entries, err := s.service.History(s.ctx, dpID)
	s.Require().NoError(err)
	return entries
}

func (s *ServiceSuite) TestMissingConfidenceLevelIsRejectedWithoutHistory() {
	_, err := s.service.Transition(s.ctx, TransitionRequest{
		DataPointID:  s.missing.ID,
		ExpectedFrom: models.GapStatusMissing,
		Change: Change{
			Target: models.GapStatusEstimated,
			Actor:  "u-1",
			Estimate: &EstimateFields{
				EstimateType:   models.EstimateTypeExtrapolated,
				EstimateMethod: "prior year",
			},
		},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Empty(s.history(s.missing.ID))
	dp, err := s.store.FindDataPoint(s.ctx, s.missing.ID)
	s.Require().NoError(err)
	s.Equal(models.GapStatusMissing, dp.GapStatus)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Rejections.WithLabelValues(string(dErrors.CodeValidation))))
}

func (s *ServiceSuite) TestInvalidTransitionAddsNoHistory() {
	_, err := s.service.Transition(s.ctx, TransitionRequest{
		DataPointID:  s.estimate.ID,
		ExpectedFrom: models.GapStatusEstimated,
		Change:       Change{Target: models.GapStatusEstimated, Actor: "u-1", Estimate: &EstimateFields{EstimateType: models.EstimateTypePoint, EstimateMethod: "x", ConfidenceLevel: models.ConfidenceLow}},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	s.Empty(s.history(s.estimate.ID))

	events, err := s.auditLog.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *ServiceSuite) TestEstimatedToProvidedRecordsHistoryAndAudit() {
	dp, err := s.service.Transition(s.ctx, TransitionRequest{
		DataPointID:  s.estimate.ID,
		ExpectedFrom: models.GapStatusEstimated,
		Change:       Change{Target: models.GapStatusProvided, Actor: "u-2", Value: "310"},
	})
	s.Require().NoError(err)
	s.Equal(models.GapStatusProvided, dp.GapStatus)
	s.Equal("310", dp.Value)
	s.Require().NotNil(dp.PreviousEstimateSnapshot)
	s.Equal("300", dp.PreviousEstimateSnapshot.EstimatedValue)
	s.Equal(models.ConfidenceHigh, dp.PreviousEstimateSnapshot.ConfidenceLevel)

	stored, err := s.store.FindDataPoint(s.ctx, s.estimate.ID)
	s.Require().NoError(err)
	s.Equal(dp, stored)

	entries := s.history(s.estimate.ID)
	s.Require().Len(entries, 1)
	s.Equal(models.GapStatusEstimated, entries[0].From)
	s.Equal(models.GapStatusProvided, entries[0].To)
	s.Equal(id.UserID("u-2"), entries[0].ChangedBy)

	events, err := s.auditLog.ListByEntity(s.ctx, "data_point", s.estimate.ID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventGapStatusTransitioned), events[0].Action)
	s.Equal(s.period.ID.String(), events[0].PeriodID)
	s.Equal("estimated", events[0].Details["from"])
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Transitions.WithLabelValues("estimated", "provided")))
}

func (s *ServiceSuite) TestStaleExpectedStatusConflicts() {
	_, err := s.service.Transition(s.ctx, TransitionRequest{
		DataPointID:  s.estimate.ID,
		ExpectedFrom: models.GapStatusMissing,
		Change:       Change{Target: models.GapStatusProvided, Actor: "u-1", Value: "1"},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Empty(s.history(s.estimate.ID))
}

func (s *ServiceSuite) TestLockedPeriodRejectsTransition() {
	locked := &models.ReportingPeriod{ID: id.NewPeriodID(), OrganizationID: s.period.OrganizationID, Name: "FY2023", Mode: models.PeriodModeSimplified, Locked: true}
	sec := &models.ReportSection{ID: id.NewSectionID(), PeriodID: locked.ID, CatalogCode: "ENV-001", Title: "Emissions"}
	dp := &models.DataPoint{ID: id.NewDataPointID(), SectionID: sec.ID, PeriodID: locked.ID, Title: "Scope 1", Type: "kpi", GapStatus: models.GapStatusMissing}
	s.Require().NoError(s.store.Seed(s.ctx, &models.PeriodGraph{
		Period:     locked,
		Sections:   []*models.ReportSection{sec},
		DataPoints: []*models.DataPoint{dp},
	}))

	_, err := s.service.Transition(s.ctx, TransitionRequest{
		DataPointID:  dp.ID,
		ExpectedFrom: models.GapStatusMissing,
		Change:       Change{Target: models.GapStatusProvided, Actor: "u-1", Value: "999"},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	s.ErrorIs(err, sentinel.ErrLocked)

	stored, err := s.store.FindDataPoint(s.ctx, dp.ID)
	s.Require().NoError(err)
	s.Empty(stored.Value)
	s.Equal(models.GapStatusMissing, stored.GapStatus)
	s.Empty(s.history(dp.ID))

	events, err := s.auditLog.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *ServiceSuite) TestUnknownDataPoint() {
	_, err := s.service.Transition(s.ctx, TransitionRequest{
		DataPointID:  id.NewDataPointID(),
		ExpectedFrom: models.GapStatusMissing,
		Change:       Change{Target: models.GapStatusProvided, Actor: "u-1", Value: "1"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.History(s.ctx, id.NewDataPointID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestValueIsCheckedAgainstValidationRules() {
	rule, err := models.NewAllowedValuesRule("kpi", []string{"10", "20"})
	s.Require().NoError(err)
	s.store.AddValidationRule(rule)

	_, err = s.service.Transition(s.ctx, TransitionRequest{
		DataPointID:  s.missing.ID,
		ExpectedFrom: models.GapStatusMissing,
		Change:       Change{Target: models.GapStatusProvided, Actor: "u-1", Value: "15"},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Empty(s.history(s.missing.ID))

	_, err = s.service.Transition(s.ctx, TransitionRequest{
		DataPointID:  s.missing.ID,
		ExpectedFrom: models.GapStatusMissing,
		Change:       Change{Target: models.GapStatusProvided, Actor: "u-1", Value: "20"},
	})
	s.Require().NoError(err)
	s.Len(s.history(s.missing.ID), 1)
}

func (s *ServiceSuite) TestDirectVerificationEvidence() {
	svc := s.newService(WithRequireEvidenceForDirectVerification(true))
	req := TransitionRequest{
		DataPointID:  s.missing.ID,
		ExpectedFrom: models.GapStatusMissing,
		Change:       Change{Target: models.GapStatusProvided, Actor: "u-1", Value: "42"},
	}

	_, err := svc.Transition(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	unknown := id.NewEvidenceID()
	req.EvidenceID = &unknown
	_, err = svc.Transition(s.ctx, req)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	req.EvidenceID = &s.evidence.ID
	dp, err := svc.Transition(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(models.GapStatusProvided, dp.GapStatus)
}

func (s *ServiceSuite) TestConcurrentTransitionsOnOneDataPoint() {
	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Transition(s.ctx, TransitionRequest{
				DataPointID:  s.missing.ID,
				ExpectedFrom: models.GapStatusMissing,
				Change:       Change{Target: models.GapStatusProvided, Actor: "u-1", Value: "7"},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	s.Equal(workers-1, conflicts)
	s.Len(s.history(s.missing.ID), 1)
}
