// Package gapstatus executes gap-status transitions on individual data points
// and records their immutable history.
package gapstatus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"esgledger/internal/reporting/models"
	"esgledger/internal/reporting/store"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/platform/audit"
	"esgledger/pkg/platform/sentinel"
)

// AuditPublisher is the fail-closed compliance sink.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// TransitionRequest is a direct transition call. ExpectedFrom is the status
// the caller last observed.
type TransitionRequest struct {
	DataPointID  id.DataPointID
	ExpectedFrom models.GapStatus
	Change
}

// numShards bounds the per-data-point mutexes that serialize transitions
// within one process.
const numShards = 128

type Service struct {
	store           store.Store
	auditPublisher  AuditPublisher
	logger          *slog.Logger
	metrics         *Metrics
	tracer          trace.Tracer
	now             func() time.Time
	requireEvidence bool
	shards          [numShards]sync.Mutex
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRequireEvidenceForDirectVerification makes missing -> provided require
// an evidence reference attached to the data point or its section.
func WithRequireEvidenceForDirectVerification(required bool) Option {
	return func(s *Service) {
		s.requireEvidence = required
	}
}

func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: slog.Default(),
		tracer: otel.Tracer("esgledger/gapstatus"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transition validates and executes one transition. The data point update,
// the history entry and the compliance event commit together.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*models.DataPoint, error) {
	ctx, span := s.tracer.Start(ctx, "gapstatus.Transition", trace.WithAttributes(
		attribute.String("data_point_id", req.DataPointID.String()),
		attribute.String("target", req.Target.String()),
	))
	defer span.End()

	start := time.Now()
	dp, err := s.transition(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.IncRejected(string(dErrors.GetCode(err)))
		s.logger.InfoContext(ctx, "gap status transition rejected",
			"event", "gap_status_transition_rejected",
			"data_point_id", req.DataPointID.String(),
			"expected_from", req.ExpectedFrom,
			"target", req.Target,
			"actor_id", req.Actor.String(),
			"error", err,
		)
		return nil, err
	}

	s.metrics.IncTransition(string(req.ExpectedFrom), string(req.Target))
	s.metrics.ObserveDuration(time.Since(start))
	s.logger.InfoContext(ctx, "gap status transitioned",
		"event", string(audit.EventGapStatusTransitioned),
		"log_type", "audit",
		"data_point_id", dp.ID.String(),
		"period_id", dp.PeriodID.String(),
		"from", req.ExpectedFrom,
		"to", dp.GapStatus,
		"actor_id", req.Actor.String(),
	)
	return dp, nil
}

func (s *Service) transition(ctx context.Context, req TransitionRequest) (*models.DataPoint, error) {
	if req.DataPointID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "data point id is required")
	}
	if req.Actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "transitioned by is required")
	}
	if !req.ExpectedFrom.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "invalid expected status %q", req.ExpectedFrom)
	}
	if !req.Target.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "invalid target status %q", req.Target)
	}

	shard := &s.shards[shardFor(req.DataPointID.String())]
	shard.Lock()
	defer shard.Unlock()

	var result *models.DataPoint
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.FindDataPoint(ctx, req.DataPointID)
		if err != nil {
			return wrapStoreErr(err, "data point")
		}
		period, err := tx.FindPeriod(ctx, current.PeriodID)
		if err != nil {
			return wrapStoreErr(err, "reporting period")
		}
		if period.Locked {
			return dErrors.Wrap(sentinel.ErrLocked, dErrors.CodeInvariantViolation,
				"reporting period "+period.Name+" is locked")
		}
		if current.GapStatus != req.ExpectedFrom {
			return dErrors.Newf(dErrors.CodeConflict,
				"data point status is %s, expected %s", current.GapStatus, req.ExpectedFrom)
		}

		next, entry, err := Apply(current, req.Change, s.now())
		if err != nil {
			return err
		}
		if next.Value != "" && next.Value != current.Value {
			rules, err := tx.ListValidationRules(ctx, current.Type)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load validation rules")
			}
			if err := models.ValidateValue(rules, current.Type, next.Value); err != nil {
				return err
			}
		}
		if s.requireEvidence && current.GapStatus == models.GapStatusMissing && req.Target == models.GapStatusProvided {
			if err := s.checkEvidence(ctx, tx, current, req.EvidenceID); err != nil {
				return err
			}
		}

		if err := tx.UpdateDataPoint(ctx, next, current.GapStatus); err != nil {
			return wrapStoreErr(err, "data point")
		}
		if err := tx.AppendHistory(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append gap status history")
		}
		if err := s.emit(ctx, entry); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) checkEvidence(ctx context.Context, tx store.Tx, dp *models.DataPoint, evidenceID *id.EvidenceID) error {
	if evidenceID == nil || evidenceID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "evidence reference is required for direct verification")
	}
	ev, err := tx.FindEvidence(ctx, *evidenceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "evidence reference not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load evidence")
	}
	if ev.SectionID != dp.SectionID || (ev.DataPointID != nil && *ev.DataPointID != dp.ID) {
		return dErrors.New(dErrors.CodeValidation, "evidence does not belong to this data point")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, entry *models.GapStatusHistoryEntry) error {
	if s.auditPublisher == nil {
		return nil
	}
	details := map[string]string{
		"from": string(entry.From),
		"to":   string(entry.To),
	}
	if entry.EstimateSnapshot != nil {
		details["estimate_type"] = string(entry.EstimateSnapshot.EstimateType)
		details["confidence_level"] = string(entry.EstimateSnapshot.ConfidenceLevel)
	}
	err := s.auditPublisher.Emit(ctx, audit.ComplianceEvent{
		Timestamp:  entry.ChangedAt,
		ActorID:    entry.ChangedBy,
		Action:     audit.EventGapStatusTransitioned,
		EntityType: "data_point",
		EntityID:   entry.DataPointID.String(),
		PeriodID:   entry.PeriodID.String(),
		Reason:     entry.Note,
		Details:    details,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record gap status audit event")
	}
	return nil
}

// History lists a data point's transitions, oldest first.
func (s *Service) History(ctx context.Context, dataPointID id.DataPointID) ([]*models.GapStatusHistoryEntry, error) {
	if dataPointID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "data point id is required")
	}
	if _, err := s.store.FindDataPoint(ctx, dataPointID); err != nil {
		return nil, wrapStoreErr(err, "data point")
	}
	entries, err := s.store.ListHistory(ctx, dataPointID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list gap status history")
	}
	return entries, nil
}

func wrapStoreErr(err error, what string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, what+" was modified concurrently")
	case dErrors.GetCode(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+what)
	}
}

// shardFor uses FNV-1a for an even spread across shards.
func shardFor(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h % numShards
}
