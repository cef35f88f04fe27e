// Package store persists period graphs.
//
// Every write happens inside RunInTx. The in-memory store stages writes on a
// private copy and publishes it on commit; the PostgreSQL store carries a real
// transaction in the context. Readers outside the transaction never observe
// staged writes.
package store

import (
	"context"

	"esgledger/internal/reporting/models"
	rollover "esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
)

// Reader exposes the queries used by rollover and gap-status workflows.
type Reader interface {
	FindPeriod(ctx context.Context, periodID id.PeriodID) (*models.ReportingPeriod, error)
	PeriodNameExists(ctx context.Context, orgID id.OrganizationID, name string) (bool, error)
	LoadGraph(ctx context.Context, periodID id.PeriodID) (*models.PeriodGraph, error)
	FindDataPoint(ctx context.Context, dataPointID id.DataPointID) (*models.DataPoint, error)
	FindEvidence(ctx context.Context, evidenceID id.EvidenceID) (*models.Evidence, error)
	ListHistory(ctx context.Context, dataPointID id.DataPointID) ([]*models.GapStatusHistoryEntry, error)
	ListValidationRules(ctx context.Context, dataType string) ([]*models.ValidationRule, error)
	FindRolloverAudit(ctx context.Context, operationID id.OperationID) (*rollover.RolloverAuditLog, *rollover.RolloverReconciliation, error)
}

// Writer exposes the mutations performed inside a transaction.
type Writer interface {
	CreatePeriod(ctx context.Context, period *models.ReportingPeriod) error
	CreateSection(ctx context.Context, section *models.ReportSection) error
	UpdateSection(ctx context.Context, section *models.ReportSection) error
	CreateDataPoint(ctx context.Context, dp *models.DataPoint) error
	// UpdateDataPoint replaces dp only if its stored gap status still equals
	// expected; otherwise it returns sentinel.ErrConflict.
	UpdateDataPoint(ctx context.Context, dp *models.DataPoint, expected models.GapStatus) error
	CreateGap(ctx context.Context, gap *models.Gap) error
	CreateAssumption(ctx context.Context, assumption *models.Assumption) error
	CreatePlan(ctx context.Context, plan *models.RemediationPlan) error
	CreateAction(ctx context.Context, action *models.RemediationAction) error
	CreateEvidence(ctx context.Context, evidence *models.Evidence) error
	AppendHistory(ctx context.Context, entry *models.GapStatusHistoryEntry) error
	SaveRolloverAudit(ctx context.Context, log *rollover.RolloverAuditLog, rec *rollover.RolloverReconciliation) error
}

// Tx is the view of the store handed to a transaction body.
type Tx interface {
	Reader
	Writer
}

// Store is implemented by the in-memory and PostgreSQL stores.
type Store interface {
	Reader
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
