package store

import (
	"context"
	"sync"
	"time"

	"esgledger/internal/reporting/models"
	rollover "esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
)

const defaultTxTimeout = 30 * time.Second

// InMemoryStore keeps committed state behind an RWMutex and stages every
// transaction on a private copy. Transactions are serialized.
type InMemoryStore struct {
	mu      sync.RWMutex
	txMu    sync.Mutex
	current *state
	timeout time.Duration
}

type MemoryOption func(*InMemoryStore)

// WithTxTimeout bounds transactions whose context has no deadline.
func WithTxTimeout(d time.Duration) MemoryOption {
	return func(s *InMemoryStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{current: newState(), timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// RunInTx runs fn against a staged copy and publishes it only if fn succeeds
// and the context is still live.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	tx := &memoryTx{st: s.snapshot().clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted before commit")
	}

	s.mu.Lock()
	s.current = tx.st
	s.mu.Unlock()
	return nil
}

// Seed writes entities outside of a transaction. Intended for fixtures and
// manual period creation.
func (s *InMemoryStore) Seed(ctx context.Context, g *models.PeriodGraph) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return WriteGraph(ctx, tx, g)
	})
}

// AddValidationRule registers a value rule for a data type.
func (s *InMemoryStore) AddValidationRule(rule *models.ValidationRule) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current.clone()
	next.rules = append(next.rules, rule)
	s.current = next
}

func (s *InMemoryStore) FindPeriod(_ context.Context, periodID id.PeriodID) (*models.ReportingPeriod, error) {
	return s.snapshot().findPeriod(periodID)
}

func (s *InMemoryStore) PeriodNameExists(_ context.Context, orgID id.OrganizationID, name string) (bool, error) {
	return s.snapshot().periodNameExists(orgID, name), nil
}

func (s *InMemoryStore) LoadGraph(_ context.Context, periodID id.PeriodID) (*models.PeriodGraph, error) {
	return s.snapshot().loadGraph(periodID)
}

func (s *InMemoryStore) FindDataPoint(_ context.Context, dataPointID id.DataPointID) (*models.DataPoint, error) {
	return s.snapshot().findDataPoint(dataPointID)
}

func (s *InMemoryStore) FindEvidence(_ context.Context, evidenceID id.EvidenceID) (*models.Evidence, error) {
	return s.snapshot().findEvidence(evidenceID)
}

func (s *InMemoryStore) ListHistory(_ context.Context, dataPointID id.DataPointID) ([]*models.GapStatusHistoryEntry, error) {
	return s.snapshot().listHistory(dataPointID), nil
}

func (s *InMemoryStore) ListValidationRules(_ context.Context, dataType string) ([]*models.ValidationRule, error) {
	return s.snapshot().listValidationRules(dataType), nil
}

func (s *InMemoryStore) FindRolloverAudit(_ context.Context, operationID id.OperationID) (*rollover.RolloverAuditLog, *rollover.RolloverReconciliation, error) {
	return s.snapshot().findRolloverAudit(operationID)
}

// memoryTx guards the staged state; copy workers write concurrently.
type memoryTx struct {
	mu sync.Mutex
	st *state
}

func (t *memoryTx) FindPeriod(_ context.Context, periodID id.PeriodID) (*models.ReportingPeriod, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.findPeriod(periodID)
}

func (t *memoryTx) PeriodNameExists(_ context.Context, orgID id.OrganizationID, name string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.periodNameExists(orgID, name), nil
}

func (t *memoryTx) LoadGraph(_ context.Context, periodID id.PeriodID) (*models.PeriodGraph, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.loadGraph(periodID)
}

func (t *memoryTx) FindDataPoint(_ context.Context, dataPointID id.DataPointID) (*models.DataPoint, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.findDataPoint(dataPointID)
}

func (t *memoryTx) FindEvidence(_ context.Context, evidenceID id.EvidenceID) (*models.Evidence, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.findEvidence(evidenceID)
}

func (t *memoryTx) ListHistory(_ context.Context, dataPointID id.DataPointID) ([]*models.GapStatusHistoryEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.listHistory(dataPointID), nil
}

func (t *memoryTx) ListValidationRules(_ context.Context, dataType string) ([]*models.ValidationRule, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.listValidationRules(dataType), nil
}

func (t *memoryTx) FindRolloverAudit(_ context.Context, operationID id.OperationID) (*rollover.RolloverAuditLog, *rollover.RolloverReconciliation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.findRolloverAudit(operationID)
}

func (t *memoryTx) CreatePeriod(_ context.Context, p *models.ReportingPeriod) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.createPeriod(p)
}

func (t *memoryTx) CreateSection(_ context.Context, sec *models.ReportSection) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.createSection(sec)
}

func (t *memoryTx) UpdateSection(_ context.Context, sec *models.ReportSection) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.updateSection(sec)
}

func (t *memoryTx) CreateDataPoint(_ context.Context, dp *models.DataPoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.createDataPoint(dp)
}

func (t *memoryTx) UpdateDataPoint(_ context.Context, dp *models.DataPoint, expected models.GapStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.updateDataPoint(dp, expected)
}

func (t *memoryTx) CreateGap(_ context.Context, g *models.Gap) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.createGap(g)
}

func (t *memoryTx) CreateAssumption(_ context.Context, a *models.Assumption) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.createAssumption(a)
}

func (t *memoryTx) CreatePlan(_ context.Context, p *models.RemediationPlan) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.createPlan(p)
}

func (t *memoryTx) CreateAction(_ context.Context, a *models.RemediationAction) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.createAction(a)
}

func (t *memoryTx) CreateEvidence(_ context.Context, e *models.Evidence) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.createEvidence(e)
}

func (t *memoryTx) AppendHistory(_ context.Context, entry *models.GapStatusHistoryEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.appendHistory(entry)
}

func (t *memoryTx) SaveRolloverAudit(_ context.Context, log *rollover.RolloverAuditLog, rec *rollover.RolloverReconciliation) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.saveRolloverAudit(log, rec)
}
