package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"esgledger/internal/platform/database"
	"esgledger/internal/reporting/models"
	rollover "esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
	"esgledger/pkg/platform/sentinel"
	txcontext "esgledger/pkg/platform/tx"
)

// PostgresStore persists period graphs in PostgreSQL. Methods run on the
// transaction carried in ctx when present.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, timeout: defaultTxTimeout}
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, sqlTx), s); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) exec(ctx context.Context) txcontext.Executor {
	return txcontext.Exec(ctx, s.db)
}

func nullID[T ~[16]byte](v *T) uuid.NullUUID {
	if v == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}

func fromNullID[T ~[16]byte](n uuid.NullUUID) *T {
	if !n.Valid {
		return nil
	}
	v := T(n.UUID)
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromNullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func translate(err error, what string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return sentinel.ErrNotFound
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w", what, sentinel.ErrAlreadyUsed)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

const periodColumns = `id, organization_id, name, start_date, end_date, mode, scope, locked,
	integrity_hash, source_period_id, created_by, created_at`

func scanPeriod(row interface{ Scan(...any) error }) (*models.ReportingPeriod, error) {
	var (
		p        models.ReportingPeriod
		pid, org uuid.UUID
		src      uuid.NullUUID
		mode     string
		by       string
	)
	if err := row.Scan(&pid, &org, &p.Name, &p.StartDate, &p.EndDate, &mode, &p.Scope, &p.Locked,
		&p.IntegrityHash, &src, &by, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.ID = id.PeriodID(pid)
	p.OrganizationID = id.OrganizationID(org)
	p.Mode = models.PeriodMode(mode)
	p.SourcePeriodID = fromNullID[id.PeriodID](src)
	p.CreatedBy = id.UserID(by)
	return &p, nil
}

func (s *PostgresStore) FindPeriod(ctx context.Context, periodID id.PeriodID) (*models.ReportingPeriod, error) {
	row := s.exec(ctx).QueryRowContext(ctx, `SELECT `+periodColumns+` FROM reporting_periods WHERE id = $1`, uuid.UUID(periodID))
	p, err := scanPeriod(row)
	if err != nil {
		return nil, translate(err, "find period")
	}
	return p, nil
}

func (s *PostgresStore) PeriodNameExists(ctx context.Context, orgID id.OrganizationID, name string) (bool, error) {
	var exists bool
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM reporting_periods WHERE organization_id = $1 AND lower(name) = lower($2))
	`, uuid.UUID(orgID), name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check period name: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CreatePeriod(ctx context.Context, p *models.ReportingPeriod) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO reporting_periods (`+periodColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, uuid.UUID(p.ID), uuid.UUID(p.OrganizationID), p.Name, p.StartDate, p.EndDate, string(p.Mode), p.Scope,
		p.Locked, p.IntegrityHash, nullID(p.SourcePeriodID), p.CreatedBy.String(), p.CreatedAt)
	if err != nil {
		return translate(err, "create period")
	}
	return nil
}

func (s *PostgresStore) CreateSection(ctx context.Context, sec *models.ReportSection) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO report_sections (id, period_id, catalog_item_id, catalog_code, title, description,
			owner_id, sort_order, source_section_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(sec.ID), uuid.UUID(sec.PeriodID), nullID(sec.CatalogItemID), sec.CatalogCode, sec.Title,
		sec.Description, sec.OwnerID.String(), sec.Order, nullID(sec.SourceSectionID))
	if err != nil {
		return translate(err, "create section")
	}
	return nil
}

func (s *PostgresStore) UpdateSection(ctx context.Context, sec *models.ReportSection) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE report_sections
		SET catalog_item_id = $3, catalog_code = $4, title = $5, description = $6,
			owner_id = $7, sort_order = $8, source_section_id = $9
		WHERE id = $1 AND period_id = $2
	`, uuid.UUID(sec.ID), uuid.UUID(sec.PeriodID), nullID(sec.CatalogItemID), sec.CatalogCode, sec.Title,
		sec.Description, sec.OwnerID.String(), sec.Order, nullID(sec.SourceSectionID))
	if err != nil {
		return translate(err, "update section")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const dataPointColumns = `id, section_id, period_id, title, type, value, content, unit, owner_id,
	review_status, gap_status, estimate_type, estimate_method, confidence_level, previous_estimate,
	source_period_id, source_data_point_id, rollover_timestamp, rollover_performed_by, created_at, updated_at`

func dataPointArgs(dp *models.DataPoint) ([]any, error) {
	var snapshot []byte
	if dp.PreviousEstimateSnapshot != nil {
		b, err := json.Marshal(dp.PreviousEstimateSnapshot)
		if err != nil {
			return nil, fmt.Errorf("marshal estimate snapshot: %w", err)
		}
		snapshot = b
	}
	var performedBy sql.NullString
	if dp.RolloverPerformedBy != nil {
		performedBy = sql.NullString{String: dp.RolloverPerformedBy.String(), Valid: true}
	}
	return []any{
		uuid.UUID(dp.ID), uuid.UUID(dp.SectionID), uuid.UUID(dp.PeriodID), dp.Title, dp.Type, dp.Value,
		dp.Content, dp.Unit, dp.OwnerID.String(), string(dp.ReviewStatus), string(dp.GapStatus),
		string(dp.EstimateType), dp.EstimateMethod, string(dp.ConfidenceLevel), snapshot,
		nullID(dp.SourcePeriodID), nullID(dp.SourceDataPointID), nullTime(dp.RolloverTimestamp),
		performedBy, dp.CreatedAt, dp.UpdatedAt,
	}, nil
}

func scanDataPoint(row interface{ Scan(...any) error }) (*models.DataPoint, error) {
	var (
		dp                  models.DataPoint
		dpID, secID, perID  uuid.UUID
		owner, review, gap  string
		estType, confidence string
		snapshot            []byte
		srcPeriod, srcDP    uuid.NullUUID
		rolledAt            sql.NullTime
		performedBy         sql.NullString
	)
	if err := row.Scan(&dpID, &secID, &perID, &dp.Title, &dp.Type, &dp.Value, &dp.Content, &dp.Unit, &owner,
		&review, &gap, &estType, &dp.EstimateMethod, &confidence, &snapshot,
		&srcPeriod, &srcDP, &rolledAt, &performedBy, &dp.CreatedAt, &dp.UpdatedAt); err != nil {
		return nil, err
	}
	dp.ID = id.DataPointID(dpID)
	dp.SectionID = id.SectionID(secID)
	dp.PeriodID = id.PeriodID(perID)
	dp.OwnerID = id.UserID(owner)
	dp.ReviewStatus = models.ReviewStatus(review)
	dp.GapStatus = models.GapStatus(gap)
	dp.EstimateType = models.EstimateType(estType)
	dp.ConfidenceLevel = models.ConfidenceLevel(confidence)
	if len(snapshot) > 0 {
		var snap models.EstimateSnapshot
		if err := json.Unmarshal(snapshot, &snap); err != nil {
			return nil, fmt.Errorf("unmarshal estimate snapshot: %w", err)
		}
		dp.PreviousEstimateSnapshot = &snap
	}
	dp.SourcePeriodID = fromNullID[id.PeriodID](srcPeriod)
	dp.SourceDataPointID = fromNullID[id.DataPointID](srcDP)
	dp.RolloverTimestamp = fromNullTime(rolledAt)
	if performedBy.Valid {
		by := id.UserID(performedBy.String)
		dp.RolloverPerformedBy = &by
	}
	return &dp, nil
}

func (s *PostgresStore) CreateDataPoint(ctx context.Context, dp *models.DataPoint) error {
	args, err := dataPointArgs(dp)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx).ExecContext(ctx, `
		INSERT INTO data_points (`+dataPointColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`, args...)
	if err != nil {
		return translate(err, "create data point")
	}
	return nil
}

// UpdateDataPoint rewrites the mutable fields guarded by the expected gap
// status. Lineage columns are never updated.
func (s *PostgresStore) UpdateDataPoint(ctx context.Context, dp *models.DataPoint, expected models.GapStatus) error {
	var snapshot []byte
	if dp.PreviousEstimateSnapshot != nil {
		b, err := json.Marshal(dp.PreviousEstimateSnapshot)
		if err != nil {
			return fmt.Errorf("marshal estimate snapshot: %w", err)
		}
		snapshot = b
	}
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE data_points
		SET value = $2, content = $3, review_status = $4, gap_status = $5, estimate_type = $6,
			estimate_method = $7, confidence_level = $8, previous_estimate = $9, updated_at = $10
		WHERE id = $1 AND gap_status = $11
	`, uuid.UUID(dp.ID), dp.Value, dp.Content, string(dp.ReviewStatus), string(dp.GapStatus),
		string(dp.EstimateType), dp.EstimateMethod, string(dp.ConfidenceLevel), snapshot, dp.UpdatedAt,
		string(expected))
	if err != nil {
		return translate(err, "update data point")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.FindDataPoint(ctx, dp.ID); err != nil {
			return err
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindDataPoint(ctx context.Context, dataPointID id.DataPointID) (*models.DataPoint, error) {
	row := s.exec(ctx).QueryRowContext(ctx, `SELECT `+dataPointColumns+` FROM data_points WHERE id = $1`, uuid.UUID(dataPointID))
	dp, err := scanDataPoint(row)
	if err != nil {
		return nil, translate(err, "find data point")
	}
	return dp, nil
}

func (s *PostgresStore) CreateGap(ctx context.Context, g *models.Gap) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO gaps (id, period_id, section_id, data_point_id, title, description, resolved, owner_id, source_gap_id)
		VALUES ($1, (SELECT period_id FROM report_sections WHERE id = $2), $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(g.ID), uuid.UUID(g.SectionID), nullID(g.DataPointID), g.Title, g.Description, g.Resolved,
		g.OwnerID.String(), nullID(g.SourceGapID))
	if err != nil {
		return translate(err, "create gap")
	}
	return nil
}

func (s *PostgresStore) CreateAssumption(ctx context.Context, a *models.Assumption) error {
	dpIDs := make([]string, 0, len(a.DataPointIDs))
	for _, dp := range a.DataPointIDs {
		dpIDs = append(dpIDs, dp.String())
	}
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO assumptions (id, period_id, section_id, data_point_ids, title, description, rationale,
			valid_until, owner_id, source_assumption_id)
		VALUES ($1, (SELECT period_id FROM report_sections WHERE id = $2), $2, $3::uuid[], $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(a.ID), uuid.UUID(a.SectionID), pq.Array(dpIDs), a.Title, a.Description, a.Rationale,
		nullTime(a.ValidUntil), a.OwnerID.String(), nullID(a.SourceAssumptionID))
	if err != nil {
		return translate(err, "create assumption")
	}
	return nil
}

func (s *PostgresStore) CreatePlan(ctx context.Context, p *models.RemediationPlan) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO remediation_plans (id, period_id, section_id, gap_id, title, target_period, owner_id, status, source_plan_id)
		VALUES ($1, (SELECT period_id FROM report_sections WHERE id = $2), $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(p.ID), uuid.UUID(p.SectionID), nullID(p.GapID), p.Title, p.TargetPeriod, p.OwnerID.String(),
		string(p.Status), nullID(p.SourcePlanID))
	if err != nil {
		return translate(err, "create remediation plan")
	}
	return nil
}

func (s *PostgresStore) CreateAction(ctx context.Context, a *models.RemediationAction) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO remediation_actions (id, period_id, plan_id, title, due_date, assignee_id, completed, source_action_id)
		VALUES ($1, (SELECT period_id FROM remediation_plans WHERE id = $2), $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(a.ID), uuid.UUID(a.PlanID), a.Title, nullTime(a.DueDate), a.AssigneeID.String(), a.Completed,
		nullID(a.SourceActionID))
	if err != nil {
		return translate(err, "create remediation action")
	}
	return nil
}

func (s *PostgresStore) CreateEvidence(ctx context.Context, e *models.Evidence) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO evidence (id, period_id, section_id, data_point_id, file_name, storage_key, checksum,
			uploaded_by, source_evidence_id)
		VALUES ($1, (SELECT period_id FROM report_sections WHERE id = $2), $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(e.ID), uuid.UUID(e.SectionID), nullID(e.DataPointID), e.FileName, e.StorageKey, e.Checksum,
		e.UploadedBy.String(), nullID(e.SourceEvidenceID))
	if err != nil {
		return translate(err, "create evidence")
	}
	return nil
}

const evidenceColumns = `id, section_id, data_point_id, file_name, storage_key, checksum, uploaded_by, source_evidence_id`

func scanEvidence(row interface{ Scan(...any) error }) (*models.Evidence, error) {
	var (
		e          models.Evidence
		eid, secID uuid.UUID
		dp, src    uuid.NullUUID
		by         string
	)
	if err := row.Scan(&eid, &secID, &dp, &e.FileName, &e.StorageKey, &e.Checksum, &by, &src); err != nil {
		return nil, err
	}
	e.ID = id.EvidenceID(eid)
	e.SectionID = id.SectionID(secID)
	e.DataPointID = fromNullID[id.DataPointID](dp)
	e.UploadedBy = id.UserID(by)
	e.SourceEvidenceID = fromNullID[id.EvidenceID](src)
	return &e, nil
}

func (s *PostgresStore) FindEvidence(ctx context.Context, evidenceID id.EvidenceID) (*models.Evidence, error) {
	row := s.exec(ctx).QueryRowContext(ctx, `SELECT `+evidenceColumns+` FROM evidence WHERE id = $1`, uuid.UUID(evidenceID))
	e, err := scanEvidence(row)
	if err != nil {
		return nil, translate(err, "find evidence")
	}
	return e, nil
}

func (s *PostgresStore) AppendHistory(ctx context.Context, entry *models.GapStatusHistoryEntry) error {
	var snapshot []byte
	if entry.EstimateSnapshot != nil {
		b, err := json.Marshal(entry.EstimateSnapshot)
		if err != nil {
			return fmt.Errorf("marshal estimate snapshot: %w", err)
		}
		snapshot = b
	}
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO gap_status_history (id, data_point_id, period_id, from_status, to_status, changed_by, changed_at, note, estimate_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(entry.ID), uuid.UUID(entry.DataPointID), uuid.UUID(entry.PeriodID), string(entry.From),
		string(entry.To), entry.ChangedBy.String(), entry.ChangedAt, entry.Note, snapshot)
	if err != nil {
		return translate(err, "append gap status history")
	}
	return nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, dataPointID id.DataPointID) ([]*models.GapStatusHistoryEntry, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT id, data_point_id, period_id, from_status, to_status, changed_by, changed_at, note, estimate_snapshot
		FROM gap_status_history
		WHERE data_point_id = $1
		ORDER BY seq
	`, uuid.UUID(dataPointID))
	if err != nil {
		return nil, fmt.Errorf("list gap status history: %w", err)
	}
	defer rows.Close()

	var out []*models.GapStatusHistoryEntry
	for rows.Next() {
		var (
			e            models.GapStatusHistoryEntry
			eid, dp, per uuid.UUID
			from, to, by string
			snapshot     []byte
		)
		if err := rows.Scan(&eid, &dp, &per, &from, &to, &by, &e.ChangedAt, &e.Note, &snapshot); err != nil {
			return nil, fmt.Errorf("scan gap status history: %w", err)
		}
		e.ID = id.HistoryEntryID(eid)
		e.DataPointID = id.DataPointID(dp)
		e.PeriodID = id.PeriodID(per)
		e.From = models.GapStatus(from)
		e.To = models.GapStatus(to)
		e.ChangedBy = id.UserID(by)
		if len(snapshot) > 0 {
			var snap models.EstimateSnapshot
			if err := json.Unmarshal(snapshot, &snap); err != nil {
				return nil, fmt.Errorf("unmarshal estimate snapshot: %w", err)
			}
			e.EstimateSnapshot = &snap
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// SaveValidationRule stores a typed rule as discrete columns.
func (s *PostgresStore) SaveValidationRule(ctx context.Context, rule *models.ValidationRule) error {
	var (
		min, max decimal.NullDecimal
		pattern  string
		allowed  []string
	)
	switch p := rule.Parameters.(type) {
	case models.RequiredParams:
	case models.NumericRangeParams:
		if p.Min != nil {
			min = decimal.NullDecimal{Decimal: *p.Min, Valid: true}
		}
		if p.Max != nil {
			max = decimal.NullDecimal{Decimal: *p.Max, Valid: true}
		}
	case models.PatternParams:
		pattern = p.Regex()
	case models.AllowedValuesParams:
		allowed = p.Values
	default:
		return fmt.Errorf("unsupported validation rule parameters %T", rule.Parameters)
	}
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO validation_rules (id, data_type, rule_type, min_value, max_value, pattern, allowed_values)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(rule.ID), rule.DataType, string(rule.Parameters.Type()), min, max, pattern, pq.Array(allowed))
	if err != nil {
		return translate(err, "save validation rule")
	}
	return nil
}

func (s *PostgresStore) ListValidationRules(ctx context.Context, dataType string) ([]*models.ValidationRule, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT id, rule_type, min_value, max_value, pattern, allowed_values::text
		FROM validation_rules
		WHERE data_type = $1
		ORDER BY id
	`, dataType)
	if err != nil {
		return nil, fmt.Errorf("list validation rules: %w", err)
	}
	defer rows.Close()

	var out []*models.ValidationRule
	for rows.Next() {
		var (
			rid      uuid.UUID
			ruleType string
			min, max decimal.NullDecimal
			pattern  string
			allowed  []string
		)
		if err := rows.Scan(&rid, &ruleType, &min, &max, &pattern, pq.Array(&allowed)); err != nil {
			return nil, fmt.Errorf("scan validation rule: %w", err)
		}
		var rule *models.ValidationRule
		switch models.ValidationRuleType(ruleType) {
		case models.RuleRequired:
			rule, err = models.NewRequiredRule(dataType)
		case models.RuleNumericRange:
			var lo, hi *decimal.Decimal
			if min.Valid {
				lo = &min.Decimal
			}
			if max.Valid {
				hi = &max.Decimal
			}
			rule, err = models.NewNumericRangeRule(dataType, lo, hi)
		case models.RulePattern:
			rule, err = models.NewPatternRule(dataType, pattern)
		case models.RuleAllowedValues:
			rule, err = models.NewAllowedValuesRule(dataType, allowed)
		default:
			err = fmt.Errorf("unknown validation rule type %q", ruleType)
		}
		if err != nil {
			return nil, fmt.Errorf("decode validation rule %s: %w", rid, err)
		}
		rule.ID = id.RuleID(rid)
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveRolloverAudit(ctx context.Context, log *rollover.RolloverAuditLog, rec *rollover.RolloverReconciliation) error {
	logJSON, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("marshal rollover audit log: %w", err)
	}
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal reconciliation: %w", err)
	}
	_, err = s.exec(ctx).ExecContext(ctx, `
		INSERT INTO rollover_audit_logs (operation_id, source_period_id, target_period_id, performed_by, performed_at, audit_log, reconciliation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(log.OperationID), uuid.UUID(log.SourcePeriodID), uuid.UUID(log.TargetPeriodID),
		log.PerformedBy.String(), log.PerformedAt, logJSON, recJSON)
	if err != nil {
		return translate(err, "save rollover audit")
	}
	return nil
}

func (s *PostgresStore) FindRolloverAudit(ctx context.Context, operationID id.OperationID) (*rollover.RolloverAuditLog, *rollover.RolloverReconciliation, error) {
	var logJSON, recJSON []byte
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT audit_log, reconciliation FROM rollover_audit_logs WHERE operation_id = $1
	`, uuid.UUID(operationID)).Scan(&logJSON, &recJSON)
	if err != nil {
		return nil, nil, translate(err, "find rollover audit")
	}
	var (
		log rollover.RolloverAuditLog
		rec rollover.RolloverReconciliation
	)
	if err := json.Unmarshal(logJSON, &log); err != nil {
		return nil, nil, fmt.Errorf("unmarshal rollover audit log: %w", err)
	}
	if err := json.Unmarshal(recJSON, &rec); err != nil {
		return nil, nil, fmt.Errorf("unmarshal reconciliation: %w", err)
	}
	return &log, &rec, nil
}

// LoadGraph reads a period and all of its entities in insertion order.
func (s *PostgresStore) LoadGraph(ctx context.Context, periodID id.PeriodID) (*models.PeriodGraph, error) {
	period, err := s.FindPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	g := &models.PeriodGraph{Period: period}
	pid := uuid.UUID(periodID)
	ex := s.exec(ctx)

	if err := queryEach(ctx, ex, `
		SELECT id, period_id, catalog_item_id, catalog_code, title, description, owner_id, sort_order, source_section_id
		FROM report_sections WHERE period_id = $1 ORDER BY seq
	`, pid, func(rows *sql.Rows) error {
		var (
			sec          models.ReportSection
			sid, per     uuid.UUID
			item, source uuid.NullUUID
			owner        string
		)
		if err := rows.Scan(&sid, &per, &item, &sec.CatalogCode, &sec.Title, &sec.Description, &owner, &sec.Order, &source); err != nil {
			return err
		}
		sec.ID = id.SectionID(sid)
		sec.PeriodID = id.PeriodID(per)
		sec.CatalogItemID = fromNullID[id.CatalogItemID](item)
		sec.OwnerID = id.UserID(owner)
		sec.SourceSectionID = fromNullID[id.SectionID](source)
		g.Sections = append(g.Sections, &sec)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}

	if err := queryEach(ctx, ex, `SELECT `+dataPointColumns+` FROM data_points WHERE period_id = $1 ORDER BY seq`, pid,
		func(rows *sql.Rows) error {
			dp, err := scanDataPoint(rows)
			if err != nil {
				return err
			}
			g.DataPoints = append(g.DataPoints, dp)
			return nil
		}); err != nil {
		return nil, fmt.Errorf("load data points: %w", err)
	}

	if err := queryEach(ctx, ex, `
		SELECT id, section_id, data_point_id, title, description, resolved, owner_id, source_gap_id
		FROM gaps WHERE period_id = $1 ORDER BY seq
	`, pid, func(rows *sql.Rows) error {
		var (
			gap      models.Gap
			gid, sec uuid.UUID
			dp, src  uuid.NullUUID
			owner    string
		)
		if err := rows.Scan(&gid, &sec, &dp, &gap.Title, &gap.Description, &gap.Resolved, &owner, &src); err != nil {
			return err
		}
		gap.ID = id.GapID(gid)
		gap.SectionID = id.SectionID(sec)
		gap.DataPointID = fromNullID[id.DataPointID](dp)
		gap.OwnerID = id.UserID(owner)
		gap.SourceGapID = fromNullID[id.GapID](src)
		g.Gaps = append(g.Gaps, &gap)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load gaps: %w", err)
	}

	if err := queryEach(ctx, ex, `
		SELECT id, section_id, data_point_ids::text, title, description, rationale, valid_until, owner_id, source_assumption_id
		FROM assumptions WHERE period_id = $1 ORDER BY seq
	`, pid, func(rows *sql.Rows) error {
		var (
			a          models.Assumption
			aid, sec   uuid.UUID
			dpIDs      []string
			validUntil sql.NullTime
			owner      string
			src        uuid.NullUUID
		)
		if err := rows.Scan(&aid, &sec, pq.Array(&dpIDs), &a.Title, &a.Description, &a.Rationale, &validUntil, &owner, &src); err != nil {
			return err
		}
		a.ID = id.AssumptionID(aid)
		a.SectionID = id.SectionID(sec)
		for _, raw := range dpIDs {
			dp, err := id.ParseDataPointID(raw)
			if err != nil {
				return err
			}
			a.DataPointIDs = append(a.DataPointIDs, dp)
		}
		a.ValidUntil = fromNullTime(validUntil)
		a.OwnerID = id.UserID(owner)
		a.SourceAssumptionID = fromNullID[id.AssumptionID](src)
		g.Assumptions = append(g.Assumptions, &a)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load assumptions: %w", err)
	}

	if err := queryEach(ctx, ex, `
		SELECT id, section_id, gap_id, title, target_period, owner_id, status, source_plan_id
		FROM remediation_plans WHERE period_id = $1 ORDER BY seq
	`, pid, func(rows *sql.Rows) error {
		var (
			p             models.RemediationPlan
			planID, sec   uuid.UUID
			gap, src      uuid.NullUUID
			owner, status string
		)
		if err := rows.Scan(&planID, &sec, &gap, &p.Title, &p.TargetPeriod, &owner, &status, &src); err != nil {
			return err
		}
		p.ID = id.PlanID(planID)
		p.SectionID = id.SectionID(sec)
		p.GapID = fromNullID[id.GapID](gap)
		p.OwnerID = id.UserID(owner)
		p.Status = models.PlanStatus(status)
		p.SourcePlanID = fromNullID[id.PlanID](src)
		g.Plans = append(g.Plans, &p)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load remediation plans: %w", err)
	}

	if err := queryEach(ctx, ex, `
		SELECT id, plan_id, title, due_date, assignee_id, completed, source_action_id
		FROM remediation_actions WHERE period_id = $1 ORDER BY seq
	`, pid, func(rows *sql.Rows) error {
		var (
			a           models.RemediationAction
			aid, planID uuid.UUID
			due         sql.NullTime
			assignee    string
			src         uuid.NullUUID
		)
		if err := rows.Scan(&aid, &planID, &a.Title, &due, &assignee, &a.Completed, &src); err != nil {
			return err
		}
		a.ID = id.ActionID(aid)
		a.PlanID = id.PlanID(planID)
		a.DueDate = fromNullTime(due)
		a.AssigneeID = id.UserID(assignee)
		a.SourceActionID = fromNullID[id.ActionID](src)
		g.Actions = append(g.Actions, &a)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("load remediation actions: %w", err)
	}

	if err := queryEach(ctx, ex, `SELECT `+evidenceColumns+` FROM evidence WHERE period_id = $1 ORDER BY seq`, pid,
		func(rows *sql.Rows) error {
			e, err := scanEvidence(rows)
			if err != nil {
				return err
			}
			g.Evidence = append(g.Evidence, e)
			return nil
		}); err != nil {
		return nil, fmt.Errorf("load evidence: %w", err)
	}

	return g, nil
}

func queryEach(ctx context.Context, ex txcontext.Executor, query string, arg any, fn func(*sql.Rows) error) error {
	rows, err := ex.QueryContext(ctx, query, arg)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
