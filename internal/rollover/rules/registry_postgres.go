package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"esgledger/internal/platform/database"
	"esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
	"esgledger/pkg/platform/sentinel"
)

// PostgresRegistry stores rule versions in rollover_rules. A partial unique
// index allows one active version per data type.
type PostgresRegistry struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresRegistry(db *sql.DB) *PostgresRegistry {
	return &PostgresRegistry{db: db, now: time.Now}
}

const ruleColumns = `id, data_type, rule_type, version, active, description, created_by, created_at`

func scanRule(row interface{ Scan(...any) error }) (*models.DataTypeRolloverRule, error) {
	var (
		r        models.DataTypeRolloverRule
		rid      uuid.UUID
		ruleType string
		by       string
	)
	if err := row.Scan(&rid, &r.DataType, &ruleType, &r.Version, &r.Active, &r.Description, &by, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.ID = id.RuleID(rid)
	r.RuleType = models.RuleType(ruleType)
	r.CreatedBy = id.UserID(by)
	return &r, nil
}

func (r *PostgresRegistry) Active(ctx context.Context, dataType string) (*models.DataTypeRolloverRule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rollover_rules WHERE data_type = $1 AND active`, dataType)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active rollover rule: %w", err)
	}
	return rule, nil
}

func (r *PostgresRegistry) ListActive(ctx context.Context) ([]*models.DataTypeRolloverRule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ruleColumns+` FROM rollover_rules WHERE active ORDER BY data_type`)
	if err != nil {
		return nil, fmt.Errorf("list active rollover rules: %w", err)
	}
	defer rows.Close()
	var out []*models.DataTypeRolloverRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rollover rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Publish deactivates the current version and inserts the next one in a
// single transaction. Concurrent publishers for the same data type collide on
// the unique version and one of them receives sentinel.ErrAlreadyUsed.
func (r *PostgresRegistry) Publish(ctx context.Context, rule *models.DataTypeRolloverRule) (*models.DataTypeRolloverRule, error) {
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin publish: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM rollover_rules WHERE data_type = $1`, rule.DataType).
		Scan(&current); err != nil {
		return nil, fmt.Errorf("read rule version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE rollover_rules SET active = FALSE WHERE data_type = $1 AND active`, rule.DataType); err != nil {
		return nil, fmt.Errorf("deactivate rule: %w", err)
	}

	next := *rule
	next.ID = id.NewRuleID()
	next.Version = current + 1
	next.Active = true
	if next.CreatedAt.IsZero() {
		next.CreatedAt = r.now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO rollover_rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(next.ID), next.DataType, string(next.RuleType), next.Version, next.Active, next.Description,
		next.CreatedBy.String(), next.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("publish rule %s v%d: %w", next.DataType, next.Version, sentinel.ErrAlreadyUsed)
		}
		return nil, fmt.Errorf("insert rule: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit publish: %w", err)
	}
	return &next, nil
}
