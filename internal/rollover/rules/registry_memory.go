package rules

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
	dErrors "esgledger/pkg/domain-errors"
)

// InMemoryRegistry keeps every version of every rule.
type InMemoryRegistry struct {
	mu       sync.RWMutex
	versions map[string][]*models.DataTypeRolloverRule
	now      func() time.Time
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		versions: make(map[string][]*models.DataTypeRolloverRule),
		now:      time.Now,
	}
}

func (r *InMemoryRegistry) Active(_ context.Context, dataType string) (*models.DataTypeRolloverRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.versions[dataType] {
		if v.Active {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *InMemoryRegistry) ListActive(_ context.Context) ([]*models.DataTypeRolloverRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.DataTypeRolloverRule
	for _, versions := range r.versions {
		for _, v := range versions {
			if v.Active {
				cp := *v
				out = append(out, &cp)
			}
		}
	}
	slices.SortFunc(out, func(a, b *models.DataTypeRolloverRule) int { return cmp.Compare(a.DataType, b.DataType) })
	return out, nil
}

// History returns every version of a data type's rule, oldest first.
func (r *InMemoryRegistry) History(_ context.Context, dataType string) ([]*models.DataTypeRolloverRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.DataTypeRolloverRule, 0, len(r.versions[dataType]))
	for _, v := range r.versions[dataType] {
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

// Publish stores rule as the next version and deactivates the previous one.
func (r *InMemoryRegistry) Publish(_ context.Context, rule *models.DataTypeRolloverRule) (*models.DataTypeRolloverRule, error) {
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	versions := r.versions[rule.DataType]
	next := *rule
	next.ID = id.NewRuleID()
	next.Version = len(versions) + 1
	next.Active = true
	if next.CreatedAt.IsZero() {
		next.CreatedAt = r.now()
	}
	for i, v := range versions {
		if v.Active {
			prev := *v
			prev.Active = false
			versions[i] = &prev
		}
	}
	r.versions[rule.DataType] = append(versions, &next)
	out := next
	return &out, nil
}

func validateRule(rule *models.DataTypeRolloverRule) error {
	if rule == nil {
		return dErrors.New(dErrors.CodeValidation, "rule is required")
	}
	if strings.TrimSpace(rule.DataType) == "" {
		return dErrors.New(dErrors.CodeValidation, "rule data type is required")
	}
	if !rule.RuleType.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid rule type %q", rule.RuleType)
	}
	if rule.CreatedBy.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "rule author is required")
	}
	return nil
}
