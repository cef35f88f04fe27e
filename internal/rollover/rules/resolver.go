// Package rules decides how each data type is carried into a new period.
//
// Resolution order: an override supplied with the rollover call, then the
// active global rule from the registry, then Copy.
package rules

import (
	"context"

	"esgledger/internal/rollover/models"
	dErrors "esgledger/pkg/domain-errors"
)

// Registry is the versioned store of global rollover rules.
type Registry interface {
	Active(ctx context.Context, dataType string) (*models.DataTypeRolloverRule, error)
	ListActive(ctx context.Context) ([]*models.DataTypeRolloverRule, error)
	Publish(ctx context.Context, rule *models.DataTypeRolloverRule) (*models.DataTypeRolloverRule, error)
}

type Resolver struct {
	registry Registry
}

func NewResolver(registry Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Resolve returns the rule for one data type. Overrides are consulted first
// and never persisted.
func (r *Resolver) Resolve(ctx context.Context, dataType string, overrides []models.RolloverRuleOverride) (models.ResolvedRule, error) {
	for _, o := range overrides {
		if o.DataType == dataType {
			return models.ResolvedRule{DataType: dataType, RuleType: o.RuleType, Source: models.RuleSourceOverride}, nil
		}
	}
	if r.registry != nil {
		rule, err := r.registry.Active(ctx, dataType)
		if err != nil {
			return models.ResolvedRule{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rollover rule")
		}
		if rule != nil {
			return models.ResolvedRule{
				DataType: dataType,
				RuleType: rule.RuleType,
				Source:   models.RuleSourceRegistry,
				Version:  rule.Version,
			}, nil
		}
	}
	return models.ResolvedRule{DataType: dataType, RuleType: models.RuleCopy, Source: models.RuleSourceDefault}, nil
}

// Plan is the memoized rule set for one rollover call.
type Plan struct {
	rules map[string]models.ResolvedRule
	order []string
}

// ResolveAll resolves every data type once.
func (r *Resolver) ResolveAll(ctx context.Context, dataTypes []string, overrides []models.RolloverRuleOverride) (*Plan, error) {
	p := &Plan{rules: make(map[string]models.ResolvedRule, len(dataTypes))}
	for _, dt := range dataTypes {
		if _, ok := p.rules[dt]; ok {
			continue
		}
		resolved, err := r.Resolve(ctx, dt, overrides)
		if err != nil {
			return nil, err
		}
		p.rules[dt] = resolved
		p.order = append(p.order, dt)
	}
	return p, nil
}

// RuleFor returns the resolved rule type. Data types outside the plan copy.
func (p *Plan) RuleFor(dataType string) models.RuleType {
	if p == nil {
		return models.RuleCopy
	}
	if r, ok := p.rules[dataType]; ok {
		return r.RuleType
	}
	return models.RuleCopy
}

// Rules lists the resolutions in first-seen order.
func (p *Plan) Rules() []models.ResolvedRule {
	out := make([]models.ResolvedRule, 0, len(p.order))
	for _, dt := range p.order {
		out = append(out, p.rules[dt])
	}
	return out
}
