package rules

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"esgledger/internal/rollover/models"
	id "esgledger/pkg/domain"
)

// SeedFile is the YAML layout used to bootstrap a registry:
//
//	rules:
//	  - data_type: kpi
//	    rule: reset
//	    description: KPIs are re-measured every year
type SeedFile struct {
	Rules []SeedRule `yaml:"rules"`
}

type SeedRule struct {
	DataType    string `yaml:"data_type"`
	Rule        string `yaml:"rule"`
	Description string `yaml:"description"`
}

// ParseSeed decodes and validates a seed document.
func ParseSeed(r io.Reader) ([]*models.DataTypeRolloverRule, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode rule seed: %w", err)
	}
	out := make([]*models.DataTypeRolloverRule, 0, len(f.Rules))
	seen := make(map[string]struct{}, len(f.Rules))
	for i, sr := range f.Rules {
		ruleType, err := models.ParseRuleType(sr.Rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if sr.DataType == "" {
			return nil, fmt.Errorf("rule %d: data_type is required", i)
		}
		if _, dup := seen[sr.DataType]; dup {
			return nil, fmt.Errorf("rule %d: duplicate data_type %q", i, sr.DataType)
		}
		seen[sr.DataType] = struct{}{}
		out = append(out, &models.DataTypeRolloverRule{
			DataType:    sr.DataType,
			RuleType:    ruleType,
			Description: sr.Description,
		})
	}
	return out, nil
}

// LoadSeed publishes each seed rule whose active version differs from the
// seed. Returns the number of rules published.
func LoadSeed(ctx context.Context, registry Registry, r io.Reader, author id.UserID) (int, error) {
	seeded, err := ParseSeed(r)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, rule := range seeded {
		current, err := registry.Active(ctx, rule.DataType)
		if err != nil {
			return published, err
		}
		if current != nil && current.RuleType == rule.RuleType {
			continue
		}
		rule.CreatedBy = author
		if _, err := registry.Publish(ctx, rule); err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}
